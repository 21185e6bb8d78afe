package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobq/common"
)

// ErrorHandler renders the last error attached to the context. Errors that
// are not already an APIError are mapped with common.ToAPIError.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		apiErr := common.ToAPIError(c.Errors.Last().Err, "internal server error")

		response := gin.H{"error": apiErr.Message}
		if apiErr.Fields != nil {
			response["fields"] = apiErr.Fields
		}
		c.JSON(apiErr.Status, response)
	}
}
