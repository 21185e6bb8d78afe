package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/dto"
	"github.com/joshu-sajeev/jobq/middleware"
)

type QueueHandler struct {
	service QueueServiceInterface
}

func NewQueueHandler(s QueueServiceInterface) *QueueHandler {
	return &QueueHandler{service: s}
}

var _ QueueHandlerInterface = (*QueueHandler)(nil)

// RegisterRoutes mounts the admin API on r.
func RegisterRoutes(r gin.IRouter, h QueueHandlerInterface) {
	r.GET("/healthz", h.Health)

	queues := r.Group("/queues/:queue")
	queues.POST("/jobs", h.Enqueue)
	queues.DELETE("/jobs", h.Drain)
	queues.GET("/stats", h.Stats)

	failures := r.Group("/failures")
	failures.GET("", h.ListFailures)
	failures.POST("/:id/replay", h.Replay)
}

// Enqueue handles POST /queues/:queue/jobs. It binds and validates the body,
// then returns HTTP 201 with the new job id.
func (h *QueueHandler) Enqueue(c *gin.Context) {
	var req dto.EnqueueJobDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.Enqueue(c.Request.Context(), c.Param("queue"), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Drain handles DELETE /queues/:queue/jobs.
func (h *QueueHandler) Drain(c *gin.Context) {
	resp, err := h.service.Drain(c.Request.Context(), c.Param("queue"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *QueueHandler) Stats(c *gin.Context) {
	resp, err := h.service.Stats(c.Request.Context(), c.Param("queue"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListFailures handles GET /failures with optional queue and limit query
// parameters.
func (h *QueueHandler) ListFailures(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.Error(common.Errf(http.StatusBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	failures, err := h.service.ListFailures(c.Request.Context(), c.Query("queue"), limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, failures)
}

// Replay handles POST /failures/:id/replay.
func (h *QueueHandler) Replay(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id < 1 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	resp, err := h.service.Replay(c.Request.Context(), uint(id))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *QueueHandler) Health(c *gin.Context) {
	if err := h.service.Health(c.Request.Context()); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
