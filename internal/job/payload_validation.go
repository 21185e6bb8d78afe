package job

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/dto"
	"github.com/joshu-sajeev/jobq/internal/tasks"
	"github.com/joshu-sajeev/jobq/middleware"
)

var validate = validator.New()

// payloadValidators knows the payload shape of the example queues. Other
// queues accept any JSON value.
var payloadValidators = map[string]func(json.RawMessage) error{
	tasks.QueueEmails:   validatePayload[dto.SendEmailPayload],
	tasks.QueuePayments: validatePayload[dto.ProcessPaymentPayload],
	tasks.QueueWebhooks: validatePayload[dto.SendWebhookPayload],
}

func validateQueuePayload(queue string, raw json.RawMessage) error {
	if fn, ok := payloadValidators[queue]; ok {
		return fn(raw)
	}
	return nil
}

func validatePayload[T any](raw json.RawMessage) error {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "invalid payload format",
		}
	}

	if err := validate.Struct(payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "payload validation failed",
			Fields:  middleware.FormatValidationErrors(err),
		}
	}

	return nil
}
