package dto

import "encoding/json"

// Payloads understood by the example processors in internal/tasks.

type SendEmailPayload struct {
	To      string   `json:"to" validate:"required,email"`
	Cc      []string `json:"cc,omitempty" validate:"omitempty,dive,email"`
	Subject string   `json:"subject" validate:"required"`
	Body    string   `json:"body" validate:"required"`
}

type ProcessPaymentPayload struct {
	PaymentID      string  `json:"payment_id" validate:"required"`
	UserID         string  `json:"user_id" validate:"required"`
	Amount         float64 `json:"amount" validate:"gt=0"`
	Currency       string  `json:"currency" validate:"required,len=3"`
	Method         string  `json:"method" validate:"required,oneof=card upi netbanking wallet"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required"`
}

type SendWebhookPayload struct {
	URL       string            `json:"url" validate:"required,url"`
	Method    string            `json:"method" validate:"required,oneof=POST PUT PATCH"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body" validate:"required"`
	TimeoutMs int               `json:"timeout_ms" validate:"gte=1,lte=30000"`
}
