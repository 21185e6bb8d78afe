// Package tasks holds the example processors registered by cmd/worker.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/dto"
	"github.com/joshu-sajeev/jobq/internal/worker"
	"github.com/sirupsen/logrus"
)

const (
	QueueEmails   = "emails"
	QueuePayments = "payments"
	QueueWebhooks = "webhooks"
)

var validate = validator.New()

// Tasks bundles the processors with the collaborators they need.
type Tasks struct {
	log    logrus.FieldLogger
	client *http.Client

	// simulated latency of the email and payment providers
	EmailDelay   time.Duration
	PaymentDelay time.Duration
}

func New(log logrus.FieldLogger, client *http.Client) *Tasks {
	if client == nil {
		client = http.DefaultClient
	}
	return &Tasks{
		log:          log,
		client:       client,
		EmailDelay:   100 * time.Millisecond,
		PaymentDelay: 200 * time.Millisecond,
	}
}

// decode unmarshals and validates raw. A payload that can never be processed
// is marked permanent so it is escalated without retries.
func decode[T any](raw json.RawMessage) (*T, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, common.Permanent(fmt.Errorf("unmarshal payload: %w", err))
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, common.Permanent(fmt.Errorf("invalid payload: %w", err))
	}
	return &payload, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendEmail simulates sending an email.
func (t *Tasks) SendEmail(ctx context.Context, raw json.RawMessage) error {
	email, err := decode[dto.SendEmailPayload](raw)
	if err != nil {
		return err
	}

	if err := sleep(ctx, t.EmailDelay); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{"to": email.To, "cc": len(email.Cc)}).Infof("sent email %q", email.Subject)
	return nil
}

// ProcessPayment simulates a call to a payment gateway.
func (t *Tasks) ProcessPayment(ctx context.Context, raw json.RawMessage) error {
	payment, err := decode[dto.ProcessPaymentPayload](raw)
	if err != nil {
		return err
	}

	if err := sleep(ctx, t.PaymentDelay); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"payment_id":      payment.PaymentID,
		"idempotency_key": payment.IdempotencyKey,
	}).Infof("processed payment %.2f %s via %s", payment.Amount, payment.Currency, payment.Method)
	return nil
}

// SendWebhook delivers the webhook body. 5xx and transport errors are
// retried, any other non-2xx response fails the job for good.
func (t *Tasks) SendWebhook(ctx context.Context, raw json.RawMessage) error {
	hook, err := decode[dto.SendWebhookPayload](raw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(hook.TimeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, hook.Method, hook.URL, bytes.NewReader(hook.Body))
	if err != nil {
		return common.Permanent(fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", hook.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		t.log.WithField("status", resp.StatusCode).Infof("delivered webhook to %s", hook.URL)
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook %s: status %d", hook.URL, resp.StatusCode)
	default:
		return common.Permanent(fmt.Errorf("webhook %s: status %d", hook.URL, resp.StatusCode))
	}
}

// Processors maps each example queue to its processor.
func (t *Tasks) Processors() map[string]worker.Processor {
	return map[string]worker.Processor{
		QueueEmails:   t.SendEmail,
		QueuePayments: t.ProcessPayment,
		QueueWebhooks: t.SendWebhook,
	}
}
