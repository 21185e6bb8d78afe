package tasks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joshu-sajeev/jobq/common"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTasks(t *testing.T) (*Tasks, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	tk := New(log, nil)
	tk.EmailDelay = time.Millisecond
	tk.PaymentDelay = time.Millisecond
	return tk, hook
}

func TestSendEmail(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantErr       bool
		wantPermanent bool
	}{
		{
			name:    "valid email",
			payload: `{"to":"a@example.com","subject":"hi","body":"hello"}`,
		},
		{
			name:          "malformed json",
			payload:       `{"to":`,
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "invalid address",
			payload:       `{"to":"not-an-email","subject":"hi","body":"hello"}`,
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "invalid cc",
			payload:       `{"to":"a@example.com","cc":["nope"],"subject":"hi","body":"hello"}`,
			wantErr:       true,
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk, hook := newTasks(t)

			err := tk.SendEmail(context.Background(), json.RawMessage(tt.payload))

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantPermanent, common.IsPermanent(err))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, `sent email "hi"`, hook.LastEntry().Message)
			assert.Equal(t, "a@example.com", hook.LastEntry().Data["to"])
		})
	}
}

func TestSendEmail_ContextCanceled(t *testing.T) {
	tk, _ := newTasks(t)
	tk.EmailDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tk.SendEmail(ctx, json.RawMessage(`{"to":"a@example.com","subject":"hi","body":"hello"}`))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, common.IsPermanent(err))
}

func TestProcessPayment(t *testing.T) {
	tk, hook := newTasks(t)

	valid := `{"payment_id":"p1","user_id":"u1","amount":12.5,"currency":"EUR","method":"card","idempotency_key":"k1"}`
	require.NoError(t, tk.ProcessPayment(context.Background(), json.RawMessage(valid)))
	assert.Equal(t, "processed payment 12.50 EUR via card", hook.LastEntry().Message)

	invalid := `{"payment_id":"p1","user_id":"u1","amount":0,"currency":"EURO","method":"cash","idempotency_key":"k1"}`
	err := tk.ProcessPayment(context.Background(), json.RawMessage(invalid))
	require.Error(t, err)
	assert.True(t, common.IsPermanent(err))
}

func TestSendWebhook(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantErr       bool
		wantPermanent bool
	}{
		{name: "delivered", status: http.StatusNoContent},
		{name: "server error is retried", status: http.StatusBadGateway, wantErr: true},
		{name: "rate limited is retried", status: http.StatusTooManyRequests, wantErr: true},
		{name: "client error is permanent", status: http.StatusNotFound, wantErr: true, wantPermanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody, gotHeader, gotMethod string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				gotBody = string(b)
				gotHeader = r.Header.Get("X-Signature")
				gotMethod = r.Method
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			tk, _ := newTasks(t)
			payload, err := json.Marshal(map[string]any{
				"url":        srv.URL + "/hook",
				"method":     "PUT",
				"headers":    map[string]string{"X-Signature": "abc"},
				"body":       map[string]any{"event": "paid"},
				"timeout_ms": 2000,
			})
			require.NoError(t, err)

			err = tk.SendWebhook(context.Background(), payload)

			assert.Equal(t, "PUT", gotMethod)
			assert.Equal(t, "abc", gotHeader)
			assert.JSONEq(t, `{"event":"paid"}`, gotBody)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantPermanent, common.IsPermanent(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSendWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tk, _ := newTasks(t)
	payload := `{"url":"` + url + `","method":"POST","body":{},"timeout_ms":500}`

	err := tk.SendWebhook(context.Background(), json.RawMessage(payload))
	require.Error(t, err)
	assert.False(t, common.IsPermanent(err))
}

func TestSendWebhook_InvalidPayload(t *testing.T) {
	tk, _ := newTasks(t)

	err := tk.SendWebhook(context.Background(), json.RawMessage(`{"url":"ftp//x","method":"GET","body":{},"timeout_ms":0}`))
	require.Error(t, err)
	assert.True(t, common.IsPermanent(err))
}

func TestProcessors(t *testing.T) {
	tk, _ := newTasks(t)
	procs := tk.Processors()

	assert.Len(t, procs, 3)
	for _, name := range []string{QueueEmails, QueuePayments, QueueWebhooks} {
		assert.NotNil(t, procs[name], name)
	}
}
