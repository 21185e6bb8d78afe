package escalation

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joshu-sajeev/jobq/common"
)

var errEventDropped = errors.New("event was not accepted by the client")

// SentrySink reports errors through its own sentry hub so it never touches
// the global hub other code may use.
type SentrySink struct {
	hub *sentry.Hub
}

func NewSentrySink(opts sentry.ClientOptions) (*SentrySink, error) {
	opts.AttachStacktrace = true

	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, &common.ConfigurationError{Setting: "SENTRY_DSN", Err: err}
	}
	return &SentrySink{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (s *SentrySink) CaptureException(err error) error {
	if id := s.hub.CaptureException(err); id == nil {
		return &common.SinkTransportError{Sink: s.Name(), Err: errEventDropped}
	}
	return nil
}

func (s *SentrySink) CaptureExceptionWithTags(err error, tags map[string]string) error {
	var id *sentry.EventID
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		id = s.hub.CaptureException(err)
	})
	if id == nil {
		return &common.SinkTransportError{Sink: s.Name(), Err: errEventDropped}
	}
	return nil
}

func (s *SentrySink) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

func (s *SentrySink) Name() string { return "sentry" }
