// Package escalation forwards job failures to an external error-aggregation
// sink.
package escalation

import (
	"errors"
	"fmt"
	"time"
)

// Sink receives structured error reports. A non-nil return means the sink
// itself could not deliver the report.
type Sink interface {
	CaptureException(err error) error
}

// TaggedSink is implemented by sinks that can attach key/value context
// (queue, job id, attempt) to a report.
type TaggedSink interface {
	Sink
	CaptureExceptionWithTags(err error, tags map[string]string) error
}

type flusher interface {
	Flush(timeout time.Duration) bool
}

// NopSink drops every report. It is used when no DSN is configured.
type NopSink struct{}

func (NopSink) CaptureException(error) error { return nil }
func (NopSink) Name() string                 { return "nop" }

// MultiSink fans a report out to every sink, collecting delivery errors.
type MultiSink []Sink

func (m MultiSink) CaptureException(err error) error {
	var errs []error
	for _, s := range m {
		if serr := s.CaptureException(err); serr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(s), serr))
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) CaptureExceptionWithTags(err error, tags map[string]string) error {
	var errs []error
	for _, s := range m {
		var serr error
		if ts, ok := s.(TaggedSink); ok {
			serr = ts.CaptureExceptionWithTags(err, tags)
		} else {
			serr = s.CaptureException(err)
		}
		if serr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(s), serr))
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Flush(timeout time.Duration) bool {
	ok := true
	for _, s := range m {
		if f, isFlusher := s.(flusher); isFlusher {
			ok = f.Flush(timeout) && ok
		}
	}
	return ok
}

func (MultiSink) Name() string { return "multi" }

func sinkName(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
