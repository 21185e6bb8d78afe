package common

import (
	"errors"
	"fmt"
)

// ConfigurationError is returned at startup when broker or sink settings are
// missing, malformed or unreachable. It is never retried.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Setting == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InvalidArgumentError is returned when a caller passes an unusable value,
// e.g. a nil processor at registration time.
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s %s", e.Arg, e.Reason)
}

// RetryableJobError wraps a processor failure that still has attempts left.
type RetryableJobError struct {
	Queue       string
	JobID       string
	Attempt     int
	MaxAttempts int
	Err         error
}

func (e *RetryableJobError) Error() string {
	return fmt.Sprintf("%s job %s failed on attempt %d/%d: %v", e.Queue, e.JobID, e.Attempt, e.MaxAttempts, e.Err)
}

func (e *RetryableJobError) Unwrap() error { return e.Err }

// TerminalJobError wraps the failure that exhausted a job's retry budget.
type TerminalJobError struct {
	Queue       string
	JobID       string
	Attempt     int
	MaxAttempts int
	Err         error
}

func (e *TerminalJobError) Error() string {
	return fmt.Sprintf("%s job %s failed terminally after %d/%d attempts: %v", e.Queue, e.JobID, e.Attempt, e.MaxAttempts, e.Err)
}

func (e *TerminalJobError) Unwrap() error { return e.Err }

// SinkTransportError means the error-reporting sink itself failed. It is
// logged and swallowed by the reporter.
type SinkTransportError struct {
	Sink string
	Err  error
}

func (e *SinkTransportError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkTransportError) Unwrap() error { return e.Err }

// ErrLeaseExpired is the cause recorded for a job that came back from a dead
// consumer after its final attempt had already been handed out.
var ErrLeaseExpired = errors.New("lease expired after final attempt")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a processor error as not worth retrying. The job is
// escalated immediately regardless of the attempts left.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
