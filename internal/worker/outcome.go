package worker

import (
	"github.com/joshu-sajeev/jobq/common"
	"github.com/joshu-sajeev/jobq/internal/models"
)

type OutcomeKind int

const (
	Success OutcomeKind = iota
	RetryableFailure
	TerminalFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case TerminalFailure:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the result of one processor invocation.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// classify decides what happens to job after an attempt that returned err.
// A job that has used its last attempt, or whose error was marked
// Permanent, fails terminally.
func classify(job *models.Job, err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: Success}
	case common.IsPermanent(err), job.Exhausted():
		return Outcome{Kind: TerminalFailure, Err: err}
	default:
		return Outcome{Kind: RetryableFailure, Err: err}
	}
}
