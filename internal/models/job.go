package models

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusDelayed  JobStatus = "delayed"
	JobStatusInFlight JobStatus = "inflight"
	JobStatusDead     JobStatus = "dead"
)

// Job is a unit of work as stored by the broker. Payload is immutable once
// enqueued; AttemptsMade is bumped every time the job is claimed.
type Job struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Payload      json.RawMessage `json:"payload"`
	AttemptsMade int             `json:"attempts_made"`
	MaxAttempts  int             `json:"max_attempts"`
	Status       JobStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Exhausted reports whether the job has used its whole attempt budget.
func (j *Job) Exhausted() bool {
	return j.AttemptsMade >= j.MaxAttempts
}

// Clone returns a deep copy so brokers never share payload buffers with callers.
func (j *Job) Clone() *Job {
	c := *j
	c.Payload = append(json.RawMessage(nil), j.Payload...)
	return &c
}
