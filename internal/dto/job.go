package dto

import (
	"encoding/json"
	"time"
)

// EnqueueJobDTO is the body of POST /queues/:queue/jobs.
type EnqueueJobDTO struct {
	Payload     json.RawMessage `json:"payload" validate:"required"`
	MaxAttempts int             `json:"max_attempts" validate:"gte=0,lte=25"`
	DelayMs     int64           `json:"delay_ms" validate:"gte=0"`
}

type EnqueueResponseDTO struct {
	ID    string `json:"id"`
	Queue string `json:"queue"`
}

type DrainResponseDTO struct {
	Queue   string `json:"queue"`
	Drained int    `json:"drained"`
}

type QueueStatsDTO struct {
	Queue    string `json:"queue"`
	Pending  int64  `json:"pending"`
	Delayed  int64  `json:"delayed"`
	InFlight int64  `json:"in_flight"`
	Dead     int64  `json:"dead"`
}

type FailedJobDTO struct {
	ID          uint            `json:"id"`
	JobID       string          `json:"job_id"`
	Queue       string          `json:"queue"`
	Payload     json.RawMessage `json:"payload"`
	Error       string          `json:"error"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	FailedAt    time.Time       `json:"failed_at"`
	ReplayedAt  *time.Time      `json:"replayed_at,omitempty"`
}
