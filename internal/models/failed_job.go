package models

import (
	"time"

	"gorm.io/datatypes"
)

// FailedJob archives a job that exhausted its retries so it can be inspected
// or replayed later.
type FailedJob struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	JobID       string         `gorm:"type:varchar(64);not null;index"`
	Queue       string         `gorm:"type:varchar(255);not null;index"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	Error       string         `gorm:"type:text"`
	Attempts    int            `gorm:"not null;default:0"`
	MaxAttempts int            `gorm:"not null;default:1"`
	FailedAt    time.Time      `gorm:"not null"`
	ReplayedAt  *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}
