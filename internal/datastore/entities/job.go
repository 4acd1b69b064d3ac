package entities

import (
	"time"

	"github.com/ledgerline/propops/internal/errors"
)

// Job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job tracks a background bulk operation so the admin UI can poll it.
type Job struct {
	ID         string             `gorm:"primaryKey;size:36" json:"id"`
	Kind       string             `gorm:"size:64;not null;index" json:"kind"`
	Status     string             `gorm:"size:16;not null;index" json:"status"`
	Processed  int                `gorm:"not null;default:0" json:"processed"`
	Errors     []errors.ItemError `gorm:"serializer:json;type:text" json:"errors"`
	Result     JSONText           `json:"result,omitempty"`
	Failure    string             `gorm:"size:1000;default:''" json:"failure,omitempty"`
	CreatedAt  time.Time          `gorm:"autoCreateTime" json:"created_at"`
	StartedAt  *time.Time         `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at"`
}

// TableName returns the table name for GORM.
func (Job) TableName() string {
	return "jobs"
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
