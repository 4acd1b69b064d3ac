package repository

import (
	"context"
	"time"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

// JobRepository persists background job status.
type JobRepository interface {
	Create(ctx context.Context, job *entities.Job) error
	Get(ctx context.Context, id string) (*entities.Job, error)
	Save(ctx context.Context, job *entities.Job) error
	ListRecent(ctx context.Context, kind string, limit int) ([]entities.Job, error)
	// FailUnfinished marks queued and running jobs failed. Called at startup
	// for jobs orphaned by a previous process.
	FailUnfinished(ctx context.Context, reason string) (int64, error)
	// CountFailedSince counts jobs that finished failed at or after since.
	CountFailedSince(ctx context.Context, since time.Time) (int64, error)
}
