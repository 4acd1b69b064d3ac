package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/errors"
)

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *entities.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *jobRepository) Get(ctx context.Context, id string) (*entities.Job, error) {
	var job entities.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

func (r *jobRepository) Save(ctx context.Context, job *entities.Job) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (r *jobRepository) ListRecent(ctx context.Context, kind string, limit int) ([]entities.Job, error) {
	var out []entities.Job
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return out, nil
}

func (r *jobRepository) FailUnfinished(ctx context.Context, reason string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("status IN ?", []string{entities.JobQueued, entities.JobRunning}).
		Updates(map[string]any{
			"status":      entities.JobFailed,
			"failure":     reason,
			"finished_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to fail unfinished jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *jobRepository) CountFailedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("status = ? AND finished_at >= ?", entities.JobFailed, since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count failed jobs: %w", err)
	}
	return n, nil
}
