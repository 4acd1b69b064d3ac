package alerting

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/utilities"
)

// Source produces a metric snapshot for one evaluation pass.
type Source interface {
	Collect(ctx context.Context) (Snapshot, error)
}

// Sources merges several sources; later sources win on shared metrics.
type Sources []Source

func (s Sources) Collect(ctx context.Context) (Snapshot, error) {
	out := Snapshot{}
	for _, src := range s {
		snap, err := src.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out.Merge(snap)
	}
	return out, nil
}

// PushedSource holds the latest values reported by external collaborators,
// such as the sync job's consecutive failure count.
type PushedSource struct {
	mu     sync.RWMutex
	values Snapshot
}

func NewPushedSource() *PushedSource {
	return &PushedSource{values: Snapshot{}}
}

// Push records values, replacing earlier values of the same metrics.
func (p *PushedSource) Push(values Snapshot) {
	p.mu.Lock()
	p.values.Merge(values)
	p.mu.Unlock()
}

func (p *PushedSource) Collect(context.Context) (Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values), nil
}

// UnmappedSuggester is the slice of utilities.Mapper used by LocalSource.
type UnmappedSuggester interface {
	SuggestUnmapped(ctx context.Context, windowDays int) ([]utilities.Suggestion, error)
}

// LocalSource computes metrics from the database.
type LocalSource struct {
	suggester  UnmappedSuggester
	jobs       repository.JobRepository
	windowDays int
	now        func() time.Time
}

func NewLocalSource(suggester UnmappedSuggester, jobs repository.JobRepository, windowDays int) *LocalSource {
	return &LocalSource{suggester: suggester, jobs: jobs, windowDays: windowDays, now: time.Now}
}

// Collect reports unmapped GL accounts that look like utilities and jobs that
// failed in the last 24 hours.
func (l *LocalSource) Collect(ctx context.Context) (Snapshot, error) {
	suggestions, err := l.suggester.SuggestUnmapped(ctx, l.windowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to collect unmapped accounts: %w", err)
	}
	var unmapped int
	for i := range suggestions {
		if suggestions[i].SuggestedTypeID != nil {
			unmapped++
		}
	}

	failed, err := l.jobs.CountFailedSince(ctx, l.now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to collect failed jobs: %w", err)
	}

	return Snapshot{
		MetricUnmappedAccounts: float64(unmapped),
		MetricFailedJobs:       float64(failed),
	}, nil
}
