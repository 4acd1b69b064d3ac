// Package jobs runs bulk operations in the background. Jobs are queued in a
// bounded channel and executed one at a time by a single worker; their status
// is persisted so HTTP clients can poll it.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ledgerline/propops/internal/conf"
	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/observability"
)

// Job kinds.
const (
	KindReprocess  = "utilities.reprocess"
	KindResetTypes = "utilities.reset_types"
)

const (
	// saveTimeout bounds each status write so a slow database cannot wedge the worker.
	saveTimeout = 5 * time.Second
	// progressInterval throttles progress writes while a job runs.
	progressInterval = time.Second
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job runner is stopped")
)

// Outcome is what a job reports when it returns.
type Outcome struct {
	Processed int
	Errors    []errors.ItemError
	// Result is stored as JSON on the job.
	Result any
}

// Func performs one job. progress may be called with the running count of
// processed records. Per-item failures go in Outcome.Errors; a returned error
// fails the whole job.
type Func func(ctx context.Context, progress func(processed int)) (Outcome, error)

type task struct {
	job *entities.Job
	fn  Func
}

// Runner owns the job queue and its worker.
type Runner struct {
	repo     repository.JobRepository
	reporter *observability.Reporter
	metrics  *observability.Metrics
	log      logger.Logger
	timeout  time.Duration

	handlers   map[string]Func
	handlersMu sync.RWMutex

	queue   chan task
	stopCh  chan struct{}
	stopped bool
	mu      sync.RWMutex // guards stopped against concurrent Enqueue

	baseCtx context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

// NewRunner creates a runner; call Start to begin processing.
// reporter and metrics may be nil.
func NewRunner(repo repository.JobRepository, cfg conf.JobsConfig, reporter *observability.Reporter,
	metrics *observability.Metrics, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		repo:     repo,
		reporter: reporter,
		metrics:  metrics,
		log:      log.Module("jobs"),
		timeout:  cfg.Timeout.Std(),
		handlers: make(map[string]Func),
		queue:    make(chan task, size),
		stopCh:   make(chan struct{}),
		baseCtx:  ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Register binds kind to fn. Registering a kind twice replaces the handler.
func (r *Runner) Register(kind string, fn Func) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers[kind] = fn
}

func (r *Runner) handler(kind string) (Func, bool) {
	r.handlersMu.RLock()
	defer r.handlersMu.RUnlock()
	fn, ok := r.handlers[kind]
	return fn, ok
}

// Start marks jobs left queued or running by a previous process as failed and
// starts the worker. Calling Start more than once has no further effect.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return nil
	}
	orphaned, err := r.repo.FailUnfinished(ctx, "interrupted by restart")
	if err != nil {
		r.started.Store(false)
		return err
	}
	if orphaned > 0 {
		r.log.Warn("marked interrupted jobs failed", logger.Int64("count", orphaned))
	}
	go r.processLoop()
	return nil
}

// Enqueue records a queued job of kind and hands it to the worker. It never
// blocks: a full queue fails the job immediately with ErrQueueFull.
func (r *Runner) Enqueue(ctx context.Context, kind string) (*entities.Job, error) {
	fn, ok := r.handler(kind)
	if !ok {
		return nil, errors.NewValidation("kind", "unknown job kind %q", kind)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return nil, ErrStopped
	}

	job := &entities.Job{ID: uuid.NewString(), Kind: kind, Status: entities.JobQueued}
	if err := r.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	select {
	case r.queue <- task{job: job, fn: fn}:
		r.metrics.SetQueueDepth(len(r.queue))
		r.log.Info("job queued", logger.String("job_id", job.ID), logger.String("kind", kind))
		return job, nil
	default:
		now := time.Now()
		job.Status = entities.JobFailed
		job.Failure = ErrQueueFull.Error()
		job.FinishedAt = &now
		r.save(job)
		return nil, ErrQueueFull
	}
}

// RunSync executes a job of kind on the calling goroutine and returns its
// final record. The CLI uses it so bulk operations leave the same audit trail.
func (r *Runner) RunSync(ctx context.Context, kind string) (*entities.Job, error) {
	fn, ok := r.handler(kind)
	if !ok {
		return nil, errors.NewValidation("kind", "unknown job kind %q", kind)
	}
	job := &entities.Job{ID: uuid.NewString(), Kind: kind, Status: entities.JobQueued}
	if err := r.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	r.execute(ctx, task{job: job, fn: fn})
	return job, nil
}

// Get returns the job with id.
func (r *Runner) Get(ctx context.Context, id string) (*entities.Job, error) {
	job, err := r.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, &errors.NotFoundError{Entity: "job", ID: id}
		}
		return nil, err
	}
	return job, nil
}

// Stop refuses new jobs, lets the worker drain the queue and waits for it.
// If ctx ends first the running job's context is canceled, so the remaining
// jobs fail fast, and ctx.Err is returned once the worker exits. Safe to call
// multiple times.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.stopCh)
	}
	r.mu.Unlock()

	if !r.started.Load() {
		r.cancel()
		return nil
	}
	select {
	case <-r.done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-r.done
		return ctx.Err()
	}
}

// processLoop runs queued jobs until Stop, then drains what is left.
func (r *Runner) processLoop() {
	defer close(r.done)
	for {
		select {
		case t := <-r.queue:
			r.metrics.SetQueueDepth(len(r.queue))
			r.execute(r.baseCtx, t)
		case <-r.stopCh:
			for {
				select {
				case t := <-r.queue:
					r.metrics.SetQueueDepth(len(r.queue))
					r.execute(r.baseCtx, t)
				default:
					return
				}
			}
		}
	}
}

func (r *Runner) execute(parent context.Context, t task) {
	job := t.job
	log := r.log.With(logger.String("job_id", job.ID), logger.String("kind", job.Kind))

	started := time.Now()
	job.Status = entities.JobRunning
	job.StartedAt = &started
	r.save(job)
	log.Info("job started")

	ctx := parent
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, r.timeout)
		defer cancel()
	}

	throttle := rate.Sometimes{First: 1, Interval: progressInterval}
	progress := func(processed int) {
		job.Processed = processed
		throttle.Do(func() { r.save(job) })
	}

	out, err := safeCall(ctx, t.fn, progress)

	finished := time.Now()
	job.FinishedAt = &finished
	if out.Processed > 0 {
		job.Processed = out.Processed
	}
	job.Errors = out.Errors
	if out.Result != nil {
		if raw, mErr := json.Marshal(out.Result); mErr == nil {
			job.Result = raw
		} else {
			log.Warn("job result not serializable", logger.Error(mErr))
		}
	}

	if err != nil {
		job.Status = entities.JobFailed
		job.Failure = truncate(err.Error(), 1000)
		r.reporter.CaptureError(err, map[string]string{"job_kind": job.Kind, "job_id": job.ID})
		log.Error("job failed", logger.Error(err), logger.Duration("took", finished.Sub(started)))
	} else {
		job.Status = entities.JobSucceeded
		log.Info("job finished",
			logger.Int("processed", job.Processed),
			logger.Int("item_errors", len(job.Errors)),
			logger.Duration("took", finished.Sub(started)))
	}
	r.save(job)
	r.metrics.JobFinished(job.Kind, job.Status, finished.Sub(started))
}

// save persists job status. Failures are logged; the worker keeps going.
func (r *Runner) save(job *entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.repo.Save(ctx, job); err != nil {
		r.log.Error("failed to save job status",
			logger.String("job_id", job.ID),
			logger.String("status", job.Status),
			logger.Error(err))
	}
}

// safeCall invokes fn with panic recovery so a panicking job cannot kill the
// worker goroutine. A panic becomes the job's error.
func safeCall(ctx context.Context, fn Func, progress func(int)) (out Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v\n%s", p, debug.Stack())
		}
	}()
	return fn(ctx, progress)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
