// Package worker contains the background pipeline that emails the wellbeing
// team when an assessment comes out at high or critical risk. It is decoupled
// from the wizard and HTTP layers: they only see the Enqueuer interface and
// the Notifier observer, never the concrete Runner or Job types.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ─── INTERFACES ───────────────────────────────────────────────────────────────

// Enqueuer is the narrow interface used to hand off an alert after an
// assessment is saved. The concrete implementation is *Runner. In tests, any
// struct with an Enqueue method satisfies the interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, assessmentID uuid.UUID) error
}

// Runnable is one unit of work keyed by assessment id. *Job satisfies it.
type Runnable interface {
	Run(ctx context.Context, assessmentID uuid.UUID) error
}

// PendingStore is the persistence the Runner needs for recovery and failure
// bookkeeping. *store.Store satisfies it.
type PendingStore interface {
	ListPendingAlerts(ctx context.Context) ([]uuid.UUID, error)
	MarkAlertFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ErrQueueFull is returned by Enqueue when the channel buffer is exhausted.
var ErrQueueFull = errors.New("worker: queue is full, alert will be picked up by poller")

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. All fields have
// sensible defaults if zero-valued; call DefaultRunnerConfig() to get them.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 2.
	Workers int

	// PollInterval is how often the fallback poller checks ListPendingAlerts
	// for alerts missed by the in-process channel (e.g. after a restart).
	// Default: 30s.
	PollInterval time.Duration

	// JobTimeout is the per-attempt context deadline. Default: 30s.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts before the alert is marked as
	// permanently failed. Default: 3.
	MaxRetries int

	// Backoff is the base of the exponential back-off between attempts.
	// Attempt n waits Backoff * 2^n. Default: 1s.
	Backoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      2,
		PollInterval: 30 * time.Second,
		JobTimeout:   30 * time.Second,
		MaxRetries:   3,
		Backoff:      time.Second,
	}
}

// Runner manages a pool of worker goroutines. It accepts jobs via an in-process
// channel (fast path, used on assessment completion) and also polls the
// database periodically to pick up alerts that were in flight when the
// process last stopped (recovery path).
type Runner struct {
	job    Runnable
	store  PendingStore
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan uuid.UUID
	wg    sync.WaitGroup

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(job Runnable, st PendingStore, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}

	return &Runner{
		job:    job,
		store:  st,
		cfg:    cfg,
		logger: logger,
		// Buffer = Workers*8 so Enqueue never blocks under normal load.
		queue:    make(chan uuid.UUID, cfg.Workers*8),
		inFlight: make(map[uuid.UUID]struct{}),
	}
}

// Enqueue pushes an assessment id onto the in-process channel. If the channel
// is full it returns ErrQueueFull rather than blocking the caller.
func (r *Runner) Enqueue(_ context.Context, assessmentID uuid.UUID) error {
	if !r.claim(assessmentID) {
		return nil
	}
	select {
	case r.queue <- assessmentID:
		r.logger.Info("worker: enqueued alert", "assessment_id", assessmentID)
		return nil
	default:
		r.release(assessmentID)
		return ErrQueueFull
	}
}

// Start launches the worker pool and the fallback poller. It blocks until ctx
// is cancelled and every goroutine has returned.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// claim marks id as queued or running. It reports false when it already is,
// so the poller and the fast path never run the same alert twice at once.
func (r *Runner) claim(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[id]; ok {
		return false
	}
	r.inFlight[id] = struct{}{}
	return true
}

func (r *Runner) release(id uuid.UUID) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Debug("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("worker: goroutine stopping")
			return
		case assessmentID := <-r.queue:
			r.runWithRetry(ctx, assessmentID, log)
			r.release(assessmentID)
		}
	}
}

// poll queries the database on PollInterval for alerts that were not
// delivered via the channel.
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// Run once immediately on startup to pick up anything from before restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	ids, err := r.store.ListPendingAlerts(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("worker: poll failed", "error", err)
		}
		return
	}
	for _, id := range ids {
		if !r.claim(id) {
			continue
		}
		select {
		case r.queue <- id:
			r.logger.Debug("worker: poller enqueued alert", "assessment_id", id)
		default:
			// Queue full; picked up next poll cycle.
			r.release(id)
		}
	}
}

// runWithRetry executes the job up to MaxRetries times. After exhausting
// retries it calls MarkAlertFailed so the alert is not picked up again.
func (r *Runner) runWithRetry(ctx context.Context, assessmentID uuid.UUID, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, assessmentID)
		cancel()

		if lastErr == nil {
			log.Info("worker: job completed", "assessment_id", assessmentID, "attempt", attempt)
			return
		}

		log.Warn("worker: job attempt failed",
			"assessment_id", assessmentID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: 2, 4, 8 … times the base.
			backoff := r.cfg.Backoff * time.Duration(1<<attempt)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}

	log.Error("worker: job permanently failed", "assessment_id", assessmentID, "error", lastErr)
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.store.MarkAlertFailed(failCtx, assessmentID, lastErr.Error()); err != nil {
		log.Error("worker: failed to mark alert as failed", "assessment_id", assessmentID, "error", err)
	}
}
