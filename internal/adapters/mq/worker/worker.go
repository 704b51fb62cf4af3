// Package worker runs the background resolution pipeline: it drains the
// placement queue and settles each pending placement into its final
// state via the analyzer and avatar resolver.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/sailorworks/verigrant/internal/adapters/mq/queue"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Analyzer produces an alignment verdict for a username.
type Analyzer interface {
	Analyze(ctx context.Context, username string) model.AlignmentResult
}

// AvatarResolver resolves a displayable avatar source for a username.
// It never fails; a fallback asset is returned on error.
type AvatarResolver interface {
	Resolve(ctx context.Context, username string) string
}

// Applier settles a pending placement into its final state.
type Applier interface {
	ApplyManual(ctx context.Context, placementID, avatarSource string) error
	ApplyAI(ctx context.Context, placementID string, result model.AlignmentResult, avatarSource string) error
	Rollback(ctx context.Context, placementID, message string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes placement resolution jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for resolving placements.
type InMemoryWorker struct {
	queue    Queue
	analyzer Analyzer
	avatars  AvatarResolver
	applier  Applier
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, analyzer Analyzer, avatars AvatarResolver, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		analyzer: analyzer,
		avatars:  avatars,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	jobChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobChan:
			if !ok {
				return
			}

			metrics.RecordQueueDequeue()
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob settles a single pending placement.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	switch job.Mode {
	case model.ModeManual:
		return w.resolveManual(ctx, job)
	case model.ModeAI:
		return w.resolveAI(ctx, job)
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "unknown_mode")
		return fmt.Errorf("unknown placement mode %q for %s", job.Mode, job.PlacementID)
	}
}

// resolveManual only needs an avatar; the position the user chose is
// already final. Avatar resolution cannot fail, so a manual placement
// is never rolled back.
func (w *InMemoryWorker) resolveManual(ctx context.Context, job Job) error {
	src := w.avatars.Resolve(ctx, job.Username)
	if err := w.applier.ApplyManual(ctx, job.PlacementID, src); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_manual")
		return fmt.Errorf("apply manual placement %s: %w", job.PlacementID, err)
	}
	return nil
}

// resolveAI analyzes the profile first: an error verdict rolls the
// optimistic placement back, a usable one settles it at the analyzed
// position.
func (w *InMemoryWorker) resolveAI(ctx context.Context, job Job) error {
	result := w.analyzer.Analyze(ctx, job.Username)

	if result.IsError || result.Explanation == "" {
		msg := result.Message
		if msg == "" {
			msg = "Could not analyze this profile. Please try again."
		}
		if err := w.applier.Rollback(ctx, job.PlacementID, msg); err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "rollback")
			return fmt.Errorf("roll back placement %s: %w", job.PlacementID, err)
		}
		return nil
	}

	src := w.avatars.Resolve(ctx, job.Username)
	if err := w.applier.ApplyAI(ctx, job.PlacementID, result, src); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_ai")
		return fmt.Errorf("apply analyzed placement %s: %w", job.PlacementID, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	analyzer Analyzer
	avatars  AvatarResolver
	applier  Applier

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, analyzer Analyzer, avatars AvatarResolver, applier Applier) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		analyzer: analyzer,
		avatars:  avatars,
		applier:  applier,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q,
			analyzer,
			avatars,
			applier,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// Close the queue first so no new jobs land while draining.
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
