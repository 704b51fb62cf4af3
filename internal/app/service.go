// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	resolutionqueue "github.com/sailorworks/verigrant/internal/adapters/mq/queue"
	workerpool "github.com/sailorworks/verigrant/internal/adapters/mq/worker"
	"github.com/sailorworks/verigrant/internal/adapters/repository"
	"github.com/sailorworks/verigrant/internal/chain"
	"github.com/sailorworks/verigrant/internal/commit"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/internal/domain/nonce"
	"github.com/sailorworks/verigrant/internal/lifecycle"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

// ErrChainDisabled is returned for chain-backed operations when no RPC
// registry was configured.
var ErrChainDisabled = errors.New("chain features are not configured")

// Service wires the placement lifecycle, resolution pipeline and chain
// protocol behind the API dependency surface.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	saver     *repository.DebouncedSaver
	queue     *resolutionqueue.InMemoryQueue
	pool      *workerpool.Pool
	chart     *lifecycle.Lifecycle
	protocol  *commit.Protocol
	registry  chain.Registry
	watcher   *chain.MintWatcher
	analyzer  workerpool.Analyzer
	avatars   workerpool.AvatarResolver

	// Configuration
	workerCount  int
	queueSize    int
	storePath    string
	saveDebounce time.Duration
	nonceTTL     time.Duration
	pollInterval time.Duration

	// State
	started   bool
	startedAt time.Time
	runCtx    context.Context
	runCancel context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of resolution workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the resolution queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStorePath sets the sqlite database path.
func WithStorePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.storePath = path
		}
	}
}

// WithStore injects a pre-built store, bypassing the sqlite default.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSaveDebounce sets the durable-save coalescing window.
func WithSaveDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.saveDebounce = d
		}
	}
}

// WithAnalyzer sets the profile analyzer used by the workers.
func WithAnalyzer(a workerpool.Analyzer) Option {
	return func(s *Service) {
		if a != nil {
			s.analyzer = a
		}
	}
}

// WithAvatarResolver sets the avatar resolver used by the workers.
func WithAvatarResolver(r workerpool.AvatarResolver) Option {
	return func(s *Service) {
		if r != nil {
			s.avatars = r
		}
	}
}

// WithRegistry sets the on-chain persona registry.
func WithRegistry(r chain.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithNonceTTL sets the commit nonce lifetime.
func WithNonceTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.nonceTTL = d
		}
	}
}

// WithMintPollInterval sets the mint watcher polling cadence.
func WithMintPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    1024,
		storePath:    "verigrant.db",
		saveDebounce: time.Second,
		nonceTTL:     5 * time.Minute,
		pollInterval: 4 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.analyzer == nil || s.avatars == nil {
		return errors.New("analyzer and avatar resolver are required")
	}

	s.logger.Info(ctx, "starting alignment chart service...")

	if s.store == nil {
		s.store = repository.NewSQLiteStore(s.storePath)
	}
	if err := s.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	s.saver = repository.NewDebouncedSaver(s.store, repository.WithInterval(s.saveDebounce))
	s.queue = resolutionqueue.NewInMemoryQueue(resolutionqueue.WithCapacity(s.queueSize))
	s.chart = lifecycle.New(s.store, s.queue, s.saver)

	if err := s.chart.Load(ctx); err != nil {
		return fmt.Errorf("load chart: %w", err)
	}

	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.analyzer, s.avatars, s.chart)
	s.pool.Start(s.runCtx)

	s.protocol = commit.NewProtocol(nonce.NewStore(nonce.WithTTL(s.nonceTTL)), s.registry)
	if s.registry != nil {
		s.watcher = chain.NewMintWatcher(s.registry, chain.WithPollInterval(s.pollInterval))
	}

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "alignment chart service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("storePath", s.storePath),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping alignment chart service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	if s.runCancel != nil {
		s.runCancel()
	}
	if s.saver != nil {
		s.saver.Close(ctx)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "store close", logger.Error(err))
		}
	}
	if closer, ok := s.registry.(interface{ Close() }); ok {
		closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "alignment chart service stopped")
}

// AddPlacement adds a pending entry and schedules its resolution.
func (s *Service) AddPlacement(ctx context.Context, username string, mode model.Mode) (model.Placement, error) {
	return s.chart.AddPlacement(ctx, username, mode)
}

// Placements returns the current chart.
func (s *Service) Placements(ctx context.Context) []model.Placement {
	return s.chart.Placements(ctx)
}

// MovePlacement repositions a manually placed entry.
func (s *Service) MovePlacement(ctx context.Context, id string, pos model.Position) (model.Placement, error) {
	return s.chart.Move(ctx, id, pos)
}

// RemovePlacement deletes one entry.
func (s *Service) RemovePlacement(ctx context.Context, id string) error {
	return s.chart.Remove(ctx, id)
}

// ClearPlacements wipes the chart.
func (s *Service) ClearPlacements(ctx context.Context) error {
	return s.chart.Clear(ctx)
}

// Events exposes the lifecycle notification stream.
func (s *Service) Events() <-chan lifecycle.Event {
	return s.chart.Events()
}

// PrepareCommit issues a nonce-bound message to sign.
func (s *Service) PrepareCommit(ctx context.Context, address string) (commit.Prepared, error) {
	if s.registry == nil {
		return commit.Prepared{}, ErrChainDisabled
	}
	return s.protocol.Prepare(ctx, address)
}

// VerifyCommit proves wallet ownership and writes the persona on chain.
func (s *Service) VerifyCommit(ctx context.Context, placements []model.Placement, address, signature, n string) (commit.Result, error) {
	if s.registry == nil {
		return commit.Result{}, ErrChainDisabled
	}
	return s.protocol.Verify(ctx, placements, address, signature, n)
}

// Snapshot reads the committed persona for address.
func (s *Service) Snapshot(ctx context.Context, address string) (model.PersonaSnapshot, error) {
	if s.registry == nil {
		return model.PersonaSnapshot{}, ErrChainDisabled
	}
	return s.registry.GetPersona(ctx, address)
}

// Mint submits a mint request for an address with a committed snapshot
// and watches for fulfillment in the background.
func (s *Service) Mint(ctx context.Context, address string) (string, error) {
	if s.registry == nil {
		return "", ErrChainDisabled
	}

	snapshot, err := s.registry.GetPersona(ctx, address)
	if err != nil {
		return "", err
	}
	if !snapshot.Exists {
		return "", chain.ErrNoSnapshot
	}

	txHash, err := s.registry.RequestMint(ctx, address)
	if err != nil {
		return "", err
	}
	metrics.RecordMintRequest()

	go s.watcher.Watch(s.runCtx, address, func(tokenID uint64) {
		s.chart.PublishMint(address, tokenID)
	})

	return txHash, nil
}

// GetStats returns service statistics for the stats endpoint.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"chainEnabled": s.registry != nil,
	}
	if s.started {
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		stats["placements"] = s.chart.Count(context.Background())
		stats["queueDepth"] = s.queue.Len(context.Background())
	}
	return stats
}
