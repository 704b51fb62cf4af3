package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

const defaultDebounce = time.Second

// DebouncedSaver coalesces rapid successive SaveAll calls (e.g. during a
// drag) into one trailing-edge write. Close guarantees a final flush, so
// at most the last debounce window of edits is ever at risk.
type DebouncedSaver struct {
	store    Store
	interval time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending []model.Placement
	dirty   bool
	closed  bool
}

// SaverOption applies a configuration option to the DebouncedSaver.
type SaverOption func(*DebouncedSaver)

// WithInterval sets the trailing-edge debounce window.
func WithInterval(d time.Duration) SaverOption {
	return func(s *DebouncedSaver) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSaverLogger sets a custom logger for the saver.
func WithSaverLogger(l logger.Logger) SaverOption {
	return func(s *DebouncedSaver) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewDebouncedSaver wraps store with a trailing-edge debounce.
func NewDebouncedSaver(store Store, opts ...SaverOption) *DebouncedSaver {
	s := &DebouncedSaver{
		store:    store,
		interval: defaultDebounce,
		logger:   logger.Get().Named("saver"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save records the latest chart snapshot and (re)arms the flush timer.
// Only the most recent snapshot is written when the timer fires.
func (s *DebouncedSaver) Save(placements []model.Placement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.pending = make([]model.Placement, len(placements))
	copy(s.pending, placements)
	s.dirty = true

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.interval, func() {
		s.flush(context.Background())
	})
}

// Flush writes any pending snapshot immediately.
func (s *DebouncedSaver) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.flush(ctx)
}

// Close flushes pending work and stops the saver.
func (s *DebouncedSaver) Close(ctx context.Context) {
	s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *DebouncedSaver) flush(ctx context.Context) {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	snapshot := s.pending
	s.pending = nil
	s.dirty = false
	s.mu.Unlock()

	if err := s.store.SaveAll(ctx, snapshot); err != nil {
		// In-memory state stays authoritative for the session; the next
		// save brings the durable store back in line.
		metrics.RecordStoreError()
		s.logger.Warn(ctx, "durable save failed", logger.Error(err))
	}
}
