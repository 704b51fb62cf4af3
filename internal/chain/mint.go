package chain

import (
	"context"
	"time"

	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

// defaultPollInterval paces the fallback when log subscriptions are
// unavailable (plain HTTP RPC endpoints).
const defaultPollInterval = 4 * time.Second

// MintWatcher waits for a requested mint to be fulfilled. It prefers a
// log subscription and falls back to polling; either way the callback
// fires exactly once per Watch.
type MintWatcher struct {
	registry Registry
	interval time.Duration
	logger   logger.Logger
}

// WatcherOption applies a configuration option to the MintWatcher.
type WatcherOption func(*MintWatcher)

// WithPollInterval sets the fallback polling cadence.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *MintWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets a custom logger.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *MintWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewMintWatcher creates a watcher over the given registry.
func NewMintWatcher(registry Registry, opts ...WatcherOption) *MintWatcher {
	w := &MintWatcher{
		registry: registry,
		interval: defaultPollInterval,
		logger:   logger.Get().Named("mint-watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch blocks until the mint for address is fulfilled or ctx is done.
// onMint is invoked at most once, with the fulfilled token id.
func (w *MintWatcher) Watch(ctx context.Context, address string, onMint func(tokenID uint64)) {
	metrics.UpdateMintWatchActive(1)
	defer metrics.UpdateMintWatchActive(0)

	if tokenID, ok := w.watchSubscription(ctx, address); ok {
		w.fulfilled(ctx, address, tokenID, onMint)
		return
	}
	if ctx.Err() != nil {
		return
	}

	if tokenID, ok := w.watchPolling(ctx, address); ok {
		w.fulfilled(ctx, address, tokenID, onMint)
	}
}

func (w *MintWatcher) fulfilled(ctx context.Context, address string, tokenID uint64, onMint func(uint64)) {
	metrics.RecordMintFulfillment()
	w.logger.Info(ctx, "mint fulfilled",
		logger.String("address", address),
		logger.Any("tokenId", tokenID),
	)
	if onMint != nil {
		onMint(tokenID)
	}
}

// watchSubscription waits on a filtered log stream. ok is false when the
// subscription cannot be established or drops before fulfillment.
func (w *MintWatcher) watchSubscription(ctx context.Context, address string) (uint64, bool) {
	tokens, cancel, err := w.registry.SubscribeMints(ctx, address)
	if err != nil {
		w.logger.Debug(ctx, "subscription unavailable, falling back to polling", logger.Error(err))
		return 0, false
	}
	defer cancel()

	select {
	case <-ctx.Done():
		return 0, false
	case tokenID, ok := <-tokens:
		if !ok {
			return 0, false
		}
		return tokenID, true
	}
}

// watchPolling reads tokenOf on a ticker until fulfillment or teardown.
func (w *MintWatcher) watchPolling(ctx context.Context, address string) (uint64, bool) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return 0, false
		case <-ticker.C:
			tokenID, fulfilled, err := w.registry.TokenOf(ctx, address)
			if err != nil {
				w.logger.Warn(ctx, "mint poll failed", logger.Error(err))
				continue
			}
			if fulfilled {
				return tokenID, true
			}
		}
	}
}
