// Package cache stores analysis results keyed by normalized username.
//
// The cache is strictly best-effort: any failure on the external cache
// service is swallowed and treated as a miss, so cache unavailability
// can never block or fail an analysis.
package cache

import (
	"context"
	"time"

	"github.com/sailorworks/verigrant/internal/domain/model"
)

// DefaultTTL is the analysis retention window.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is the analysis cache contract.
type Cache interface {
	// Get returns the cached result for key, or ok=false on miss or on
	// any cache-side failure.
	Get(ctx context.Context, key string) (*model.AlignmentResult, bool)

	// Set stores value under key for ttl. Failures are swallowed.
	Set(ctx context.Context, key string, value *model.AlignmentResult, ttl time.Duration)
}
