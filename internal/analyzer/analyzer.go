// Package analyzer derives alignment scores for a username from scraped
// profile data and a generative scoring model.
//
// Analyze is total: every input, including every network and model
// failure, yields a well-formed AlignmentResult. Callers drive optimistic
// UI state off the return value, so an escaped error would strand a
// placement in its loading state.
package analyzer

import (
	"context"
	"errors"
	"time"

	"github.com/sailorworks/verigrant/internal/analyzer/cache"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/internal/scraper"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

// cacheKeyPrefix versions the cache namespace; bumping it invalidates
// every previously stored analysis.
const cacheKeyPrefix = "analysis-v3:"

const defaultMaxPosts = 10

// Analyzer orchestrates cache -> fetch -> prompt -> model.
type Analyzer struct {
	source   scraper.Source
	model    Model
	cache    cache.Cache
	ttl      time.Duration
	maxPosts int
	logger   logger.Logger
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithTTL sets the cache retention window for successful analyses.
func WithTTL(ttl time.Duration) Option {
	return func(a *Analyzer) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithMaxPosts caps how many recent posts feed the prompt.
func WithMaxPosts(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxPosts = n
		}
	}
}

// WithLogger sets a custom logger for the analyzer.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Analyzer over the given profile source, scoring model
// and analysis cache.
func New(source scraper.Source, scoringModel Model, c cache.Cache, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:   source,
		model:    scoringModel,
		cache:    c,
		ttl:      cache.DefaultTTL,
		maxPosts: defaultMaxPosts,
		logger:   logger.Get().Named("analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CacheKey returns the cache key for a raw username.
func CacheKey(username string) string {
	return cacheKeyPrefix + model.UsernameKey(username)
}

// Analyze scores username. It never returns an error; failures come back
// as structured results with IsError set and neutral (0,0) scores.
func (a *Analyzer) Analyze(ctx context.Context, username string) model.AlignmentResult {
	start := time.Now()
	defer func() {
		metrics.RecordAnalysisLatency(float64(time.Since(start).Milliseconds()))
	}()

	normalized := model.NormalizeUsername(username)
	key := CacheKey(normalized)

	if cached, ok := a.cache.Get(ctx, key); ok && !cached.IsError {
		metrics.RecordAnalysisCacheHit()
		result := *cached
		result.Cached = true
		return result
	}
	metrics.RecordAnalysisCacheMiss()

	profile, err := a.source.FetchProfile(ctx, normalized)
	if err != nil {
		return a.errorResult(ctx, normalized, classifyFetchError(err), err)
	}

	if profile.Empty() {
		return a.errorResult(ctx, normalized, msgInsufficientData, nil)
	}

	score, err := a.model.Score(ctx, buildPrompt(profile, a.maxPosts))
	if err != nil {
		return a.errorResult(ctx, normalized, classifyScoreError(err), err)
	}

	result := model.AlignmentResult{
		Explanation:   score.Explanation,
		LawfulChaotic: score.LawfulChaotic,
		GoodEvil:      score.GoodEvil,
	}

	// Fire-and-forget: a failed cache write never fails the analysis,
	// and error results are never cached.
	a.cache.Set(ctx, key, &result, a.ttl)

	return result
}

// errorResult builds the structured failure shape: neutral scores,
// IsError set, message chosen by failure class.
func (a *Analyzer) errorResult(ctx context.Context, username, message string, cause error) model.AlignmentResult {
	metrics.RecordAnalysisError()
	fields := []logger.Field{logger.String("username", username), logger.String("message", message)}
	if cause != nil {
		fields = append(fields, logger.Error(cause))
	}
	a.logger.Warn(ctx, "analysis failed", fields...)

	return model.AlignmentResult{
		IsError: true,
		Message: message,
	}
}

func classifyFetchError(err error) string {
	switch {
	case errors.Is(err, scraper.ErrNoProfile):
		return msgInsufficientData
	case errors.Is(err, scraper.ErrUserNotFound):
		return msgUserNotFound
	case errors.Is(err, scraper.ErrLoginFailed):
		return msgLoginFailed
	default:
		return msgGeneric
	}
}

func classifyScoreError(err error) string {
	switch {
	case errors.Is(err, ErrModelCredentials):
		return msgModelCredentials
	case errors.Is(err, ErrModelQuota):
		return msgModelQuota
	default:
		return msgGeneric
	}
}
