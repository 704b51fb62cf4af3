// Package avatar resolves a profile image for a username against a
// third-party avatar-proxy convention.
//
// Several candidate URLs are probed and the most "colorful" response
// wins: generic placeholder avatars are flat, real photos are not, so
// counting distinct sampled colors is a cheap realness heuristic.
package avatar

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	// Register decoders for the formats the proxy serves.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/pkg/logger"
	"github.com/sailorworks/verigrant/pkg/metrics"
)

// DefaultAsset is the local fallback when every candidate fails.
const DefaultAsset = "/assets/default-avatar.png"

// sampleGrid is the downscale edge used for color sampling.
const sampleGrid = 10

const fetchTimeout = 10 * time.Second

// Resolver probes avatar candidates and picks the best one.
type Resolver struct {
	baseURL    string
	fallback   string
	httpClient *http.Client
	logger     logger.Logger
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Resolver) {
		if hc != nil {
			r.httpClient = hc
		}
	}
}

// WithFallback overrides the local default asset.
func WithFallback(path string) Option {
	return func(r *Resolver) {
		if path != "" {
			r.fallback = path
		}
	}
}

// WithLogger sets a custom logger for the resolver.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver against the given avatar proxy root.
func New(baseURL string, opts ...Option) *Resolver {
	r := &Resolver{
		baseURL:    baseURL,
		fallback:   DefaultAsset,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger.Get().Named("avatar"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fallback returns the configured local default asset.
func (r *Resolver) Fallback() string {
	return r.fallback
}

// Resolve returns the best candidate URL for username, or the fallback
// asset when nothing usable comes back. It never fails.
func (r *Resolver) Resolve(ctx context.Context, username string) string {
	handle := model.NormalizeUsername(username)

	bestURL := ""
	bestScore := -1
	for _, candidate := range r.candidates(handle) {
		score, err := r.colorfulness(ctx, candidate)
		if err != nil {
			r.logger.Debug(ctx, "avatar candidate failed",
				logger.String("url", candidate), logger.Error(err))
			continue
		}
		if score > bestScore {
			bestScore = score
			bestURL = candidate
		}
	}

	if bestURL == "" {
		metrics.RecordAvatarFallback()
		return r.fallback
	}
	metrics.RecordAvatarResolution()
	return bestURL
}

// candidates lists probe URLs in preference order: with @, without, and
// a bare fallback path.
func (r *Resolver) candidates(handle string) []string {
	return []string{
		fmt.Sprintf("%s/twitter/@%s", r.baseURL, handle),
		fmt.Sprintf("%s/twitter/%s", r.baseURL, handle),
		fmt.Sprintf("%s/%s", r.baseURL, handle),
	}
}

// colorfulness fetches the candidate, downsamples it to a 10x10 grid and
// counts distinct RGB triples.
func (r *Resolver) colorfulness(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build avatar request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch avatar: unexpected status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("decode avatar: %w", err)
	}

	return countDistinctColors(img), nil
}

func countDistinctColors(img image.Image) int {
	small := image.NewRGBA(image.Rect(0, 0, sampleGrid, sampleGrid))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), xdraw.Over, nil)

	seen := make(map[[3]uint8]struct{}, sampleGrid*sampleGrid)
	for y := 0; y < sampleGrid; y++ {
		for x := 0; x < sampleGrid; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			seen[[3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}] = struct{}{}
		}
	}
	return len(seen)
}
