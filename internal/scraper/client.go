package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sailorworks/verigrant/pkg/logger"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxPosts = 10
)

// Client talks to the profile source over HTTP. The underlying source
// keeps per-session state, so the session is established lazily and
// exactly once: concurrent first callers share the in-flight
// initialization instead of racing independent logins.
type Client struct {
	baseURL    string
	token      string
	maxPosts   int
	httpClient *http.Client
	logger     logger.Logger

	initGroup singleflight.Group
	mu        sync.RWMutex
	sessionID string
}

// NewClient creates a profile source client with configuration options.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		maxPosts:   defaultMaxPosts,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.Get().Named("scraper"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxPosts caps how many recent posts are requested per profile.
func WithMaxPosts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxPosts = n
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// ensureSession lazily establishes the shared source session. A failed
// attempt is not cached; the next caller retries.
func (c *Client) ensureSession(ctx context.Context) error {
	c.mu.RLock()
	ready := c.sessionID != ""
	c.mu.RUnlock()
	if ready {
		return nil
	}

	_, err, _ := c.initGroup.Do("session", func() (interface{}, error) {
		c.mu.RLock()
		ready := c.sessionID != ""
		c.mu.RUnlock()
		if ready {
			return nil, nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", nil)
		if err != nil {
			return nil, fmt.Errorf("build session request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, ErrLoginFailed
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("open session: unexpected status %d", resp.StatusCode)
		}

		var payload struct {
			SessionID string `json:"session_id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		if payload.SessionID == "" {
			return nil, ErrLoginFailed
		}

		c.mu.Lock()
		c.sessionID = payload.SessionID
		c.mu.Unlock()
		c.logger.Debug(ctx, "profile source session established")
		return nil, nil
	})
	return err
}

// FetchProfile retrieves the profile and most recent posts for username.
func (c *Client) FetchProfile(ctx context.Context, username string) (*Profile, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	session := c.sessionID
	c.mu.RUnlock()

	u := fmt.Sprintf("%s/profiles/%s?posts=%d", c.baseURL, url.PathEscape(username), c.maxPosts)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Session-ID", session)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		// The shared session may have gone stale; drop it so the next
		// call re-establishes one.
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		return nil, ErrLoginFailed
	default:
		return nil, fmt.Errorf("fetch profile: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Exists  bool    `json:"exists"`
		Profile Profile `json:"profile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if !payload.Exists {
		return nil, ErrNoProfile
	}
	return &payload.Profile, nil
}
