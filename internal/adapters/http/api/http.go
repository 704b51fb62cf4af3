// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sailorworks/verigrant/internal/commit"
	"github.com/sailorworks/verigrant/internal/domain/model"
	"github.com/sailorworks/verigrant/internal/lifecycle"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Chart operations.
	AddPlacement(ctx context.Context, username string, mode model.Mode) (model.Placement, error)
	Placements(ctx context.Context) []model.Placement
	MovePlacement(ctx context.Context, id string, pos model.Position) (model.Placement, error)
	RemovePlacement(ctx context.Context, id string) error
	ClearPlacements(ctx context.Context) error

	// Snapshot commit operations.
	PrepareCommit(ctx context.Context, address string) (commit.Prepared, error)
	VerifyCommit(ctx context.Context, placements []model.Placement, address, signature, nonce string) (commit.Result, error)
	Snapshot(ctx context.Context, address string) (model.PersonaSnapshot, error)

	// Mint submits a mint request and returns the tx hash. Fulfillment
	// is surfaced asynchronously on the event stream.
	Mint(ctx context.Context, address string) (string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	placementsHandler *PlacementsHandler
	commitHandler     *CommitHandler
	snapshotHandler   *SnapshotHandler
	mintHandler       *MintHandler
	metadataHandler   *MetadataHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		placementsHandler: NewPlacementsHandler(deps),
		commitHandler:     NewCommitHandler(deps),
		snapshotHandler:   NewSnapshotHandler(deps),
		mintHandler:       NewMintHandler(deps),
		metadataHandler:   NewMetadataHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/placements", MetricsMiddleware(s.placementsHandler.HandleCollection, "placements"))
	mux.HandleFunc("/api/placements/", MetricsMiddleware(s.placementsHandler.HandleItem, "placement"))
	mux.HandleFunc("/api/commit-snapshot", MetricsMiddleware(s.commitHandler.HandleCommit, "commit_snapshot"))
	mux.HandleFunc("/api/snapshot", MetricsMiddleware(s.snapshotHandler.HandleGetSnapshot, "snapshot"))
	mux.HandleFunc("/api/mint", MetricsMiddleware(s.mintHandler.HandleMint, "mint"))
	mux.HandleFunc("/api/metadata/", MetricsMiddleware(s.metadataHandler.HandleGetMetadata, "metadata"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrEmptyUsername),
		errors.Is(err, lifecycle.ErrDuplicateUsername),
		errors.Is(err, lifecycle.ErrInvalidMode),
		errors.Is(err, commit.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, lifecycle.ErrAiPlaced):
		writeError(w, http.StatusConflict, "locked", err)
	case errors.Is(err, lifecycle.ErrBusy), errors.Is(err, lifecycle.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "busy", err)
	case errors.Is(err, commit.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
