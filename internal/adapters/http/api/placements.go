package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sailorworks/verigrant/internal/domain/model"
)

// PlacementDependencies defines the interface for chart operations.
type PlacementDependencies interface {
	AddPlacement(ctx context.Context, username string, mode model.Mode) (model.Placement, error)
	Placements(ctx context.Context) []model.Placement
	MovePlacement(ctx context.Context, id string, pos model.Position) (model.Placement, error)
	RemovePlacement(ctx context.Context, id string) error
	ClearPlacements(ctx context.Context) error
}

// PlacementsHandler handles chart requests.
type PlacementsHandler struct {
	deps PlacementDependencies
}

// NewPlacementsHandler creates a new placements handler.
func NewPlacementsHandler(deps PlacementDependencies) *PlacementsHandler {
	return &PlacementsHandler{deps: deps}
}

// addRequest mirrors the POST /api/placements body.
type addRequest struct {
	Username string `json:"username"`
	Mode     string `json:"mode"`
}

// moveRequest mirrors the PATCH /api/placements/{id} body.
type moveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HandleCollection handles /api/placements requests.
func (h *PlacementsHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.deps.Placements(r.Context()))
	case http.MethodPost:
		h.handleAdd(w, r)
	case http.MethodDelete:
		if err := h.deps.ClearPlacements(r.Context()); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		http.NotFound(w, r)
	}
}

func (h *PlacementsHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	p, err := h.deps.AddPlacement(r.Context(), req.Username, model.Mode(req.Mode))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Accepted, not created: the entry is pending until resolution.
	writeJSON(w, http.StatusAccepted, p)
}

// HandleItem handles /api/placements/{id} requests.
func (h *PlacementsHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/placements/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		if err := h.deps.RemovePlacement(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	case http.MethodPatch:
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		p, err := h.deps.MovePlacement(r.Context(), id, model.Position{X: req.X, Y: req.Y})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		http.NotFound(w, r)
	}
}
