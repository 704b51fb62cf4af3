package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sailorworks/verigrant/internal/chain"
	"github.com/sailorworks/verigrant/internal/domain/model"
)

// SnapshotDependencies defines the interface for snapshot reads.
type SnapshotDependencies interface {
	Snapshot(ctx context.Context, address string) (model.PersonaSnapshot, error)
}

// SnapshotHandler handles snapshot read requests.
type SnapshotHandler struct {
	deps SnapshotDependencies
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(deps SnapshotDependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

// HandleGetSnapshot handles GET /api/snapshot?address=0x… requests.
func (h *SnapshotHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	snapshot, err := h.deps.Snapshot(r.Context(), address)
	if err != nil {
		if errors.Is(err, chain.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		writeDomainError(w, err)
		return
	}
	// exists=false is a valid answer, not an error.
	writeJSON(w, http.StatusOK, snapshot)
}
