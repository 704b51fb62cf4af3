package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sailorworks/verigrant/internal/commit"
	"github.com/sailorworks/verigrant/internal/domain/model"
)

// CommitDependencies defines the interface for snapshot commits.
type CommitDependencies interface {
	PrepareCommit(ctx context.Context, address string) (commit.Prepared, error)
	VerifyCommit(ctx context.Context, placements []model.Placement, address, signature, nonce string) (commit.Result, error)
}

// CommitHandler handles snapshot commit requests.
type CommitHandler struct {
	deps CommitDependencies
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(deps CommitDependencies) *CommitHandler {
	return &CommitHandler{deps: deps}
}

// commitRequest covers both phases; the body shape selects one.
// Signature and nonce absent means prepare, present means verify.
type commitRequest struct {
	Placements []model.Placement `json:"placements"`
	Address    string            `json:"address"`
	Signature  string            `json:"signature,omitempty"`
	Nonce      string            `json:"nonce,omitempty"`
}

// HandleCommit handles POST /api/commit-snapshot requests.
func (h *CommitHandler) HandleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	if req.Signature == "" && req.Nonce == "" {
		prepared, err := h.deps.PrepareCommit(r.Context(), req.Address)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prepared)
		return
	}

	result, err := h.deps.VerifyCommit(r.Context(), req.Placements, req.Address, req.Signature, req.Nonce)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
