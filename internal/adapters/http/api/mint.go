package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sailorworks/verigrant/internal/chain"
)

// MintDependencies defines the interface for mint requests.
type MintDependencies interface {
	Mint(ctx context.Context, address string) (string, error)
}

// MintHandler handles certificate mint requests.
type MintHandler struct {
	deps MintDependencies
}

// NewMintHandler creates a new mint handler.
func NewMintHandler(deps MintDependencies) *MintHandler {
	return &MintHandler{deps: deps}
}

// mintRequest mirrors the POST /api/mint body.
type mintRequest struct {
	Address string `json:"address"`
}

// mintResponse acknowledges a submitted mint request.
type mintResponse struct {
	Status          string `json:"status"`
	TransactionHash string `json:"transactionHash"`
}

// HandleMint handles POST /api/mint requests. Minting requires a
// committed snapshot; fulfillment arrives asynchronously.
func (h *MintHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	txHash, err := h.deps.Mint(r.Context(), req.Address)
	if err != nil {
		switch {
		case errors.Is(err, chain.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "bad_request", err)
		case errors.Is(err, chain.ErrNoSnapshot):
			writeError(w, http.StatusConflict, "no_snapshot", err)
		default:
			writeDomainError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, mintResponse{Status: "requested", TransactionHash: txHash})
}
