package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// placeholderPNG is a 1x1 transparent PNG served as certificate art
// until the rendered image pipeline exists.
const placeholderPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// MetadataHandler serves NFT metadata for minted certificates.
type MetadataHandler struct{}

// NewMetadataHandler creates a new metadata handler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// metadataAttribute follows the marketplace attribute convention.
type metadataAttribute struct {
	TraitType   string `json:"trait_type"`
	DisplayType string `json:"display_type,omitempty"`
	Value       any    `json:"value"`
}

// tokenMetadata is the NFT-standard metadata document.
type tokenMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []metadataAttribute `json:"attributes"`
}

// HandleGetMetadata handles GET /api/metadata/{tokenId} requests.
func (h *MetadataHandler) HandleGetMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/metadata/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	tokenID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, tokenMetadata{
		Name:        "Alignment Chart Certificate #" + raw,
		Description: "Proof of a committed alignment chart snapshot.",
		Image:       placeholderPNG,
		Attributes: []metadataAttribute{
			{TraitType: "Token ID", DisplayType: "number", Value: tokenID},
			{TraitType: "Generated", DisplayType: "date", Value: time.Now().Unix()},
		},
	})
}
