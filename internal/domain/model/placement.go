// Package model defines the core domain types for the alignment chart.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects how a placement gets its chart position.
type Mode string

// Placement modes.
const (
	ModeManual Mode = "manual"
	ModeAI     Mode = "ai"
)

// Valid reports whether m is a known placement mode.
func (m Mode) Valid() bool {
	return m == ModeManual || m == ModeAI
}

// Position is a chart coordinate pair in percent.
// X runs lawful(0) to chaotic(100), Y runs good(0) to evil(100).
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamped returns the position forced into the [0,100]x[0,100] chart bounds.
func (p Position) Clamped() Position {
	return Position{X: clampPercent(p.X), Y: clampPercent(p.Y)}
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Analysis holds the model-derived alignment scores for a placement.
// Both axes are in [-100,100].
type Analysis struct {
	Explanation   string `json:"explanation"`
	LawfulChaotic int    `json:"lawfulChaotic"`
	GoodEvil      int    `json:"goodEvil"`
}

// AlignmentResult is the total return shape of a profile analysis.
// Every analysis, including every failure mode, yields one of these;
// callers drive optimistic UI state off it and must never see a raw error.
type AlignmentResult struct {
	Explanation   string `json:"explanation"`
	LawfulChaotic int    `json:"lawfulChaotic"`
	GoodEvil      int    `json:"goodEvil"`
	Cached        bool   `json:"cached"`
	IsError       bool   `json:"isError"`
	Message       string `json:"message,omitempty"`
}

// Placement is one chart entry.
type Placement struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Position     Position  `json:"position"`
	AvatarSource string    `json:"avatarSource"`
	IsAiPlaced   bool      `json:"isAiPlaced"`
	Analysis     *Analysis `json:"analysis,omitempty"`
	Loading      bool      `json:"loading"`
	// NewlyAnalyzed briefly highlights a fresh AI verdict. Transient,
	// never persisted.
	NewlyAnalyzed bool      `json:"newlyAnalyzed,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Key returns the case-insensitive uniqueness key for the placement.
func (p Placement) Key() string {
	return UsernameKey(p.Username)
}

// NormalizeUsername trims whitespace and strips one leading @.
func NormalizeUsername(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "@")
}

// UsernameKey lowercases the normalized handle for uniqueness checks.
func UsernameKey(raw string) string {
	return strings.ToLower(NormalizeUsername(raw))
}

// NewPlacementID assigns a fresh placement identifier. IDs embed the
// creation time and mode tag and are never reused.
func NewPlacementID(mode Mode) string {
	return fmt.Sprintf("%s-%d-%s", mode, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// PersonaData is the deterministic on-chain reduction of a placement set.
// Axis values are clamped to the signed 8-bit contract range.
type PersonaData struct {
	LawfulChaotic int8
	GoodEvil      int8
	ReportHash    [32]byte
	PrimaryTrait  string
}

// PersonaSnapshot is the per-address record read back from the registry.
type PersonaSnapshot struct {
	LawfulChaotic int    `json:"lawfulChaotic"`
	GoodEvil      int    `json:"goodEvil"`
	ReportHash    string `json:"reportHash"`
	PrimaryTrait  string `json:"primaryTrait"`
	Timestamp     int64  `json:"timestamp"`
	Exists        bool   `json:"exists"`
}
