// Package alignment holds the pure chart math: axis/position mapping,
// trait derivation and the deterministic on-chain reduction.
package alignment

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sailorworks/verigrant/internal/domain/model"
)

// neutralThreshold bands each axis into three labels.
const neutralThreshold = 33

// Contract axis bounds (signed 8-bit).
const (
	axisMin = -128
	axisMax = 127
)

// PositionFromScores maps axis scores in [-100,100] to chart percentages.
func PositionFromScores(lawfulChaotic, goodEvil int) model.Position {
	return model.Position{
		X: float64(lawfulChaotic+100) / 2,
		Y: float64(goodEvil+100) / 2,
	}.Clamped()
}

// ScoresFromPosition is the inverse mapping back to the [-100,100] domain.
func ScoresFromPosition(p model.Position) (lawfulChaotic, goodEvil float64) {
	return (p.X - 50) * 2, (p.Y - 50) * 2
}

// Trait derives the human-readable alignment label from banded axis scores.
func Trait(lawfulChaotic, goodEvil int) string {
	var lawfulAxis, goodAxis string

	switch {
	case lawfulChaotic <= -neutralThreshold:
		lawfulAxis = "Lawful"
	case lawfulChaotic >= neutralThreshold:
		lawfulAxis = "Chaotic"
	default:
		lawfulAxis = "Neutral"
	}

	switch {
	case goodEvil <= -neutralThreshold:
		goodAxis = "Good"
	case goodEvil >= neutralThreshold:
		goodAxis = "Evil"
	default:
		goodAxis = "Neutral"
	}

	switch {
	case lawfulAxis == "Neutral" && goodAxis == "Neutral":
		return "True Neutral"
	case lawfulAxis == "Neutral":
		return goodAxis + " Neutral"
	case goodAxis == "Neutral":
		return lawfulAxis + " Neutral"
	default:
		return lawfulAxis + " " + goodAxis
	}
}

// reportEntry is the canonical per-placement shape fed into the report hash.
type reportEntry struct {
	Username   string         `json:"username"`
	Position   model.Position `json:"position"`
	IsAiPlaced bool           `json:"isAiPlaced"`
}

// ReportHash computes the keccak-256 fingerprint of the committed placement
// set. The hash covers client-supplied data only and is order-preserving;
// it is a tamper-evident audit fingerprint, not an integrity guarantee
// against a malicious client.
func ReportHash(placements []model.Placement) ([32]byte, error) {
	var out [32]byte
	entries := make([]reportEntry, len(placements))
	for i, p := range placements {
		entries[i] = reportEntry{
			Username:   p.Username,
			Position:   p.Position,
			IsAiPlaced: p.IsAiPlaced,
		}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return out, fmt.Errorf("marshal report: %w", err)
	}
	copy(out[:], crypto.Keccak256(raw))
	return out, nil
}

// Reduce deterministically folds a placement set into the on-chain persona
// record: per-axis mean mapped back to [-100,100], rounded, clamped to the
// signed 8-bit contract range. An empty set reduces to the zero persona.
func Reduce(placements []model.Placement) (model.PersonaData, error) {
	if len(placements) == 0 {
		return model.PersonaData{PrimaryTrait: "Neutral"}, nil
	}

	var sumLC, sumGE float64
	for _, p := range placements {
		lc, ge := ScoresFromPosition(p.Position.Clamped())
		sumLC += lc
		sumGE += ge
	}
	n := float64(len(placements))
	lc := clampAxis(int(math.Round(sumLC / n)))
	ge := clampAxis(int(math.Round(sumGE / n)))

	hash, err := ReportHash(placements)
	if err != nil {
		return model.PersonaData{}, err
	}

	return model.PersonaData{
		LawfulChaotic: int8(lc),
		GoodEvil:      int8(ge),
		ReportHash:    hash,
		PrimaryTrait:  Trait(lc, ge),
	}, nil
}

func clampAxis(v int) int {
	switch {
	case v < axisMin:
		return axisMin
	case v > axisMax:
		return axisMax
	default:
		return v
	}
}
