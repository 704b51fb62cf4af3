// Package repository provides the durable placement store.
package repository

import (
	"context"

	"github.com/sailorworks/verigrant/internal/domain/model"
)

// Store persists the current chart. SaveAll uses full-replace semantics
// (clear-then-insert): simplicity over efficiency, acceptable at expected
// chart sizes.
type Store interface {
	// Init opens the store and applies the schema. It is idempotent and
	// safe to call concurrently; concurrent callers await the same
	// in-flight initialization.
	Init(ctx context.Context) error

	// LoadAll returns every stored placement.
	LoadAll(ctx context.Context) ([]model.Placement, error)

	// SaveAll replaces the stored chart with placements atomically.
	SaveAll(ctx context.Context, placements []model.Placement) error

	// Remove deletes one placement by id.
	Remove(ctx context.Context, id string) error

	// Clear deletes every placement.
	Clear(ctx context.Context) error

	// Close releases the store.
	Close() error
}
