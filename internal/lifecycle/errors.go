package lifecycle

import "errors"

// Error kinds returned by lifecycle operations.
var (
	// ErrBusy indicates an add is already mid-flight.
	ErrBusy = errors.New("a placement is already being resolved")

	// ErrEmptyUsername indicates a blank handle after normalization.
	ErrEmptyUsername = errors.New("username is empty")

	// ErrDuplicateUsername indicates the handle is already on the chart.
	ErrDuplicateUsername = errors.New("username is already placed")

	// ErrInvalidMode indicates an unknown placement mode.
	ErrInvalidMode = errors.New("invalid placement mode")

	// ErrNotFound indicates the placement id is not on the chart.
	ErrNotFound = errors.New("placement not found")

	// ErrAiPlaced indicates a move attempt on an AI-positioned entry.
	ErrAiPlaced = errors.New("ai-placed entries cannot be moved")

	// ErrQueueFull indicates the resolution queue rejected the job.
	ErrQueueFull = errors.New("resolution queue is full")
)
