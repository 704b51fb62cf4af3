package repository

import "errors"

// Sentinel kinds for placement store errors.
var (
	ErrNotInitialized = errors.New("store not initialized")
	ErrNotFound       = errors.New("placement not found")
)
