package commit

import "errors"

// Error kinds returned by the snapshot commit protocol.
var (
	// ErrInvalidAddress indicates a malformed wallet address.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrUnauthorized indicates a nonce or signature trust failure.
	// Callers get this single kind for both, never the distinction.
	ErrUnauthorized = errors.New("unauthorized commit")

	// ErrCommitFailed indicates the contract write itself failed.
	ErrCommitFailed = errors.New("commit transaction failed")
)
