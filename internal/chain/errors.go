package chain

import "errors"

// Error kinds returned by chain operations.
var (
	// ErrInvalidSignature indicates a malformed or unrecoverable signature.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidAddress indicates a malformed hex address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNoSnapshot indicates the address has no committed persona.
	ErrNoSnapshot = errors.New("no snapshot for address")

	// ErrTxFailed indicates the transaction was mined but reverted.
	ErrTxFailed = errors.New("transaction reverted")
)
