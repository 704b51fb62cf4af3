package scraper

import "errors"

// Sentinel kinds for profile source failures. The analyzer maps each of
// these to a user-facing message.
var (
	ErrNoProfile    = errors.New("profile does not exist")
	ErrUserNotFound = errors.New("user not found")
	ErrLoginFailed  = errors.New("profile source login failed")
)
