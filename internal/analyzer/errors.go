package analyzer

import "errors"

// Sentinel kinds for model invocation failures.
var (
	ErrModelCredentials = errors.New("model credentials rejected")
	ErrModelQuota       = errors.New("model quota exceeded")
)

// User-facing messages for the structured error results. Analyze never
// raises; each failure class maps onto one of these.
const (
	msgLoginFailed      = "Could not log in to the profile source. Please try again later."
	msgUserNotFound     = "That user could not be found."
	msgInsufficientData = "Not enough public activity to analyze this profile."
	msgModelCredentials = "Analysis service credentials are invalid."
	msgModelQuota       = "Analysis service quota exceeded. Please try again later."
	msgGeneric          = "Analysis failed. Please try again."
)
