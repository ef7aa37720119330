package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotSendable       = errors.New("campaign is not in a sendable state")
	ErrNotEditable       = errors.New("campaign can no longer be edited")
)
