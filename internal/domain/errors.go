package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRecipient  = errors.New("recipient must be a well-formed email address")
	ErrInvalidPriority   = errors.New("priority must be an integer between 1 and 10")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("message is not in a state that allows this transition")
	ErrInvalidBatchSize  = errors.New("batch size must be positive")
	ErrInvalidRetention  = errors.New("retention must be at least one day")
	ErrTemplateNotFound  = errors.New("template not found")
)
