package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("duplicate request id")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotConfigured       = errors.New("provider not configured")
	ErrTimeout             = errors.New("wait timed out")
	ErrNoStatusEndpoint    = errors.New("provider has no status endpoint")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// ProviderError wraps an upstream submission rejection. The message is relayed
// to the caller; no job exists when it is returned.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
