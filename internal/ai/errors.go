package ai

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	// ErrNotConfigured is returned when the selected backend lacks credentials.
	ErrNotConfigured = errors.New("ai provider not configured")
	ErrUnavailable   = errors.New("ai provider unavailable")
)

// UnavailableError reports a local backend that could not be reached.
type UnavailableError struct {
	BaseURL string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("Cannot connect to Ollama at %s. Ensure Ollama is running with 'ollama serve'.", e.BaseURL)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// ProviderError is an upstream non-2xx answer.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s stream failed: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// streamFailure reports an error event received after the stream started.
// StatusCode stays zero since the http status was already 200.
func streamFailure(provider, kind, message string) error {
	if kind != "" {
		message = kind + ": " + message
	}
	return &ProviderError{Provider: provider, Message: message}
}

func notConfigured(provider string) error {
	return fmt.Errorf("%w: %s api key is not set", ErrNotConfigured, provider)
}

func isConnRefused(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
