package service

import (
	"errors"
	"fmt"

	appErr "github.com/xxxsen/notebook/internal/pkg/errors"
)

// kindError carries a user facing message and matches one of the sentinel
// errors in pkg/errors.
type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	return e.msg
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func invalid(format string, args ...interface{}) error {
	return &kindError{kind: appErr.ErrInvalid, msg: fmt.Sprintf(format, args...)}
}

func notFound(msg string) error {
	return &kindError{kind: appErr.ErrNotFound, msg: msg}
}

func forbidden(msg string) error {
	return &kindError{kind: appErr.ErrForbidden, msg: msg}
}

var (
	ErrNoSources       = invalid("No sources provided.")
	ErrEmbeddingFailed = errors.New("embedding failed")
	ErrEmptyScript     = errors.New("Failed to generate dialogue script.")
)

func embeddingFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
}

// wrapNotFound replaces a bare not found error with msg.
func wrapNotFound(err error, msg string) error {
	if err == nil {
		return nil
	}
	if appErr.IsNotFound(err) {
		return notFound(msg)
	}
	return err
}
