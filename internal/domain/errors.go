package domain

import (
	"errors"
	"fmt"
)

// ErrFeedUnauthorized is the opaque denial for feed requests. Unknown
// slug, inactive portal and wrong token all map to this one error so the
// response never leaks which part failed.
var ErrFeedUnauthorized = errors.New("feed unauthorized")

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrManualPortal is returned when a push action targets a portal whose
// integration is manual. Always terminal.
var ErrManualPortal = errors.New("portal is manually integrated")

// TerminalError marks a job failure that can never succeed as
// constructed: auth rejections, remote validation errors, missing
// listings. The dispatcher fails such jobs immediately instead of
// burning retry attempts.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err so the dispatcher treats it as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// Terminalf is Terminal over a formatted error.
func Terminalf(format string, args ...any) error {
	return &TerminalError{Err: fmt.Errorf(format, args...)}
}

// IsTerminal reports whether err (or anything it wraps) is terminal.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
