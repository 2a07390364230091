package sender

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error classification
// --------------------------------------------------------------------------

// ErrorKind tells the state machine whether an error can be absorbed by reconnecting
type ErrorKind uint8

const (
	// KindRecoverable errors are network level, the sender reconnects and carries on
	KindRecoverable ErrorKind = iota
	// KindFatal errors are configuration mismatches, the sender stops
	KindFatal
)

// String returns the string representation of an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindRecoverable:
		return "recoverable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	ErrStopped         = errors.New("sender stopped")
	ErrAlreadyStarted  = errors.New("sender already started")
	ErrInvalidPassword = errors.New("invalid password")
	ErrAuthRequired    = errors.New("authentication required but no password configured")
	ErrDatabaseCount   = errors.New("remote database count is smaller than required")
	ErrInvalidDBName   = errors.New("invalid database name")
	ErrMalformedReply  = errors.New("malformed reply")
	ErrSendFailed      = errors.New("failed to send command")
	ErrNotConnected    = errors.New("no connection to remote store")
)

// Error wraps an error with its kind and the operation that failed
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the wrapped error so errors.Is works on the sentinels
func (e *Error) Unwrap() error {
	return e.Err
}

func fatalError(op string, err error) *Error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

func recoverableError(op string, err error) *Error {
	return &Error{Kind: KindRecoverable, Op: op, Err: err}
}

// IsFatal reports whether err (or an error it wraps) is a fatal sender error
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindFatal
}
