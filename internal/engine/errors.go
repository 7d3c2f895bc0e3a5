package engine

import (
	"errors"
	"fmt"
)

// RuntimeError stops the scheduler. Run returns it, possibly wrapped, for
// a cursor it cannot trust or a write it could not complete.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	Err     error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCursorCorrupt: the persisted cursor is unreadable or invalid.
	// The scheduler never guesses a last fire time; an operator must act.
	ErrCodeCursorCorrupt RuntimeErrorCode = "CURSOR_CORRUPT"

	ErrCodeCursorWrite RuntimeErrorCode = "CURSOR_WRITE"

	// ErrCodeLedgerWrite: an append failed permanently or was abandoned
	// while its retries were backing off at shutdown.
	ErrCodeLedgerWrite RuntimeErrorCode = "LEDGER_WRITE"

	// ErrCodeScheduleExhausted: the walk from the anchor hit its step limit.
	ErrCodeScheduleExhausted RuntimeErrorCode = "SCHEDULE_EXHAUSTED"
)

func (e *RuntimeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsCursorCorrupt reports whether err, or anything it wraps, is a
// CURSOR_CORRUPT runtime error.
func IsCursorCorrupt(err error) bool {
	return hasCode(err, ErrCodeCursorCorrupt)
}

// IsLedgerWrite reports whether err is a LEDGER_WRITE runtime error.
func IsLedgerWrite(err error) bool {
	return hasCode(err, ErrCodeLedgerWrite)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

func newRuntimeError(code RuntimeErrorCode, message string, cause error) *RuntimeError {
	return &RuntimeError{Code: code, Message: message, Err: cause}
}
