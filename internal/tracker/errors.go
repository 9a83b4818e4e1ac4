package tracker

import (
	"errors"
	"fmt"
)

// TrackerError is returned by tracker operations.
type TrackerError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Run is the affected run number, 0 when not applicable.
	Run uint32
}

// ErrorCode categorizes tracker errors.
type ErrorCode string

const (
	// ErrCodeConflict indicates StartRun for a run that is already live.
	ErrCodeConflict ErrorCode = "RUN_CONFLICT"

	// ErrCodeNotFound indicates a stop for a run that is not live.
	ErrCodeNotFound ErrorCode = "RUN_NOT_FOUND"

	// ErrCodeBadSnapshot indicates a counter snapshot that could not be used.
	ErrCodeBadSnapshot ErrorCode = "BAD_SNAPSHOT"

	// ErrCodeInvalidRun indicates run number 0, which marks an empty slot.
	ErrCodeInvalidRun ErrorCode = "INVALID_RUN"
)

// Error implements the error interface.
func (e *TrackerError) Error() string {
	if e.Run != 0 {
		return fmt.Sprintf("%s: %s (run=%d)", e.Code, e.Message, e.Run)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var te *TrackerError
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsConflict returns true if err is a RUN_CONFLICT error.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsNotFound returns true if err is a RUN_NOT_FOUND error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsBadSnapshot returns true if err is a BAD_SNAPSHOT error.
func IsBadSnapshot(err error) bool { return hasCode(err, ErrCodeBadSnapshot) }

// IsInvalidRun returns true if err is an INVALID_RUN error.
func IsInvalidRun(err error) bool { return hasCode(err, ErrCodeInvalidRun) }
