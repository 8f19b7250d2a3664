package engine

import (
	"errors"
	"fmt"
)

// EngineError represents an error detected while decoding or applying a patch.
//
// Engine errors include:
//   - CRC mismatch: the receiver's state is not the state the patch was made against
//   - Invalid difference: the patch bytes are truncated or malformed
//
// EngineError includes structured fields for diagnostics.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Offset is the byte position in the patch, or -1 when not applicable.
	Offset int

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying error, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeCRCMismatch indicates the local digest differs from the patch's.
	ErrCodeCRCMismatch ErrorCode = "CRC_MISMATCH"

	// ErrCodeDifferenceInvalid indicates malformed patch or record bytes.
	ErrCodeDifferenceInvalid ErrorCode = "DIFFERENCE_INVALID"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s (offset=%d)", msg, e.Offset)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// IsCRCError returns true if the error is a digest mismatch.
// Uses errors.As to handle wrapped errors.
func IsCRCError(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeCRCMismatch
	}
	return false
}

// IsDifferenceInvalid returns true if the error reports malformed patch bytes.
// Uses errors.As to handle wrapped errors.
func IsDifferenceInvalid(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeDifferenceInvalid
	}
	return false
}

// NewCRCError creates an EngineError for a digest mismatch.
func NewCRCError(expected, actual []byte) *EngineError {
	return &EngineError{
		Code:    ErrCodeCRCMismatch,
		Message: "CRC value does not match",
		Offset:  -1,
		Details: map[string]string{
			"expected": fmt.Sprintf("%q", expected),
			"actual":   fmt.Sprintf("%q", actual),
		},
	}
}

// newInvalidError creates an EngineError for malformed bytes at offset.
func newInvalidError(offset int, message string, err error) *EngineError {
	return &EngineError{
		Code:    ErrCodeDifferenceInvalid,
		Message: message,
		Offset:  offset,
		Err:     err,
	}
}
