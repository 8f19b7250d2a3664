package record

import (
	"errors"
	"fmt"
)

// KindDifferenceInvalid is the error kind of every DecodeError.
const KindDifferenceInvalid = "DifferenceInvalid"

// DecodeError reports a malformed record or record stream.
type DecodeError struct {
	// Offset is the byte position of the problem within the decoded slice.
	Offset int

	// Reason is a human-readable description.
	Reason string

	// Err is the underlying error, if any (e.g. varint.ErrTruncated).
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at offset %d: %s: %v", KindDifferenceInvalid, e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s at offset %d: %s", KindDifferenceInvalid, e.Offset, e.Reason)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// shift returns a copy of err with its offset moved by base, so nested
// parsers can report positions relative to the outer slice.
func shift(err error, base int) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return &DecodeError{Offset: de.Offset + base, Reason: de.Reason, Err: de.Err}
	}
	return err
}
