package diff

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/sdde/internal/ir"
)

// ErrOutOfRange is returned when a record addresses bytes outside the buffer
// or its value does not match its range.
var ErrOutOfRange = errors.New("difference out of range")

// Apply replays diffs in order against a copy of data.
//
//   - Replace overwrites [start, start+length) with value
//   - Insert splices value in at start, or appends it when start is at or
//     past the end of the buffer
//   - Delete removes [start, start+length)
//
// data is never modified. A record that does not fit the buffer returns an
// error wrapping ErrOutOfRange.
func Apply(data []byte, diffs []ir.Difference) ([]byte, error) {
	buf := bytes.Clone(data)
	if buf == nil {
		buf = []byte{}
	}

	for i, d := range diffs {
		size := uint64(len(buf))
		switch d.Action {
		case ir.ActionReplace:
			if !fits(d.Range, size) || uint64(len(d.Value)) != d.Range.Length {
				return nil, fmt.Errorf("%w: record %d %s on %d bytes", ErrOutOfRange, i, d, size)
			}
			copy(buf[d.Range.Start:d.Range.End()], d.Value)
		case ir.ActionInsert:
			if d.Range.Start < size {
				buf = slices.Insert(buf, int(d.Range.Start), d.Value...)
			} else {
				buf = append(buf, d.Value...)
			}
		case ir.ActionDelete:
			if !fits(d.Range, size) {
				return nil, fmt.Errorf("%w: record %d %s on %d bytes", ErrOutOfRange, i, d, size)
			}
			buf = slices.Delete(buf, int(d.Range.Start), int(d.Range.End()))
		default:
			return nil, fmt.Errorf("record %d: unknown action %s", i, d.Action)
		}
	}
	return buf, nil
}

// fits reports whether r lies within a buffer of size bytes, without overflow.
func fits(r ir.Range, size uint64) bool {
	return r.Length <= size && r.Start <= size-r.Length
}
