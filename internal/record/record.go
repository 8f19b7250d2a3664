package record

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/varint"
)

// Fixed separators inside a record.
const (
	sepAction byte = ':'
	sepRange  byte = '-'
)

// minRecordLen is tag, ':', one byte start, '-', one byte length.
const minRecordLen = 5

// ToBytes serializes one difference.
func ToBytes(d ir.Difference) []byte {
	return AppendBytes(nil, d)
}

// AppendBytes appends the serialized difference to dst.
func AppendBytes(dst []byte, d ir.Difference) []byte {
	n := 3 + varint.Size(d.Range.Start) + varint.Size(d.Range.Length)
	if d.Action != ir.ActionDelete {
		n += len(d.Value)
	}
	dst = slices.Grow(dst, n)
	dst = append(dst, byte(d.Action), sepAction)
	dst = varint.Append(dst, d.Range.Start)
	dst = append(dst, sepRange)
	dst = varint.Append(dst, d.Range.Length)
	if d.Action != ir.ActionDelete {
		dst = append(dst, d.Value...)
	}
	return dst
}

// FromBytes parses one difference from a trusted record.
//
// It panics on an unknown action tag or when b is too short. Use
// ValidateFromBytes for bytes that did not come from this process.
func FromBytes(b []byte) ir.Difference {
	action, ok := ir.ParseAction(b[0])
	if !ok {
		panic(fmt.Sprintf("record: invalid difference action %q", b[0]))
	}
	start, n := varint.Decode(b[2:])
	offset := 2 + n + 1 // tag, ':', start, '-'
	length, n := varint.Decode(b[offset:])
	offset += n

	d := ir.Difference{Action: action, Range: ir.NewRange(start, length)}
	if action != ir.ActionDelete {
		d.Value = bytes.Clone(b[offset:])
	}
	return d
}

// ValidateFromBytes parses one difference from untrusted bytes.
// Any malformation is reported as a *DecodeError.
func ValidateFromBytes(b []byte) (ir.Difference, error) {
	if len(b) < minRecordLen {
		return ir.Difference{}, &DecodeError{Offset: len(b), Reason: fmt.Sprintf("record too short (%d bytes)", len(b))}
	}

	action, ok := ir.ParseAction(b[0])
	if !ok {
		return ir.Difference{}, &DecodeError{Offset: 0, Reason: fmt.Sprintf("invalid difference action %q", b[0])}
	}
	if b[1] != sepAction {
		return ir.Difference{}, &DecodeError{Offset: 1, Reason: fmt.Sprintf("expected %q separator, got %q", sepAction, b[1])}
	}

	start, n, err := varint.DecodeWary(b[2:])
	if err != nil {
		return ir.Difference{}, &DecodeError{Offset: 2, Reason: "range start", Err: err}
	}
	offset := 2 + n
	if offset >= len(b) || b[offset] != sepRange {
		return ir.Difference{}, &DecodeError{Offset: offset, Reason: fmt.Sprintf("expected %q separator", sepRange)}
	}
	offset++

	length, n, err := varint.DecodeWary(b[offset:])
	if err != nil {
		return ir.Difference{}, &DecodeError{Offset: offset, Reason: "range length", Err: err}
	}
	offset += n

	value := b[offset:]
	if action == ir.ActionDelete {
		if len(value) != 0 {
			return ir.Difference{}, &DecodeError{Offset: offset, Reason: fmt.Sprintf("delete record carries %d value bytes", len(value))}
		}
		return ir.Difference{Action: action, Range: ir.NewRange(start, length)}, nil
	}
	if uint64(len(value)) != length {
		return ir.Difference{}, &DecodeError{Offset: offset, Reason: fmt.Sprintf("value has %d bytes, range length is %d", len(value), length)}
	}

	return ir.Difference{Action: action, Range: ir.NewRange(start, length), Value: bytes.Clone(value)}, nil
}
