// Package varint implements the tagged variable width integer codec used for
// every length and offset in the patch wire format.
//
// # Format
//
//	0 - 255                 [value]                 1 byte
//	256 - 65535             ['s'][u16 big endian]   3 bytes
//	65536 - 4294967295      ['i'][u32 big endian]   5 bytes
//	above                   ['l'][u64 big endian]   9 bytes
//
// A decoder looks at the first byte only: 's', 'i' and 'l' select a tagged
// width, any other byte is a literal value.
//
// The literal values 105 ('i'), 108 ('l') and 115 ('s') are themselves tag
// bytes and would decode as the start of a wider integer. The encoder
// therefore writes those three values in the 's' tier. Every other value is
// written in the narrowest tier that fits, so output for all other values is
// unchanged from the plain minimal encoding.
package varint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Tier tags.
const (
	TagU16 byte = 's'
	TagU32 byte = 'i'
	TagU64 byte = 'l'
)

// ErrTruncated is returned by DecodeWary when the input ends inside an integer.
var ErrTruncated = errors.New("varint: truncated input")

// IsTag reports whether b selects a tagged width when read as the first byte.
func IsTag(b byte) bool {
	return b == TagU16 || b == TagU32 || b == TagU64
}

// Append appends the wire form of v to dst.
func Append(dst []byte, v uint64) []byte {
	return AppendAvoiding(dst, v)
}

// AppendAvoiding appends the wire form of v to dst, moving v into the 's'
// tier when its literal byte would collide with a tag or with one of the
// reserved bytes. The patch framing uses this to keep record lengths
// distinct from its control tokens.
func AppendAvoiding(dst []byte, v uint64, reserved ...byte) []byte {
	switch {
	case v <= math.MaxUint8 && !collides(byte(v), reserved):
		return append(dst, byte(v))
	case v <= math.MaxUint16:
		dst = append(dst, TagU16)
		return binary.BigEndian.AppendUint16(dst, uint16(v))
	case v <= math.MaxUint32:
		dst = append(dst, TagU32)
		return binary.BigEndian.AppendUint32(dst, uint32(v))
	default:
		dst = append(dst, TagU64)
		return binary.BigEndian.AppendUint64(dst, v)
	}
}

func collides(b byte, reserved []byte) bool {
	if IsTag(b) {
		return true
	}
	for _, r := range reserved {
		if b == r {
			return true
		}
	}
	return false
}

// Size returns the number of bytes Append writes for v.
func Size(v uint64) int {
	switch {
	case v <= math.MaxUint8 && !IsTag(byte(v)):
		return 1
	case v <= math.MaxUint16:
		return 3
	case v <= math.MaxUint32:
		return 5
	default:
		return 9
	}
}

// Decode reads one integer from the start of b and returns it together with
// the number of bytes consumed.
//
// Decode trusts its input and panics if b is empty or ends inside a tagged
// integer. Use DecodeWary for untrusted input.
func Decode(b []byte) (uint64, int) {
	switch b[0] {
	case TagU16:
		return uint64(binary.BigEndian.Uint16(b[1:3])), 3
	case TagU32:
		return uint64(binary.BigEndian.Uint32(b[1:5])), 5
	case TagU64:
		return binary.BigEndian.Uint64(b[1:9]), 9
	default:
		return uint64(b[0]), 1
	}
}

// DecodeWary is Decode for untrusted input: it returns ErrTruncated instead
// of panicking when b is too short.
func DecodeWary(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}
	need := 1
	switch b[0] {
	case TagU16:
		need = 3
	case TagU32:
		need = 5
	case TagU64:
		need = 9
	}
	if len(b) < need {
		return 0, 0, fmt.Errorf("%w: tag %q needs %d bytes, have %d", ErrTruncated, b[0], need, len(b))
	}
	v, n := Decode(b)
	return v, n, nil
}
