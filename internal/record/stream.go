package record

import (
	"fmt"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/varint"
)

// AppendStream appends each difference to dst as [varint n][n record bytes].
//
// Record lengths equal to any reserved byte are written in a tagged varint
// tier, so a reader that treats those bytes as control tokens can never
// mistake a length for one.
func AppendStream(dst []byte, diffs []ir.Difference, reserved ...byte) []byte {
	for _, d := range diffs {
		rec := ToBytes(d)
		dst = varint.AppendAvoiding(dst, uint64(len(rec)), reserved...)
		dst = append(dst, rec...)
	}
	return dst
}

// EncodeStream returns the stream form of diffs.
func EncodeStream(diffs []ir.Difference) []byte {
	return AppendStream(nil, diffs)
}

// NextInStream reads the record that starts at b[0] and returns its
// validated difference and the number of bytes consumed (prefix included).
func NextInStream(b []byte) (ir.Difference, int, error) {
	n, width, err := varint.DecodeWary(b)
	if err != nil {
		return ir.Difference{}, 0, &DecodeError{Offset: 0, Reason: "record length", Err: err}
	}
	if uint64(len(b)-width) < n {
		return ir.Difference{}, 0, &DecodeError{
			Offset: width,
			Reason: fmt.Sprintf("record length %d exceeds remaining %d bytes", n, len(b)-width),
		}
	}
	end := width + int(n)
	d, err := ValidateFromBytes(b[width:end])
	if err != nil {
		return ir.Difference{}, 0, shift(err, width)
	}
	return d, end, nil
}

// ParseStream decodes a complete record stream from untrusted bytes.
func ParseStream(b []byte) ([]ir.Difference, error) {
	var diffs []ir.Difference
	for i := 0; i < len(b); {
		d, n, err := NextInStream(b[i:])
		if err != nil {
			return nil, shift(err, i)
		}
		diffs = append(diffs, d)
		i += n
	}
	return diffs, nil
}
