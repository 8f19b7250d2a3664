package engine

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/record"
	"github.com/roach88/sdde/internal/varint"
)

// Control tokens of the index stream.
const (
	tokenIndex  byte = 'v'
	tokenRemove byte = 'r'
	tokenName   byte = 'm'
)

// reservedTokens are the bytes a value record length must never be written as.
var reservedTokens = []byte{tokenIndex, tokenRemove, tokenName}

// Decoded is the parsed form of a patch.
type Decoded struct {
	// CRC is the digest of the state the patch was produced against.
	CRC []byte `json:"crc"`

	// Entries holds one entry per index mentioned by the patch, in ascending
	// index order. Records keep their encounter order within an entry.
	Entries []ir.EntryDifference `json:"entries"`
}

// Entry returns the decoded entry for index.
func (d *Decoded) Entry(index uint8) (ir.EntryDifference, bool) {
	for _, e := range d.Entries {
		if e.Index == index {
			return e, true
		}
	}
	return ir.EntryDifference{}, false
}

// splitHeader separates the digest prefix from the index stream.
func splitHeader(wire []byte) (crc, body []byte, err error) {
	if len(wire) == 0 {
		return nil, nil, newInvalidError(0, "missing CRC length", nil)
	}
	n := int(wire[0])
	if len(wire) < 1+n {
		return nil, nil, newInvalidError(0, fmt.Sprintf("CRC length %d exceeds patch of %d bytes", n, len(wire)), nil)
	}
	return wire[1 : 1+n], wire[1+n:], nil
}

// DecodePatch parses patch bytes without any engine state.
// Malformed input is reported as an EngineError with ErrCodeDifferenceInvalid.
func DecodePatch(wire []byte) (*Decoded, error) {
	crc, body, err := splitHeader(wire)
	if err != nil {
		return nil, err
	}
	entries, err := decodeIndexStream(body, len(wire)-len(body))
	if err != nil {
		return nil, err
	}
	return &Decoded{CRC: slices.Clone(crc), Entries: entries}, nil
}

// ValidatePatchDifferences checks that wire is a well formed patch: framing,
// every value record and every nested name record. The digest is not
// compared against anything. Call this before ApplyPatch on untrusted input.
func ValidatePatchDifferences(wire []byte) error {
	_, err := DecodePatch(wire)
	return err
}

// decodeIndexStream parses the token stream. base is the offset of body
// within the full patch and is only used for error positions.
func decodeIndexStream(body []byte, base int) ([]ir.EntryDifference, error) {
	byIndex := make(map[uint8]*ir.EntryDifference)
	var cur *ir.EntryDifference

	for i := 0; i < len(body); {
		tok := body[i]
		if tok == tokenIndex {
			if i+1 >= len(body) {
				return nil, newInvalidError(base+i, "index header without index byte", nil)
			}
			idx := body[i+1]
			if byIndex[idx] == nil {
				byIndex[idx] = &ir.EntryDifference{Index: idx}
			}
			cur = byIndex[idx]
			i += 2
			continue
		}
		if cur == nil {
			return nil, newInvalidError(base+i, fmt.Sprintf("token %q before any index header", tok), nil)
		}

		switch tok {
		case tokenRemove:
			cur.RemoveEntry = true
			i++
		case tokenName:
			n, width, err := varint.DecodeWary(body[i+1:])
			if err != nil {
				return nil, newInvalidError(base+i+1, "name block length", err)
			}
			start := i + 1 + width
			if uint64(len(body)-start) < n {
				return nil, newInvalidError(base+start, fmt.Sprintf("name block length %d exceeds remaining %d bytes", n, len(body)-start), nil)
			}
			end := start + int(n)
			diffs, err := record.ParseStream(body[start:end])
			if err != nil {
				return nil, newInvalidError(base+start, fmt.Sprintf("name block for index %d", cur.Index), err)
			}
			if cur.MapNameChanged == nil {
				cur.MapNameChanged = []ir.Difference{}
			}
			cur.MapNameChanged = append(cur.MapNameChanged, diffs...)
			i = end
		default:
			d, n, err := record.NextInStream(body[i:])
			if err != nil {
				return nil, newInvalidError(base+i, fmt.Sprintf("value record for index %d", cur.Index), err)
			}
			cur.Diffs = append(cur.Diffs, d)
			i += n
		}
	}

	entries := make([]ir.EntryDifference, 0, len(byIndex))
	for _, idx := range slices.Sorted(maps.Keys(byIndex)) {
		entries = append(entries, *byIndex[idx])
	}
	return entries, nil
}
