package engine

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/sdde/internal/diff"
	"github.com/roach88/sdde/internal/ir"
)

// ApplyPatch applies wire bytes produced by a peer's Patch and returns every
// field of the resulting collection in ascending index order, each with the
// new name the patch gave it, if any.
//
// The digest embedded in the patch must equal the digest of the current
// collection; otherwise an ErrCodeCRCMismatch error is returned. Malformed
// bytes return ErrCodeDifferenceInvalid. In both cases the engine is left
// unchanged: all replay happens on a staged copy that is committed only
// after every entry applied cleanly.
func (e *Engine) ApplyPatch(wire []byte) ([]ir.FieldResult, error) {
	crc, _, err := splitHeader(wire)
	if err != nil {
		return nil, err
	}
	if actual := e.digest(); !bytes.Equal(crc, actual) {
		e.logger.Warn("patch rejected: CRC mismatch",
			"expected", string(crc),
			"actual", string(actual),
		)
		return nil, NewCRCError(crc, actual)
	}

	decoded, err := DecodePatch(wire)
	if err != nil {
		return nil, err
	}

	fields := maps.Clone(e.fields)
	history := maps.Clone(e.history)
	renamed := make(map[uint8][]byte)

	for _, entry := range decoded.Entries {
		if entry.RemoveEntry {
			delete(fields, entry.Index)
			continue
		}

		data, err := diff.Apply(fields[entry.Index], entry.Diffs)
		if err != nil {
			return nil, &EngineError{
				Code:    ErrCodeDifferenceInvalid,
				Message: fmt.Sprintf("replay value of index %d", entry.Index),
				Offset:  -1,
				Err:     err,
			}
		}
		fields[entry.Index] = data

		if entry.MapNameChanged == nil {
			continue
		}
		h := history[entry.Index]
		name, err := diff.Apply(h.Current, entry.MapNameChanged)
		if err != nil {
			return nil, &EngineError{
				Code:    ErrCodeDifferenceInvalid,
				Message: fmt.Sprintf("replay name of index %d", entry.Index),
				Offset:  -1,
				Err:     err,
			}
		}
		history[entry.Index] = h.Shift(name)
		renamed[entry.Index] = name
	}

	e.fields = fields
	e.history = history
	e.crc = e.digest()

	e.logger.Debug("patch applied",
		"entries", len(decoded.Entries),
		"renamed", len(renamed),
		"fields", len(fields),
		"bytes", len(wire),
	)

	results := make([]ir.FieldResult, 0, len(fields))
	for _, idx := range slices.Sorted(maps.Keys(fields)) {
		results = append(results, ir.FieldResult{
			Index:          idx,
			Data:           bytes.Clone(fields[idx]),
			MapNameChanged: bytes.Clone(renamed[idx]),
		})
	}
	return results, nil
}
