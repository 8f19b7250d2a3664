package engine

import (
	"bytes"
	"maps"
	"slices"

	"github.com/roach88/sdde/internal/diff"
	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/record"
	"github.com/roach88/sdde/internal/varint"
)

// Patch moves the engine to newFields and returns the wire bytes that move a
// receiver holding the previous state to the same place.
//
// The patch embeds the digest of the state before this call. For every field
// in newFields it carries the value diff (an existing field whose value did
// not change contributes nothing; a new field is always announced, even when
// empty). Every tracked field missing from newFields is removed. Every
// pending rename of a field that still exists is diffed against the current
// name and carried when it changes anything; the rename history is updated
// either way and the pending renames are cleared.
func (e *Engine) Patch(newFields []ir.IndexedField) []byte {
	out := make([]byte, 0, 1+len(e.crc))
	out = append(out, byte(len(e.crc)))
	out = append(out, e.crc...)

	present := make(map[uint8]bool, len(newFields))
	var changed, added, removed, renamed int

	for _, f := range lastByIndex(newFields) {
		present[f.Index] = true
		old, exists := e.fields[f.Index]
		diffs := diff.Diff(old, f.Data)
		e.fields[f.Index] = bytes.Clone(f.Data)

		if exists && len(diffs) == 0 {
			continue
		}
		if exists {
			changed++
		} else {
			added++
		}
		out = append(out, tokenIndex, f.Index)
		out = record.AppendStream(out, diffs, reservedTokens...)
	}

	for _, idx := range e.indexes() {
		if present[idx] {
			continue
		}
		delete(e.fields, idx)
		out = append(out, tokenIndex, idx, tokenRemove)
		removed++
	}

	for _, idx := range slices.Sorted(maps.Keys(e.pending)) {
		key := e.pending[idx]
		if _, ok := e.fields[idx]; !ok {
			e.logger.Debug("dropping rename of untracked field", "index", idx)
			continue
		}
		h := e.history[idx]
		diffs := diff.Diff(h.Current, key)
		if len(diffs) > 0 {
			block := record.EncodeStream(diffs)
			out = append(out, tokenIndex, idx, tokenName)
			out = varint.Append(out, uint64(len(block)))
			out = append(out, block...)
			renamed++
		}
		e.history[idx] = h.Shift(key)
	}
	clear(e.pending)

	e.crc = e.digest()

	e.logger.Debug("patch produced",
		"changed", changed,
		"added", added,
		"removed", removed,
		"renamed", renamed,
		"bytes", len(out),
	)
	return out
}

// lastByIndex returns fields sorted by index with only the last occurrence
// of each index kept.
func lastByIndex(fields []ir.IndexedField) []ir.IndexedField {
	sorted := ir.SortFields(fields)
	out := sorted[:0]
	for i, f := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Index == f.Index {
			continue
		}
		out = append(out, f)
	}
	return out
}
