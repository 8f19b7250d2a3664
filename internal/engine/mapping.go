package engine

import (
	"bytes"
	"maps"
	"slices"

	"github.com/roach88/sdde/internal/ir"
)

// ChangeIndexMapping stages key as the desired name of the field at index.
// It has no visible effect until the next Patch or Apply.
// Staging the same index twice keeps the later key.
func (e *Engine) ChangeIndexMapping(index uint8, key []byte) {
	e.pending[index] = bytes.Clone(key)
}

// Apply commits every pending name straight into the rename history as the
// index's current name, with no previous name, and produces no wire bytes.
//
// Both sides call Apply with the same names to agree on a naming baseline
// without a patch round trip.
func (e *Engine) Apply() {
	for _, idx := range slices.Sorted(maps.Keys(e.pending)) {
		e.history[idx] = ir.HistoryValue{Current: e.pending[idx]}
	}
	clear(e.pending)
}

// IndexMapping returns a copy of the rename history.
func (e *Engine) IndexMapping() map[uint8]ir.HistoryValue {
	out := make(map[uint8]ir.HistoryValue, len(e.history))
	for idx, h := range e.history {
		out[idx] = ir.HistoryValue{Current: bytes.Clone(h.Current), Last: bytes.Clone(h.Last)}
	}
	return out
}

// PendingIndexMapping returns a copy of the names staged for the next Patch.
func (e *Engine) PendingIndexMapping() map[uint8][]byte {
	out := make(map[uint8][]byte, len(e.pending))
	for idx, key := range e.pending {
		out[idx] = bytes.Clone(key)
	}
	return out
}

// Name returns the committed name of the field at index.
func (e *Engine) Name(index uint8) ([]byte, bool) {
	h, ok := e.history[index]
	if !ok {
		return nil, false
	}
	return bytes.Clone(h.Current), true
}
