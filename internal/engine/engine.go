package engine

import (
	"bytes"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/sdde/internal/ir"
)

// Engine is one side of a delta sync: the field collection, its digest, the
// rename history and the pending renames staged for the next Patch.
type Engine struct {
	fields  map[uint8][]byte
	crc     []byte
	pending map[uint8][]byte
	history map[uint8]ir.HistoryValue

	digester ir.Digester
	logger   *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger used for patch diagnostics.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithDigester sets the digest primitive used to fingerprint the collection.
// Both sides of a sync must use the same digester.
// Default: ir.CRC32C
func WithDigester(d ir.Digester) EngineOption {
	return func(e *Engine) {
		e.digester = d
	}
}

func newEngine(fields []ir.IndexedField, opts []EngineOption) *Engine {
	e := &Engine{
		fields:   make(map[uint8][]byte, len(fields)),
		pending:  make(map[uint8][]byte),
		history:  make(map[uint8]ir.HistoryValue),
		digester: ir.CRC32C{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, f := range ir.SortFields(fields) {
		e.fields[f.Index] = bytes.Clone(f.Data)
	}
	return e
}

// New creates an Engine holding fields and computes the collection digest.
//
// Fields may be given in any order. When an index appears more than once the
// last occurrence wins.
func New(fields []ir.IndexedField, opts ...EngineOption) *Engine {
	e := newEngine(fields, opts)
	e.crc = e.digest()
	return e
}

// Load creates an Engine from a trusted snapshot of fields and the digest
// recorded with them. The digest is not recomputed.
func Load(fields []ir.IndexedField, crc []byte, opts ...EngineOption) *Engine {
	e := newEngine(fields, opts)
	e.crc = bytes.Clone(crc)
	return e
}

// FromSnapshot is Load plus restoring the rename history of s.
func FromSnapshot(s ir.Snapshot, opts ...EngineOption) *Engine {
	e := Load(s.Fields, s.CRC, opts...)
	for idx, h := range s.History {
		e.history[idx] = ir.HistoryValue{Current: bytes.Clone(h.Current), Last: bytes.Clone(h.Last)}
	}
	return e
}

// Snapshot captures the engine state for persistence.
// Pending renames are not part of a snapshot.
func (e *Engine) Snapshot() ir.Snapshot {
	return ir.Snapshot{
		Fields:  e.Fields(),
		CRC:     e.CRC(),
		Digest:  e.digester.Name(),
		History: e.IndexMapping(),
	}
}

// indexes returns the tracked field indexes in ascending order.
func (e *Engine) indexes() []uint8 {
	return slices.Sorted(maps.Keys(e.fields))
}

// Fields returns a copy of the collection in ascending index order.
func (e *Engine) Fields() []ir.IndexedField {
	out := make([]ir.IndexedField, 0, len(e.fields))
	for _, idx := range e.indexes() {
		out = append(out, ir.NewIndexedField(idx, e.fields[idx]))
	}
	return out
}

// Field returns a copy of one field's payload.
func (e *Engine) Field(index uint8) ([]byte, bool) {
	data, ok := e.fields[index]
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Len returns the number of tracked fields.
func (e *Engine) Len() int {
	return len(e.fields)
}

// Fold returns the payloads concatenated in ascending index order.
func (e *Engine) Fold() []byte {
	return foldMap(e.fields)
}

// CRC returns the stored collection digest.
func (e *Engine) CRC() []byte {
	return bytes.Clone(e.crc)
}

// Digester returns the configured digest primitive.
func (e *Engine) Digester() ir.Digester {
	return e.digester
}

// Verify reports whether the stored digest matches the current collection.
// An engine built with Load from an untrusted snapshot can be checked this way.
func (e *Engine) Verify() error {
	actual := e.digest()
	if !bytes.Equal(actual, e.crc) {
		return NewCRCError(e.crc, actual)
	}
	return nil
}

func (e *Engine) digest() []byte {
	return e.digestOf(e.fields)
}

func (e *Engine) digestOf(fields map[uint8][]byte) []byte {
	return e.digester.Digest(foldMap(fields)).Value
}

func foldMap(fields map[uint8][]byte) []byte {
	size := 0
	for _, data := range fields {
		size += len(data)
	}
	out := make([]byte, 0, size)
	for _, idx := range slices.Sorted(maps.Keys(fields)) {
		out = append(out, fields[idx]...)
	}
	return out
}
