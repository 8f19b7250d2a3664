package ir

import (
	"bytes"
	"fmt"
	"slices"
)

// IndexedField is one tracked field: a byte payload keyed by a one byte index.
type IndexedField struct {
	Index uint8  `json:"index"`
	Data  []byte `json:"data"`
}

// NewIndexedField creates a field holding a copy of data.
func NewIndexedField(index uint8, data []byte) IndexedField {
	return IndexedField{Index: index, Data: bytes.Clone(data)}
}

// Action is the kind of a single difference record.
// The underlying byte is the record's wire tag.
type Action byte

const (
	ActionReplace Action = 'r'
	ActionInsert  Action = 'i'
	ActionDelete  Action = 'd'
)

// ParseAction maps a wire tag to an Action.
func ParseAction(tag byte) (Action, bool) {
	switch Action(tag) {
	case ActionReplace, ActionInsert, ActionDelete:
		return Action(tag), true
	}
	return 0, false
}

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionReplace:
		return "Replace"
	case ActionInsert:
		return "Insert"
	case ActionDelete:
		return "Delete"
	default:
		return fmt.Sprintf("Action(%#x)", byte(a))
	}
}

// MarshalText implements encoding.TextMarshaler so actions render by name in JSON output.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Range is a half-open byte range [Start, Start+Length).
//
// For Replace and Insert the range is in the coordinates of the new sequence,
// for Delete it is in the coordinates of the old sequence.
type Range struct {
	Start  uint64 `json:"start"`
	Length uint64 `json:"length"`
}

// NewRange creates a Range.
func NewRange(start, length uint64) Range {
	return Range{Start: start, Length: length}
}

// End returns the exclusive end of the range.
func (r Range) End() uint64 {
	return r.Start + r.Length
}

// Difference is one atomic change over a byte range.
// Value is empty for Delete and has Range.Length bytes otherwise.
type Difference struct {
	Action Action `json:"action"`
	Range  Range  `json:"range"`
	Value  []byte `json:"value,omitempty"`
}

// String renders the difference for diagnostics, e.g. Insert(4,1)"2".
func (d Difference) String() string {
	if d.Action == ActionDelete {
		return fmt.Sprintf("%s(%d,%d)", d.Action, d.Range.Start, d.Range.Length)
	}
	return fmt.Sprintf("%s(%d,%d)%q", d.Action, d.Range.Start, d.Range.Length, d.Value)
}

// EntryDifference is the decoded content of a patch for one field index.
//
// When RemoveEntry is true the other fields carry no meaning and the field
// must be deleted. MapNameChanged is nil when the patch carries no rename
// for the index.
type EntryDifference struct {
	Index          uint8        `json:"index"`
	RemoveEntry    bool         `json:"remove_entry"`
	Diffs          []Difference `json:"diffs"`
	MapNameChanged []Difference `json:"map_name_changed,omitempty"`
}

// HistoryValue tracks the committed name of a field index.
// Last only ever receives the previous Current.
type HistoryValue struct {
	Current []byte `json:"current"`
	Last    []byte `json:"last"`
}

// Shift records a new current name, moving the previous one into Last.
func (h HistoryValue) Shift(next []byte) HistoryValue {
	return HistoryValue{Current: bytes.Clone(next), Last: h.Current}
}

// FieldResult is one field of the state produced by applying a patch.
// MapNameChanged is non-nil only when the patch renamed the field.
type FieldResult struct {
	Index          uint8  `json:"index"`
	Data           []byte `json:"data"`
	MapNameChanged []byte `json:"map_name_changed,omitempty"`
}

// Snapshot is a persisted engine state: the fields, the digest over their
// fold and the rename history. Loading a snapshot trusts CRC as is.
type Snapshot struct {
	Fields  []IndexedField         `json:"fields"`
	CRC     []byte                 `json:"crc"`
	Digest  string                 `json:"digest"`
	History map[uint8]HistoryValue `json:"history,omitempty"`
}

// SortFields returns a copy of fields ordered by ascending index.
// The sort is stable, so for duplicate indexes the later entry sorts last.
func SortFields(fields []IndexedField) []IndexedField {
	sorted := slices.Clone(fields)
	slices.SortStableFunc(sorted, func(a, b IndexedField) int {
		return int(a.Index) - int(b.Index)
	})
	return sorted
}

// Fold concatenates the payloads of fields in ascending index order.
// This is the input of the collection digest.
func Fold(fields []IndexedField) []byte {
	size := 0
	for _, f := range fields {
		size += len(f.Data)
	}
	out := make([]byte, 0, size)
	for _, f := range SortFields(fields) {
		out = append(out, f.Data...)
	}
	return out
}

// FoldResults concatenates the payloads of apply results in ascending index order.
func FoldResults(results []FieldResult) []byte {
	fields := make([]IndexedField, len(results))
	for i, r := range results {
		fields[i] = IndexedField{Index: r.Index, Data: r.Data}
	}
	return Fold(fields)
}
