package testutil

import "github.com/roach88/sdde/internal/ir"

// Field builds one indexed field from a string payload.
func Field(index uint8, value string) ir.IndexedField {
	return ir.IndexedField{Index: index, Data: []byte(value)}
}

// Fields builds a collection whose indexes follow argument order:
// Fields("a", "b") holds index 0 = "a" and index 1 = "b".
func Fields(values ...string) []ir.IndexedField {
	out := make([]ir.IndexedField, len(values))
	for i, v := range values {
		out[i] = Field(uint8(i), v)
	}
	return out
}

// FieldMap renders a collection as index -> string for readable assertions.
func FieldMap(fields []ir.IndexedField) map[uint8]string {
	out := make(map[uint8]string, len(fields))
	for _, f := range fields {
		out[f.Index] = string(f.Data)
	}
	return out
}

// ResultMap renders apply results as index -> string.
func ResultMap(results []ir.FieldResult) map[uint8]string {
	out := make(map[uint8]string, len(results))
	for _, r := range results {
		out[r.Index] = string(r.Data)
	}
	return out
}
