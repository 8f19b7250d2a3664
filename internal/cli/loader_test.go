package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/testutil"
)

func TestLoadFieldSet_Formats(t *testing.T) {
	dir := t.TempDir()

	docs := map[string]string{
		"set.yaml": `
digest: crc32c
fields:
  - {index: 0, key: title, value: "Test"}
  - {index: 7, hex: "00ff"}
`,
		"set.json": `{
  "digest": "crc32c",
  "fields": [
    {"index": 0, "key": "title", "value": "Test"},
    {"index": 7, "hex": "00ff"}
  ]
}`,
		"set.cue": `
digest: "crc32c"
fields: [
	{index: 0, key: "title", value: "Test"},
	{index: 7, hex: "00ff"},
]
`,
	}

	for name, content := range docs {
		t.Run(name, func(t *testing.T) {
			fs, err := LoadFieldSet(writeFile(t, dir, name, content))
			require.NoError(t, err)

			assert.Equal(t, ir.DigestCRC32C, fs.Digest)
			assert.Equal(t, []ir.IndexedField{
				testutil.Field(0, "Test"),
				ir.NewIndexedField(7, []byte{0x00, 0xff}),
			}, fs.IndexedFields())
			assert.Equal(t, map[uint8][]byte{0: []byte("title")}, fs.Names())
		})
	}
}

func TestLoadFieldSet_EmptyFieldAndNoDigest(t *testing.T) {
	path := writeFile(t, t.TempDir(), "set.yaml", "fields:\n  - {index: 3}\n")

	fs, err := LoadFieldSet(path)
	require.NoError(t, err)
	assert.Empty(t, fs.Digest)
	require.Len(t, fs.IndexedFields(), 1)
	assert.Equal(t, uint8(3), fs.IndexedFields()[0].Index)
	assert.Empty(t, fs.IndexedFields()[0].Data)
	assert.Empty(t, fs.Names())
}

func TestLoadFieldSet_NormalizesKeys(t *testing.T) {
	decomposed := "fields:\n  - {index: 0, key: \"Cafe\u0301\"}\n"
	path := writeFile(t, t.TempDir(), "set.yaml", decomposed)

	fs, err := LoadFieldSet(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("Caf\u00e9"), fs.Names()[0])
}

func TestLoadFieldSet_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"empty", "empty.yaml", "  \n", ErrCodeEmpty},
		{"yaml syntax", "bad.yaml", "fields: [", ErrCodeParseFailed},
		{"yaml unknown field", "typo.yaml", "fields:\n  - {index: 0, vaule: x}\n", ErrCodeParseFailed},
		{"yaml index range", "range.yaml", "fields:\n  - {index: 256}\n", ErrCodeIndexRange},
		{"yaml negative index", "neg.yaml", "fields:\n  - {index: -1}\n", ErrCodeIndexRange},
		{"duplicate index", "dup.yaml", "fields:\n  - {index: 1}\n  - {index: 1}\n", ErrCodeDuplicateIndex},
		{"value and hex", "both.yaml", "fields:\n  - {index: 1, value: a, hex: \"61\"}\n", ErrCodeValueConflict},
		{"bad hex", "hex.yaml", "fields:\n  - {index: 1, hex: \"zz\"}\n", ErrCodeInvalidHex},
		{"unknown digest", "digest.yaml", "digest: md5\nfields: []\n", ErrCodeSchema},
		{"cue syntax", "bad.cue", "fields: [", ErrCodeParseFailed},
		{"cue index range", "range.cue", "fields: [{index: 300}]", ErrCodeSchema},
		{"cue unknown field", "typo.cue", "fields: [{index: 0, vaule: \"x\"}]", ErrCodeSchema},
		{"cue missing index", "noindex.json", `{"fields": [{"value": "x"}]}`, ErrCodeSchema},
		{"cue bad digest", "digest.json", `{"digest": "md5", "fields": []}`, ErrCodeSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFieldSet(writeFile(t, dir, tt.file, tt.content))
			require.Error(t, err)

			var loadErr *LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.code, loadErr.Code, "error: %v", err)
		})
	}
}

func TestLoadFieldSet_IndexRangeMessage(t *testing.T) {
	_, err := LoadFieldSet(writeFile(t, t.TempDir(), "range.yaml", "fields:\n  - {index: 256}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 256 outside 0..255")
}

func TestLoadFieldSet_NotFound(t *testing.T) {
	_, err := LoadFieldSet(filepath.Join(t.TempDir(), "missing.yaml"))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadError_Position(t *testing.T) {
	_, err := LoadFieldSet(writeFile(t, t.TempDir(), "range.cue", "fields: [\n\t{index: 300},\n]\n"))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	if loadErr.Pos.IsValid() {
		assert.Contains(t, err.Error(), "range.cue:")
	}
	assert.Contains(t, err.Error(), ErrCodeSchema)
}

func TestFieldSetFrom(t *testing.T) {
	fields := []ir.IndexedField{
		ir.NewIndexedField(9, []byte{0xff, 0xfe}),
		testutil.Field(2, "Test2"),
	}
	names := map[uint8]ir.HistoryValue{2: {Current: []byte("title")}}

	fs := FieldSetFrom(ir.DigestXXHash, fields, names)

	assert.Equal(t, ir.DigestXXHash, fs.Digest)
	assert.Equal(t, []FieldDoc{
		{Index: 2, Key: "title", Value: "Test2"},
		{Index: 9, Hex: "fffe"},
	}, fs.Fields)
}

func TestWriteFieldSet_LoadsBack(t *testing.T) {
	fs := &FieldSet{
		Digest: ir.DigestCRC32C,
		Fields: []FieldDoc{
			{Index: 0, Key: "title", Value: "Test2"},
			{Index: 1, Hex: "00ff"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFieldSet(&buf, fs))
	assert.Contains(t, buf.String(), "value: Test2")

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, SaveFieldSet(path, fs))

	loaded, err := LoadFieldSet(path)
	require.NoError(t, err)
	assert.Equal(t, fs, loaded)
}
