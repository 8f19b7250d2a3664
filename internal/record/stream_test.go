package record

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sdde/internal/ir"
)

func TestEncodeStreamLiteral(t *testing.T) {
	diffs := []ir.Difference{{Action: ir.ActionInsert, Range: ir.NewRange(4, 1), Value: []byte("2")}}

	assert.Equal(t, []byte{6, 'i', ':', 4, '-', 1, '2'}, EncodeStream(diffs))
}

func TestParseStreamRoundTrip(t *testing.T) {
	diffs := []ir.Difference{
		{Action: ir.ActionReplace, Range: ir.NewRange(0, 1), Value: []byte("f")},
		{Action: ir.ActionInsert, Range: ir.NewRange(4, 5), Value: []byte("tname")},
		{Action: ir.ActionDelete, Range: ir.NewRange(9, 2)},
	}

	got, err := ParseStream(EncodeStream(diffs))
	require.NoError(t, err)
	assert.Equal(t, diffs, got)
}

func TestParseStreamEmpty(t *testing.T) {
	got, err := ParseStream(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAppendStreamAvoidsReservedLengths(t *testing.T) {
	// 'm' is 109: a Replace record with a 104 byte value is exactly 109 bytes long.
	value := bytes.Repeat([]byte("x"), 104)
	d := ir.Difference{Action: ir.ActionReplace, Range: ir.NewRange(0, 104), Value: value}
	require.Len(t, ToBytes(d), 'm')

	plain := AppendStream(nil, []ir.Difference{d})
	assert.Equal(t, byte('m'), plain[0], "without reservation the length is a literal")

	escaped := AppendStream(nil, []ir.Difference{d}, 'm', 'r', 'v')
	assert.Equal(t, []byte{'s', 0x00, 'm'}, escaped[:3])

	got, err := ParseStream(escaped)
	require.NoError(t, err)
	assert.Equal(t, []ir.Difference{d}, got)
}

func TestParseStreamErrorsReportOuterOffset(t *testing.T) {
	good := EncodeStream([]ir.Difference{{Action: ir.ActionDelete, Range: ir.NewRange(1, 1)}})
	bad := append(bytes.Clone(good), 6, 'i', ':', 4, '-', 1) // one value byte missing

	_, err := ParseStream(bad)
	require.Error(t, err)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, len(good)+1, de.Offset)
	assert.Contains(t, de.Reason, "exceeds remaining")
}

func TestParseStreamTruncatedLength(t *testing.T) {
	_, err := ParseStream([]byte{'s', 0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record length")
}
