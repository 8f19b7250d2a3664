package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sdde/internal/ir"
)

func TestToBytesInsert(t *testing.T) {
	d := ir.Difference{Action: ir.ActionInsert, Range: ir.NewRange(4, 1), Value: []byte("2")}

	assert.Equal(t, []byte{'i', ':', 4, '-', 1, '2'}, ToBytes(d))
}

func TestToBytesDeleteOmitsValue(t *testing.T) {
	d := ir.Difference{Action: ir.ActionDelete, Range: ir.NewRange(3, 2), Value: []byte("ignored")}

	assert.Equal(t, []byte{'d', ':', 3, '-', 2}, ToBytes(d))
}

func TestToBytesWideRange(t *testing.T) {
	d := ir.Difference{Action: ir.ActionDelete, Range: ir.NewRange(1000, 70000)}

	want := []byte{'d', ':', 's', 0x03, 0xe8, '-', 'i', 0x00, 0x01, 0x11, 0x70}
	assert.Equal(t, want, ToBytes(d))
	assert.Equal(t, d, FromBytes(want))
}

func TestFromBytesRoundTrip(t *testing.T) {
	diffs := []ir.Difference{
		{Action: ir.ActionReplace, Range: ir.NewRange(4, 7), Value: []byte("2Thello")},
		{Action: ir.ActionInsert, Range: ir.NewRange(0, 3), Value: []byte("abc")},
		{Action: ir.ActionDelete, Range: ir.NewRange(5, 10)},
		{Action: ir.ActionReplace, Range: ir.NewRange('i', 1), Value: []byte("x")},
	}

	for _, d := range diffs {
		b := ToBytes(d)
		assert.Equal(t, d, FromBytes(b), "trusting parse of %s", d)

		got, err := ValidateFromBytes(b)
		require.NoError(t, err, "validating parse of %s", d)
		assert.Equal(t, d, got)
	}
}

func TestFromBytesPanicsOnUnknownAction(t *testing.T) {
	assert.Panics(t, func() { FromBytes([]byte{'x', ':', 0, '-', 0}) })
}

func TestValidateFromBytesErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		reason string
	}{
		{"empty", nil, "too short"},
		{"short", []byte{'i', ':', 4}, "too short"},
		{"bad action", []byte{'x', ':', 4, '-', 0}, "invalid difference action"},
		{"bad first separator", []byte{'i', ';', 4, '-', 0}, "separator"},
		{"bad second separator", []byte{'d', ':', 4, '+', 0}, "separator"},
		{"truncated start", []byte{'d', ':', 'i', 0, 0, 1}, "range start"},
		{"truncated length", []byte{'d', ':', 1, '-', 'i', 0}, "range length"},
		{"value too short", []byte{'i', ':', 4, '-', 3, 'a'}, "value has 1 bytes"},
		{"value too long", []byte{'r', ':', 0, '-', 1, 'a', 'b'}, "value has 2 bytes"},
		{"delete with value", []byte{'d', ':', 0, '-', 1, 'a'}, "delete record carries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateFromBytes(tt.input)
			require.Error(t, err)
			assert.True(t, IsDecodeError(err))
			assert.Contains(t, err.Error(), KindDifferenceInvalid)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestFromBytesCopiesValue(t *testing.T) {
	b := ToBytes(ir.Difference{Action: ir.ActionInsert, Range: ir.NewRange(0, 2), Value: []byte("ab")})
	d := FromBytes(b)
	b[len(b)-1] = 'z'

	assert.Equal(t, []byte("ab"), d.Value)
}
