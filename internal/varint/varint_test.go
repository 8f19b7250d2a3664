package varint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTiers(t *testing.T) {
	tests := []struct {
		name string
		v    uint64
		want []byte
	}{
		{"zero", 0, []byte{0}},
		{"literal", 4, []byte{4}},
		{"max literal", 255, []byte{255}},
		{"min u16", 256, []byte{'s', 0x01, 0x00}},
		{"max u16", math.MaxUint16, []byte{'s', 0xff, 0xff}},
		{"min u32", 65536, []byte{'i', 0x00, 0x01, 0x00, 0x00}},
		{"max u32", math.MaxUint32, []byte{'i', 0xff, 0xff, 0xff, 0xff}},
		{"min u64", math.MaxUint32 + 1, []byte{'l', 0, 0, 0, 1, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Append(nil, tt.v))
			assert.Equal(t, len(tt.want), Size(tt.v))
		})
	}
}

func TestEncodeEscapesTagLiterals(t *testing.T) {
	for _, v := range []uint64{'i', 'l', 's'} {
		enc := Append(nil, v)
		assert.Equal(t, []byte{'s', 0x00, byte(v)}, enc, "value %d", v)

		got, n := Decode(enc)
		assert.Equal(t, v, got)
		assert.Equal(t, 3, n)
	}
}

func TestAppendAvoidingReserved(t *testing.T) {
	enc := AppendAvoiding(nil, 'm', 'm', 'r')
	assert.Equal(t, []byte{'s', 0x00, 'm'}, enc)

	enc = AppendAvoiding(nil, 'q', 'm', 'r')
	assert.Equal(t, []byte{'q'}, enc, "non reserved literal stays one byte")

	enc = AppendAvoiding([]byte{0xAA}, 300, 'm')
	assert.Equal(t, []byte{0xAA, 's', 0x01, 0x2c}, enc, "appends after existing bytes")
}

func TestRoundTripAllLiteralsAndBoundaries(t *testing.T) {
	values := []uint64{math.MaxUint16 + 1, math.MaxUint32, math.MaxUint32 + 1, math.MaxUint64}
	for v := uint64(0); v <= 300; v++ {
		values = append(values, v)
	}

	for _, v := range values {
		enc := Append(nil, v)
		got, n := Decode(enc)
		assert.Equal(t, v, got, "value %d", v)
		assert.Equal(t, len(enc), n, "value %d", v)
	}
}

func TestDecodeConsumesOnlyItsBytes(t *testing.T) {
	buf := append(Append(nil, 1000), 0x2d, 0x01)

	v, n := Decode(buf)
	assert.Equal(t, uint64(1000), v)
	assert.Equal(t, 3, n)
}

func TestDecodeWaryTruncated(t *testing.T) {
	_, _, err := DecodeWary(nil)
	require.ErrorIs(t, err, ErrTruncated)

	_, _, err = DecodeWary([]byte{'s', 0x01})
	require.ErrorIs(t, err, ErrTruncated)

	_, _, err = DecodeWary([]byte{'l', 0, 0, 0})
	require.ErrorIs(t, err, ErrTruncated)

	v, n, err := DecodeWary([]byte{'i', 0, 0, 1, 0, 0xff})
	require.NoError(t, err)
	assert.Equal(t, uint64(256), v)
	assert.Equal(t, 5, n)
}

func TestDecodePanicsOnEmptyInput(t *testing.T) {
	assert.Panics(t, func() { Decode(nil) })
}
