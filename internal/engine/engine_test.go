package engine

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPair(t *testing.T, fields []ir.IndexedField, opts ...EngineOption) (sender, receiver *Engine) {
	t.Helper()
	opts = append([]EngineOption{WithLogger(quietLogger())}, opts...)
	return New(fields, opts...), New(fields, opts...)
}

// state is everything ApplyPatch may touch.
type state struct {
	Fields  []ir.IndexedField
	CRC     []byte
	History map[uint8]ir.HistoryValue
}

func capture(e *Engine) state {
	return state{Fields: e.Fields(), CRC: e.CRC(), History: e.IndexMapping()}
}

func TestNew_DigestsFold(t *testing.T) {
	e := New(testutil.Fields("Te", "st"), WithLogger(quietLogger()))

	assert.Equal(t, []byte("1367696971"), e.CRC())
	assert.Equal(t, []byte("Test"), e.Fold())
	assert.NoError(t, e.Verify())
}

func TestNew_SortsAndKeepsLastDuplicate(t *testing.T) {
	e := New([]ir.IndexedField{
		testutil.Field(2, "c"),
		testutil.Field(0, "a"),
		testutil.Field(2, "C"),
	}, WithLogger(quietLogger()))

	assert.Equal(t, map[uint8]string{0: "a", 2: "C"}, testutil.FieldMap(e.Fields()))
	assert.Equal(t, []byte("aC"), e.Fold())
	assert.Equal(t, 2, e.Len())
}

func TestLoad_TrustsDigest(t *testing.T) {
	e := Load(testutil.Fields("Test"), []byte("42"), WithLogger(quietLogger()))

	assert.Equal(t, []byte("42"), e.CRC())

	err := e.Verify()
	require.Error(t, err)
	assert.True(t, IsCRCError(err))
}

func TestPatch_LiteralVector(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test"))

	wire := sender.Patch(testutil.Fields("Test2"))

	want := []byte{10, '1', '3', '6', '7', '6', '9', '6', '9', '7', '1', 'v', 0, 6, 'i', ':', 4, '-', 1, '2'}
	assert.Equal(t, want, wire)

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)
	assert.Equal(t, []ir.FieldResult{{Index: 0, Data: []byte("Test2")}}, results)
	assert.Equal(t, sender.CRC(), receiver.CRC())
}

func TestPatch_NoChangeIsHeaderOnly(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test", "Hello"))
	crc := sender.CRC()

	wire := sender.Patch(testutil.Fields("Test", "Hello"))

	assert.Equal(t, append([]byte{byte(len(crc))}, crc...), wire)

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)
	assert.Equal(t, map[uint8]string{0: "Test", 1: "Hello"}, testutil.ResultMap(results))
	assert.Equal(t, crc, receiver.CRC())
}

func TestPatch_MultiFieldEquivalence(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test", "Hello", "World"))
	next := testutil.Fields("Test2", "Hallo", "World!")

	results, err := receiver.ApplyPatch(sender.Patch(next))
	require.NoError(t, err)

	assert.Equal(t, ir.Fold(next), ir.FoldResults(results))
	assert.Equal(t, testutil.FieldMap(next), testutil.ResultMap(results))
	assert.Equal(t, sender.Fields(), receiver.Fields())
	assert.Equal(t, sender.CRC(), receiver.CRC())
}

func TestPatch_Removal(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test", "Hello", "World"))
	next := []ir.IndexedField{testutil.Field(0, "Test"), testutil.Field(2, "World")}

	wire := sender.Patch(next)
	assert.True(t, bytes.HasSuffix(wire, []byte{'v', 1, 'r'}))

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)
	assert.Equal(t, map[uint8]string{0: "Test", 2: "World"}, testutil.ResultMap(results))

	_, ok := receiver.Field(1)
	assert.False(t, ok)
}

func TestPatch_Addition(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test"))
	next := []ir.IndexedField{testutil.Field(0, "Test"), testutil.Field(5, "new"), testutil.Field(9, "")}

	results, err := receiver.ApplyPatch(sender.Patch(next))
	require.NoError(t, err)

	assert.Equal(t, map[uint8]string{0: "Test", 5: "new", 9: ""}, testutil.ResultMap(results))
	assert.Equal(t, []uint8{0, 5, 9}, []uint8{results[0].Index, results[1].Index, results[2].Index})

	data, ok := receiver.Field(9)
	assert.True(t, ok)
	assert.Empty(t, data)
}

func TestPatch_DuplicateIndexLastWins(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test"))

	results, err := receiver.ApplyPatch(sender.Patch([]ir.IndexedField{
		testutil.Field(0, "first"),
		testutil.Field(0, "second"),
	}))
	require.NoError(t, err)

	assert.Equal(t, map[uint8]string{0: "second"}, testutil.ResultMap(results))
}

func TestPatch_ConsecutivePatches(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test", "Hello"))

	steps := [][]ir.IndexedField{
		testutil.Fields("Test2", "Hello"),
		testutil.Fields("Test2", "Hello World", "extra"),
		{testutil.Field(1, "Hi"), testutil.Field(2, "extra")},
		{testutil.Field(1, "Hi"), testutil.Field(2, "extra"), testutil.Field(200, "far")},
		{},
	}

	for i, next := range steps {
		results, err := receiver.ApplyPatch(sender.Patch(next))
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, testutil.FieldMap(next), testutil.ResultMap(results), "step %d", i)
		assert.Equal(t, sender.CRC(), receiver.CRC(), "step %d", i)
	}
	assert.Equal(t, 0, receiver.Len())
}

func TestApplyPatch_ReplayedPatchRejected(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test"))

	wire := sender.Patch(testutil.Fields("Test2"))
	_, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)

	_, err = receiver.ApplyPatch(wire)
	require.Error(t, err)
	assert.True(t, IsCRCError(err))
}

func TestApplyPatch_DigestGate(t *testing.T) {
	sender := New(testutil.Fields("Test"), WithLogger(quietLogger()))
	receiver := New(testutil.Fields("Tost"), WithLogger(quietLogger()))
	before := capture(receiver)

	_, err := receiver.ApplyPatch(sender.Patch(testutil.Fields("Test2")))
	require.Error(t, err)
	assert.True(t, IsCRCError(err))
	assert.False(t, IsDifferenceInvalid(err))

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeCRCMismatch, ee.Code)
	assert.Equal(t, -1, ee.Offset)
	assert.Equal(t, `"1367696971"`, ee.Details["expected"])

	assert.Equal(t, before, capture(receiver))
}

func TestApplyPatch_Rename(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Ada", "Lovelace"))
	for _, e := range []*Engine{sender, receiver} {
		e.ChangeIndexMapping(0, []byte("name"))
		e.ChangeIndexMapping(1, []byte("surname"))
		e.Apply()
	}

	sender.ChangeIndexMapping(0, []byte("firstname"))
	wire := sender.Patch(testutil.Fields("Ada", "Lovelace"))

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, []byte("firstname"), results[0].MapNameChanged)
	assert.Nil(t, results[1].MapNameChanged)

	want := ir.HistoryValue{Current: []byte("firstname"), Last: []byte("name")}
	assert.Equal(t, want, receiver.IndexMapping()[0])
	assert.Equal(t, want, sender.IndexMapping()[0])
	assert.Equal(t, []byte("surname"), receiver.IndexMapping()[1].Current)
	assert.Empty(t, sender.PendingIndexMapping())
}

func TestApplyPatch_RenameWithoutBaseline(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("x"))

	sender.ChangeIndexMapping(0, []byte("key"))
	results, err := receiver.ApplyPatch(sender.Patch(testutil.Fields("y")))
	require.NoError(t, err)

	assert.Equal(t, []ir.FieldResult{{Index: 0, Data: []byte("y"), MapNameChanged: []byte("key")}}, results)

	name, ok := receiver.Name(0)
	assert.True(t, ok)
	assert.Equal(t, []byte("key"), name)
}

func TestPatch_UnchangedRenameNotSent(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("x"))
	for _, e := range []*Engine{sender, receiver} {
		e.ChangeIndexMapping(0, []byte("key"))
		e.Apply()
	}

	sender.ChangeIndexMapping(0, []byte("key"))
	wire := sender.Patch(testutil.Fields("x"))

	assert.Equal(t, 1+len(sender.CRC()), len(wire))
	assert.Equal(t, ir.HistoryValue{Current: []byte("key"), Last: []byte("key")}, sender.IndexMapping()[0])

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)
	assert.Nil(t, results[0].MapNameChanged)
}

func TestPatch_RenameOfRemovedFieldDropped(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("a", "b"))
	sender.ChangeIndexMapping(1, []byte("gone"))
	sender.ChangeIndexMapping(7, []byte("never"))

	wire := sender.Patch(testutil.Fields("a"))
	assert.False(t, bytes.Contains(wire, []byte("gone")))
	assert.False(t, bytes.Contains(wire, []byte("never")))
	assert.Empty(t, sender.PendingIndexMapping())

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)
	assert.Equal(t, map[uint8]string{0: "a"}, testutil.ResultMap(results))
}

func TestPatch_RenameOfUntrackedIndexDropped(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("a"))
	sender.ChangeIndexMapping(9, []byte("ghost"))

	wire := sender.Patch(testutil.Fields("a"))
	assert.Equal(t, 1+len(receiver.CRC()), len(wire))
	assert.Empty(t, sender.PendingIndexMapping())

	_, ok := sender.Name(9)
	assert.False(t, ok)

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)
	assert.Equal(t, map[uint8]string{0: "a"}, testutil.ResultMap(results))
	assert.Empty(t, receiver.IndexMapping())
	assert.Equal(t, sender.Fields(), receiver.Fields())
}

func TestPatch_ControlLengthRecords(t *testing.T) {
	// Insert records of these value sizes are 109 ('m'), 114 ('r') and 118 ('v') bytes long.
	for _, size := range []int{104, 109, 113} {
		sender, receiver := newPair(t, testutil.Fields(""))
		value := string(bytes.Repeat([]byte{'z'}, size))

		wire := sender.Patch(testutil.Fields(value))
		crcLen := int(wire[0])
		body := wire[1+crcLen:]
		assert.Equal(t, []byte{'v', 0, 's', 0, byte(size + 5)}, body[:5], "value size %d", size)

		require.NoError(t, ValidatePatchDifferences(wire))
		results, err := receiver.ApplyPatch(wire)
		require.NoError(t, err, "value size %d", size)
		assert.Equal(t, value, string(results[0].Data))
	}
}

func TestApplyPatch_MalformedLeavesStateUnchanged(t *testing.T) {
	crc := ir.CRC32C{}.Digest([]byte("Test")).Value
	header := append([]byte{byte(len(crc))}, crc...)
	with := func(body ...byte) []byte {
		return append(bytes.Clone(header), body...)
	}

	tests := []struct {
		name string
		wire []byte
	}{
		{name: "empty", wire: nil},
		{name: "crc length past end", wire: []byte{50, '1', '2'}},
		{name: "truncated record", wire: with('v', 0, 6, 'i', ':', 4, '-', 1)},
		{name: "record before header", wire: with(6, 'i', ':', 4, '-', 1, '2')},
		{name: "header without index", wire: with('v')},
		{name: "unknown action", wire: with('v', 0, 6, 'x', ':', 4, '-', 1, '2')},
		{name: "value length mismatch", wire: with('v', 0, 6, 'i', ':', 4, '-', 2, '2')},
		{name: "name block past end", wire: with('v', 0, 'm', 20, 1)},
		{name: "replace out of range", wire: with('v', 0, 6, 'r', ':', 10, '-', 1, 'X')},
		{name: "delete out of range", wire: with('v', 0, 5, 'd', ':', 2, '-', 9)},
		{name: "good entry then bad entry", wire: with('v', 0, 6, 'i', ':', 4, '-', 1, '2', 'v', 1, 6, 'r', ':', 3, '-', 1, 'X')},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receiver := New(testutil.Fields("Test"), WithLogger(quietLogger()))
			before := capture(receiver)

			_, err := receiver.ApplyPatch(tt.wire)
			require.Error(t, err)
			assert.True(t, IsDifferenceInvalid(err), "got %v", err)
			assert.Equal(t, before, capture(receiver))
		})
	}
}

func TestDecodePatch_LiteralVector(t *testing.T) {
	wire := []byte{10, '1', '3', '6', '7', '6', '9', '6', '9', '7', '1', 'v', 0, 6, 'i', ':', 4, '-', 1, '2'}

	decoded, err := DecodePatch(wire)
	require.NoError(t, err)

	want := &Decoded{
		CRC: []byte("1367696971"),
		Entries: []ir.EntryDifference{{
			Index: 0,
			Diffs: []ir.Difference{{Action: ir.ActionInsert, Range: ir.NewRange(4, 1), Value: []byte("2")}},
		}},
	}
	if d := cmp.Diff(want, decoded); d != "" {
		t.Errorf("DecodePatch mismatch (-want +got):\n%s", d)
	}
}

func TestDecodePatch_EntriesAscending(t *testing.T) {
	sender := New(testutil.Fields("a", "b", "c"), WithLogger(quietLogger()))
	sender.ChangeIndexMapping(0, []byte("first"))

	wire := sender.Patch([]ir.IndexedField{testutil.Field(0, "A"), testutil.Field(2, "c"), testutil.Field(4, "e")})

	decoded, err := DecodePatch(wire)
	require.NoError(t, err)

	var got []uint8
	for _, e := range decoded.Entries {
		got = append(got, e.Index)
	}
	assert.Equal(t, []uint8{0, 1, 4}, got)

	first, ok := decoded.Entry(0)
	require.True(t, ok)
	assert.NotNil(t, first.MapNameChanged)
	assert.Len(t, first.Diffs, 1)

	removed, ok := decoded.Entry(1)
	require.True(t, ok)
	assert.True(t, removed.RemoveEntry)

	_, ok = decoded.Entry(2)
	assert.False(t, ok)
}

func TestValidatePatchDifferences_IgnoresDigest(t *testing.T) {
	wire := []byte{2, 'n', 'o', 'v', 3, 5, 'd', ':', 0, '-', 1}

	assert.NoError(t, ValidatePatchDifferences(wire))

	err := ValidatePatchDifferences(wire[:len(wire)-1])
	require.Error(t, err)
	assert.True(t, IsDifferenceInvalid(err))
}

func TestWithDigester_XXHash(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("Test"), WithDigester(ir.XXHash64{}))

	wire := sender.Patch(testutil.Fields("Test2"))
	want := ir.XXHash64{}.Digest([]byte("Test")).Value
	assert.Equal(t, want, wire[1:1+int(wire[0])])

	results, err := receiver.ApplyPatch(wire)
	require.NoError(t, err)
	assert.Equal(t, "Test2", string(results[0].Data))
	assert.Equal(t, ir.DigestXXHash, receiver.Snapshot().Digest)
}

func TestWithDigester_MismatchedDigestersRejected(t *testing.T) {
	sender := New(testutil.Fields("Test"), WithLogger(quietLogger()), WithDigester(ir.XXHash64{}))
	receiver := New(testutil.Fields("Test"), WithLogger(quietLogger()))

	_, err := receiver.ApplyPatch(sender.Patch(testutil.Fields("Test2")))
	assert.True(t, IsCRCError(err))
}

func TestSnapshot_RestoresEngine(t *testing.T) {
	sender, receiver := newPair(t, testutil.Fields("one", "two"))
	sender.ChangeIndexMapping(1, []byte("second"))
	_, err := receiver.ApplyPatch(sender.Patch(testutil.Fields("one", "too")))
	require.NoError(t, err)

	restored := FromSnapshot(receiver.Snapshot(), WithLogger(quietLogger()))
	require.NoError(t, restored.Verify())
	assert.Equal(t, capture(receiver), capture(restored))

	results, err := restored.ApplyPatch(sender.Patch(testutil.Fields("1", "2")))
	require.NoError(t, err)
	assert.Equal(t, map[uint8]string{0: "1", 1: "2"}, testutil.ResultMap(results))
}

func TestAccessors_ReturnCopies(t *testing.T) {
	e := New(testutil.Fields("abc"), WithLogger(quietLogger()))
	e.ChangeIndexMapping(0, []byte("k"))

	e.Fields()[0].Data[0] = 'X'
	data, _ := e.Field(0)
	data[1] = 'Y'
	e.CRC()[0] = 'Z'
	e.PendingIndexMapping()[0][0] = 'Q'

	assert.Equal(t, []byte("abc"), e.Fold())
	assert.NoError(t, e.Verify())
	assert.Equal(t, []byte("k"), e.PendingIndexMapping()[0])
}
