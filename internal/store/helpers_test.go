package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSnapshot builds a snapshot of values with a CRC32C digest.
func createTestSnapshot(values ...string) ir.Snapshot {
	fields := testutil.Fields(values...)
	return ir.Snapshot{
		Fields:  fields,
		CRC:     ir.CRC32C{}.Digest(ir.Fold(fields)).Value,
		Digest:  ir.DigestCRC32C,
		History: map[uint8]ir.HistoryValue{},
	}
}

// createTestPatch builds a patch record with a recognizable payload.
func createTestPatch(id, snapshot string, seq int64) PatchRecord {
	return PatchRecord{
		ID:        id,
		Snapshot:  snapshot,
		Seq:       seq,
		Direction: DirectionPush,
		CRC:       []byte("1367696971"),
		Payload:   []byte("payload-" + id),
	}
}
