package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Direction records whether an endpoint produced or received a patch.
type Direction string

const (
	DirectionPush    Direction = "push"
	DirectionReceive Direction = "receive"
)

// PatchRecord is one entry of an endpoint's patch log.
//
// CRC is the digest embedded in the patch, i.e. the digest of the state the
// patch applies to. Payload holds the complete wire bytes.
type PatchRecord struct {
	ID        string    `json:"id"`
	Snapshot  string    `json:"snapshot"`
	Seq       int64     `json:"seq"`
	Direction Direction `json:"direction"`
	CRC       []byte    `json:"crc"`
	Payload   []byte    `json:"payload"`
}

// AppendPatch adds rec to the log of rec.Snapshot.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same patch
// ID twice is silently ignored. A different patch at an occupied seq
// violates UNIQUE(snapshot, seq) and returns an error.
//
// Note: The snapshot referenced by rec.Snapshot must exist (foreign key constraint).
func (s *Store) AppendPatch(ctx context.Context, rec PatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patches (id, snapshot, seq, direction, crc, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Snapshot,
		rec.Seq,
		string(rec.Direction),
		blob(rec.CRC),
		blob(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("append patch: %w", err)
	}
	return nil
}

// ReadPatches returns the patches of name with seq greater than afterSeq.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ReadPatches(ctx context.Context, name string, afterSeq int64) ([]PatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, snapshot, seq, direction, crc, payload
		FROM patches
		WHERE snapshot = ? AND seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, name, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query patches: %w", err)
	}
	defer rows.Close()

	patches := []PatchRecord{}
	for rows.Next() {
		rec, err := scanPatch(rows)
		if err != nil {
			return nil, err
		}
		patches = append(patches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patches: %w", err)
	}
	return patches, nil
}

// LastSeq returns the highest seq known for name: the newest logged patch,
// or the snapshot seq when the log holds nothing newer.
func (s *Store) LastSeq(ctx context.Context, name string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM snapshots WHERE name = ?
			UNION ALL
			SELECT seq FROM patches WHERE snapshot = ?
		)
	`, name, name).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq %q: %w", name, err)
	}
	return seq.Int64, nil
}

// PrunePatches deletes the patches of name with seq at or below throughSeq.
// Called after a checkpoint has absorbed them.
func (s *Store) PrunePatches(ctx context.Context, name string, throughSeq int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM patches WHERE snapshot = ? AND seq <= ?
	`, name, throughSeq)
	if err != nil {
		return 0, fmt.Errorf("prune patches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune patches: rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatch(row rowScanner) (PatchRecord, error) {
	var (
		rec       PatchRecord
		direction string
	)
	if err := row.Scan(&rec.ID, &rec.Snapshot, &rec.Seq, &direction, &rec.CRC, &rec.Payload); err != nil {
		return PatchRecord{}, fmt.Errorf("scan patch: %w", err)
	}
	rec.Direction = Direction(direction)
	return rec, nil
}
