package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sdde/internal/ir"
)

// SnapshotRecord is a stored endpoint checkpoint.
//
// Seq is the sequence number of the last patch the snapshot already
// includes; patches with a greater seq are replayed on top of it.
type SnapshotRecord struct {
	Name          string
	Seq           int64
	Snapshot      ir.Snapshot
	EngineVersion string
	WireVersion   string
}

// SnapshotInfo summarizes one endpoint for listings.
type SnapshotInfo struct {
	Name    string `json:"name"`
	Seq     int64  `json:"seq"`
	Digest  string `json:"digest"`
	CRC     string `json:"crc"`
	Fields  int    `json:"fields"`
	Patches int    `json:"patches"`
}

// SaveSnapshot writes snap as the checkpoint of name at seq, replacing any
// previous checkpoint. The patch log is left untouched.
func (s *Store) SaveSnapshot(ctx context.Context, name string, seq int64, snap ir.Snapshot) error {
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (name, seq, crc, digest, engine_version, wire_version)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				seq = excluded.seq,
				crc = excluded.crc,
				digest = excluded.digest,
				engine_version = excluded.engine_version,
				wire_version = excluded.wire_version
		`, name, seq, blob(snap.CRC), snap.Digest, ir.EngineVersion, ir.WireVersion)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		for _, table := range []string{"snapshot_fields", "snapshot_names"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE snapshot = ?", name); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for _, f := range snap.Fields {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO snapshot_fields (snapshot, idx, data) VALUES (?, ?, ?)
				ON CONFLICT(snapshot, idx) DO UPDATE SET data = excluded.data
			`, name, int(f.Index), blob(f.Data))
			if err != nil {
				return fmt.Errorf("insert field %d: %w", f.Index, err)
			}
		}

		for idx, h := range snap.History {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO snapshot_names (snapshot, idx, current, last) VALUES (?, ?, ?, ?)
			`, name, int(idx), h.Current, h.Last)
			if err != nil {
				return fmt.Errorf("insert name %d: %w", idx, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	return nil
}

// LoadSnapshot reads the checkpoint of name.
// Returns an error wrapping ErrNotFound if name has never been saved.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (SnapshotRecord, error) {
	rec := SnapshotRecord{Name: name}

	err := s.db.QueryRowContext(ctx, `
		SELECT seq, crc, digest, engine_version, wire_version
		FROM snapshots
		WHERE name = ?
	`, name).Scan(&rec.Seq, &rec.Snapshot.CRC, &rec.Snapshot.Digest, &rec.EngineVersion, &rec.WireVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("load snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}

	fields, err := s.readFields(ctx, name)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	rec.Snapshot.Fields = fields

	history, err := s.readNames(ctx, name)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	rec.Snapshot.History = history

	return rec, nil
}

func (s *Store) readFields(ctx context.Context, name string) ([]ir.IndexedField, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, data FROM snapshot_fields
		WHERE snapshot = ?
		ORDER BY idx ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	fields := []ir.IndexedField{}
	for rows.Next() {
		var (
			idx  int
			data []byte
		)
		if err := rows.Scan(&idx, &data); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if data == nil {
			data = []byte{}
		}
		fields = append(fields, ir.IndexedField{Index: uint8(idx), Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	return fields, nil
}

func (s *Store) readNames(ctx context.Context, name string) (map[uint8]ir.HistoryValue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, current, last FROM snapshot_names
		WHERE snapshot = ?
		ORDER BY idx ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer rows.Close()

	history := map[uint8]ir.HistoryValue{}
	for rows.Next() {
		var (
			idx int
			h   ir.HistoryValue
		)
		if err := rows.Scan(&idx, &h.Current, &h.Last); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		history[uint8(idx)] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return history, nil
}

// ListSnapshots returns a summary of every stored endpoint ordered by name.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.seq, s.digest, s.crc,
			(SELECT COUNT(*) FROM snapshot_fields f WHERE f.snapshot = s.name),
			(SELECT COUNT(*) FROM patches p WHERE p.snapshot = s.name AND p.seq > s.seq)
		FROM snapshots s
		ORDER BY s.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	infos := []SnapshotInfo{}
	for rows.Next() {
		var (
			info SnapshotInfo
			crc  []byte
		)
		if err := rows.Scan(&info.Name, &info.Seq, &info.Digest, &crc, &info.Fields, &info.Patches); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		info.CRC = string(crc)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return infos, nil
}

// DeleteSnapshot removes name together with its fields, names and patch log.
// Deleting a missing name is not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete snapshot %q: %w", name, err)
	}
	return nil
}
