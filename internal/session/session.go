package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/sdde/internal/engine"
	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/store"
)

// ErrExists is returned by Create when the endpoint name is already taken.
var ErrExists = errors.New("endpoint already exists")

// Session is one named endpoint backed by a store.
type Session struct {
	mu     sync.Mutex
	name   string
	store  *store.Store
	engine *engine.Engine

	digester ir.Digester
	clock    Clock
	ids      IDGenerator
	logger   *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock that numbers logged patches.
// Default: a LogicalClock positioned after the last logged patch.
func WithClock(c Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithIDGenerator sets the patch ID generator.
// Default: UUIDv7Generator
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithLogger sets the logger for the session and its engine.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDigester selects the digest for a new endpoint. Reopened endpoints
// always use the digest recorded in their snapshot.
// Default: ir.CRC32C
func WithDigester(d ir.Digester) Option {
	return func(s *Session) {
		s.digester = d
	}
}

func newSession(st *store.Store, name string, opts []Option) *Session {
	s := &Session{
		name:     name,
		store:    st,
		digester: ir.CRC32C{},
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) engineOptions() []engine.EngineOption {
	return []engine.EngineOption{
		engine.WithLogger(s.logger),
		engine.WithDigester(s.digester),
	}
}

// Create starts a new endpoint holding fields and writes its first
// checkpoint at seq 0.
func Create(ctx context.Context, st *store.Store, name string, fields []ir.IndexedField, opts ...Option) (*Session, error) {
	_, err := st.LoadSnapshot(ctx, name)
	if err == nil {
		return nil, fmt.Errorf("create %q: %w", name, ErrExists)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}

	s := newSession(st, name, opts)
	s.engine = engine.New(fields, s.engineOptions()...)
	if s.clock == nil {
		s.clock = NewLogicalClock()
	}

	if err := st.SaveSnapshot(ctx, name, 0, s.engine.Snapshot()); err != nil {
		return nil, fmt.Errorf("create %q: %w", name, err)
	}

	s.logger.Info("endpoint created",
		"name", name,
		"fields", s.engine.Len(),
		"digest", s.digester.Name(),
	)
	return s, nil
}

// Open loads an existing endpoint: its checkpoint plus every patch logged
// after it.
func Open(ctx context.Context, st *store.Store, name string, opts ...Option) (*Session, error) {
	s := newSession(st, name, opts)

	result, err := Replay(ctx, st, name, s.logger)
	if err != nil {
		return nil, err
	}
	s.engine = result.Engine
	s.digester = result.Engine.Digester()
	if s.clock == nil {
		s.clock = NewLogicalClockAt(result.LastSeq)
	}

	s.logger.Info("endpoint opened",
		"name", name,
		"seq", result.LastSeq,
		"replayed", result.Replayed,
	)
	return s, nil
}

// Name returns the endpoint name.
func (s *Session) Name() string {
	return s.name
}

// Fields returns a copy of the current collection.
func (s *Session) Fields() []ir.IndexedField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Fields()
}

// CRC returns the current collection digest.
func (s *Session) CRC() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CRC()
}

// Snapshot returns the current engine state.
func (s *Session) Snapshot() ir.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// Seq returns the sequence number of the last logged patch.
func (s *Session) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Current()
}

// SetBaseline commits names straight into the rename history without a
// patch and checkpoints the result. Both endpoints of a sync call it with
// the same names to agree on a starting point.
func (s *Session) SetBaseline(ctx context.Context, names map[uint8][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.engine.Snapshot()
	for _, idx := range slices.Sorted(maps.Keys(names)) {
		s.engine.ChangeIndexMapping(idx, names[idx])
	}
	s.engine.Apply()

	if err := s.checkpoint(ctx); err != nil {
		s.restore(before)
		return fmt.Errorf("set baseline: %w", err)
	}
	return nil
}

// Push moves the endpoint to fields, applying renames, and logs the
// resulting patch. The returned record carries the wire bytes to ship.
// Renames equal to the current name are ignored.
//
// When the log write fails the endpoint is restored to its prior state.
func (s *Session) Push(ctx context.Context, fields []ir.IndexedField, renames map[uint8][]byte) (store.PatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.engine.Snapshot()
	for _, idx := range slices.Sorted(maps.Keys(renames)) {
		// Unchanged names put nothing on the wire and are not staged.
		if current, _ := s.engine.Name(idx); bytes.Equal(current, renames[idx]) {
			continue
		}
		s.engine.ChangeIndexMapping(idx, renames[idx])
	}
	wire := s.engine.Patch(fields)

	rec, err := s.log(ctx, store.DirectionPush, wire)
	if err != nil {
		s.restore(before)
		return store.PatchRecord{}, fmt.Errorf("push: %w", err)
	}

	s.logger.Debug("patch pushed",
		"name", s.name,
		"id", rec.ID,
		"seq", rec.Seq,
		"bytes", len(wire),
	)
	return rec, nil
}

// Receive validates and applies a patch from a peer and logs it.
//
// A malformed patch or a digest mismatch returns the engine error (see
// engine.IsDifferenceInvalid and engine.IsCRCError) and changes nothing.
func (s *Session) Receive(ctx context.Context, wire []byte) ([]ir.FieldResult, store.PatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := engine.ValidatePatchDifferences(wire); err != nil {
		s.logger.Warn("patch rejected", "name", s.name, "error", err)
		return nil, store.PatchRecord{}, fmt.Errorf("receive: %w", err)
	}

	before := s.engine.Snapshot()
	results, err := s.engine.ApplyPatch(wire)
	if err != nil {
		s.logger.Warn("patch rejected", "name", s.name, "error", err)
		return nil, store.PatchRecord{}, fmt.Errorf("receive: %w", err)
	}

	rec, err := s.log(ctx, store.DirectionReceive, wire)
	if err != nil {
		s.restore(before)
		return nil, store.PatchRecord{}, fmt.Errorf("receive: %w", err)
	}

	s.logger.Debug("patch received",
		"name", s.name,
		"id", rec.ID,
		"seq", rec.Seq,
		"fields", len(results),
	)
	return results, rec, nil
}

// Checkpoint writes the current state as the endpoint snapshot and drops
// the logged patches it absorbs.
func (s *Session) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkpoint(ctx); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

func (s *Session) checkpoint(ctx context.Context) error {
	seq := s.clock.Current()
	if err := s.store.SaveSnapshot(ctx, s.name, seq, s.engine.Snapshot()); err != nil {
		return err
	}
	pruned, err := s.store.PrunePatches(ctx, s.name, seq)
	if err != nil {
		return err
	}
	s.logger.Info("checkpoint written", "name", s.name, "seq", seq, "pruned", pruned)
	return nil
}

func (s *Session) log(ctx context.Context, dir store.Direction, wire []byte) (store.PatchRecord, error) {
	decoded, err := engine.DecodePatch(wire)
	if err != nil {
		return store.PatchRecord{}, err
	}
	rec := store.PatchRecord{
		ID:        s.ids.Generate(),
		Snapshot:  s.name,
		Seq:       s.clock.Current() + 1,
		Direction: dir,
		CRC:       decoded.CRC,
		Payload:   wire,
	}
	if err := s.store.AppendPatch(ctx, rec); err != nil {
		return store.PatchRecord{}, err
	}
	s.clock.Next()
	return rec, nil
}

func (s *Session) restore(snap ir.Snapshot) {
	s.engine = engine.FromSnapshot(snap, s.engineOptions()...)
}
