package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/sdde/internal/engine"
	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/store"
)

// ReplayResult is an engine rebuilt from a store.
type ReplayResult struct {
	Engine   *engine.Engine
	LastSeq  int64
	Replayed int
}

// Replay rebuilds the engine of name from its checkpoint and patch log.
//
// Every logged patch, pushed or received, is applied in seq order; a push
// moves the sender to exactly the state its receiver reaches. The stored
// checkpoint digest is verified first and each patch's digest is checked
// against the state it lands on, so the returned engine is the end of an
// unbroken digest chain.
func Replay(ctx context.Context, st *store.Store, name string, logger *slog.Logger) (*ReplayResult, error) {
	rec, err := st.LoadSnapshot(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("replay %q: %w", name, err)
	}

	digester, err := ir.DigesterByName(rec.Snapshot.Digest)
	if err != nil {
		return nil, fmt.Errorf("replay %q: %w", name, err)
	}

	e := engine.FromSnapshot(rec.Snapshot, engine.WithLogger(logger), engine.WithDigester(digester))
	if err := e.Verify(); err != nil {
		return nil, fmt.Errorf("replay %q: checkpoint: %w", name, err)
	}

	patches, err := st.ReadPatches(ctx, name, rec.Seq)
	if err != nil {
		return nil, fmt.Errorf("replay %q: %w", name, err)
	}

	result := &ReplayResult{Engine: e, LastSeq: rec.Seq}
	for _, p := range patches {
		if _, err := e.ApplyPatch(p.Payload); err != nil {
			return nil, fmt.Errorf("replay %q: patch %s (seq %d): %w", name, p.ID, p.Seq, err)
		}
		result.LastSeq = p.Seq
		result.Replayed++
	}
	return result, nil
}
