package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sdde/internal/engine"
	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/session"
	"github.com/roach88/sdde/internal/store"
	"github.com/roach88/sdde/internal/testutil"
)

// Endpoint names used by every scenario.
const (
	SenderName   = "alice"
	ReceiverName = "bob"
)

// Harness is the scenario execution engine.
// It runs scenarios with deterministic clocks and patch IDs.
type Harness struct {
	store    *store.Store
	sender   *session.Session
	receiver *session.Session
	digester ir.Digester
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and both endpoints
// 2. Commit the baseline names on both endpoints
// 3. Push and apply every step, checking expectations
// 4. Reopen the receiver from its log and compare
//
// A returned error means the scenario could not run at all; expectation
// failures are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	digester, err := ir.DigesterByName(scenario.Digest)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store:    st,
		digester: digester,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		trace, err := h.executeStep(ctx, i+1, step, result)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		result.Steps = append(result.Steps, trace)
		if !result.Pass {
			break
		}
	}

	for _, f := range h.receiver.Fields() {
		result.Fields[f.Index] = string(f.Data)
	}
	for idx, hv := range h.receiver.Snapshot().History {
		result.Names[idx] = string(hv.Current)
	}

	if err := h.checkReplay(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (h *Harness) options(name string) []session.Option {
	return []session.Option{
		session.WithLogger(h.logger),
		session.WithDigester(h.digester),
		session.WithClock(testutil.NewDeterministicClock()),
		session.WithIDGenerator(testutil.NewSequentialIDGenerator(name)),
	}
}

func (h *Harness) setup(ctx context.Context, scenario *Scenario) error {
	initial := toFields(scenario.Initial)

	var err error
	h.sender, err = session.Create(ctx, h.store, SenderName, initial, h.options(SenderName)...)
	if err != nil {
		return err
	}
	h.receiver, err = session.Create(ctx, h.store, ReceiverName, initial, h.options(ReceiverName)...)
	if err != nil {
		return err
	}

	if names := toNames(scenario.Names); names != nil {
		if err := h.sender.SetBaseline(ctx, names); err != nil {
			return err
		}
		if err := h.receiver.SetBaseline(ctx, names); err != nil {
			return err
		}
	}
	return nil
}

// executeStep pushes one step from the sender and delivers it to the receiver.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) (StepTrace, error) {
	rec, err := h.sender.Push(ctx, toFields(step.Fields), toNames(step.Rename))
	if err != nil {
		return StepTrace{}, err
	}

	trace := StepTrace{
		Step: n,
		Seq:  rec.Seq,
		ID:   rec.ID,
		CRC:  rec.CRC,
		Wire: rec.Payload,
	}

	if step.Corrupt != "" {
		before := h.receiver.Snapshot()
		_, _, err := h.receiver.Receive(ctx, corrupt(rec.Payload, step.Corrupt))
		trace.Rejected = errorCode(err)
		if trace.Rejected != step.Expect.Error {
			result.AddError(fmt.Sprintf("step %d: corrupted patch: expected %s, got %s", n, step.Expect.Error, trace.Rejected))
		}
		if err := assertUnchanged(before, h.receiver.Snapshot()); err != nil {
			result.AddError(fmt.Sprintf("step %d: corrupted patch: %v", n, err))
		}
	}

	results, _, err := h.receiver.Receive(ctx, rec.Payload)
	if err != nil {
		result.AddError(fmt.Sprintf("step %d: receive: %v", n, err))
		return trace, nil
	}
	trace.Results = results

	for _, msg := range assertEndpointsEqual(h.sender, h.receiver, results) {
		result.AddError(fmt.Sprintf("step %d: %s", n, msg))
	}
	if step.Expect != nil {
		for _, msg := range assertExpect(*step.Expect, trace) {
			result.AddError(fmt.Sprintf("step %d: %s", n, msg))
		}
	}
	return trace, nil
}

// checkReplay reopens the receiver from the store and compares it with the
// live endpoint.
func (h *Harness) checkReplay(ctx context.Context, result *Result) error {
	reopened, err := session.Open(ctx, h.store, ReceiverName, session.WithLogger(h.logger))
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return nil
	}
	if !bytes.Equal(reopened.CRC(), h.receiver.CRC()) {
		result.AddError(fmt.Sprintf("replay: digest %s, live endpoint %s", reopened.CRC(), h.receiver.CRC()))
	}
	if !bytes.Equal(ir.Fold(reopened.Fields()), ir.Fold(h.receiver.Fields())) {
		result.AddError("replay: collection differs from live endpoint")
	}
	return nil
}

// corrupt returns a damaged copy of wire.
func corrupt(wire []byte, mode string) []byte {
	bad := bytes.Clone(wire)
	switch mode {
	case CorruptCRC:
		if len(bad) > 1 {
			bad[1] ^= 0x01
		}
	case CorruptTruncate:
		if len(bad) > 0 {
			bad = bad[:len(bad)-1]
		}
	}
	return bad
}

// errorCode names the outcome of delivering a patch.
func errorCode(err error) string {
	if err == nil {
		return "none"
	}
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return "ERROR"
}
