package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/session"
)

// AssertionError describes one failed expectation.
type AssertionError struct {
	Kind     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, actual %s", e.Kind, e.Expected, e.Actual)
}

// assertEndpointsEqual checks that sender and receiver agree after a step and
// that the returned results describe the receiver's collection.
func assertEndpointsEqual(sender, receiver *session.Session, results []ir.FieldResult) []string {
	var errs []string

	if sent, got := sender.CRC(), receiver.CRC(); !bytes.Equal(sent, got) {
		errs = append(errs, (&AssertionError{Kind: "digest", Expected: string(sent), Actual: string(got)}).Error())
	}

	senderFold := ir.Fold(sender.Fields())
	if got := ir.FoldResults(results); !bytes.Equal(senderFold, got) {
		errs = append(errs, (&AssertionError{Kind: "fold", Expected: fmt.Sprintf("%q", senderFold), Actual: fmt.Sprintf("%q", got)}).Error())
	}
	return errs
}

// assertExpect evaluates an expect clause against a step trace.
func assertExpect(expect ExpectClause, trace StepTrace) []string {
	var errs []string

	if expect.Wire != "" {
		if got := hex.EncodeToString(trace.Wire); got != strings.ToLower(expect.Wire) {
			errs = append(errs, (&AssertionError{Kind: "wire", Expected: expect.Wire, Actual: got}).Error())
		}
	}

	if expect.Fields != nil {
		got := make(map[uint8]string, len(trace.Results))
		for _, r := range trace.Results {
			got[r.Index] = string(r.Data)
		}
		if !maps.Equal(expect.Fields, got) {
			errs = append(errs, (&AssertionError{Kind: "fields", Expected: formatMap(expect.Fields), Actual: formatMap(got)}).Error())
		}
	}

	if expect.Renamed != nil {
		got := map[uint8]string{}
		for _, r := range trace.Results {
			if r.MapNameChanged != nil {
				got[r.Index] = string(r.MapNameChanged)
			}
		}
		want := make(map[uint8]string, len(expect.Renamed))
		for idx, name := range expect.Renamed {
			want[idx] = string(ir.NormalizeKey(name))
		}
		if !maps.Equal(want, got) {
			errs = append(errs, (&AssertionError{Kind: "renamed", Expected: formatMap(want), Actual: formatMap(got)}).Error())
		}
	}

	return errs
}

// assertUnchanged checks that a rejected patch left the endpoint untouched.
func assertUnchanged(before, after ir.Snapshot) error {
	if !bytes.Equal(before.CRC, after.CRC) {
		return &AssertionError{Kind: "unchanged digest", Expected: string(before.CRC), Actual: string(after.CRC)}
	}
	if !bytes.Equal(ir.Fold(before.Fields), ir.Fold(after.Fields)) || len(before.Fields) != len(after.Fields) {
		return &AssertionError{Kind: "unchanged fields", Expected: fmt.Sprintf("%d fields", len(before.Fields)), Actual: fmt.Sprintf("%d fields", len(after.Fields))}
	}
	return nil
}

// formatMap renders index -> value pairs in index order.
func formatMap(m map[uint8]string) string {
	parts := make([]string, 0, len(m))
	for _, idx := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, fmt.Sprintf("%d=%q", idx, m[idx]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
