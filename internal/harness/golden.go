package harness

import (
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sdde/internal/ir"
)

// TraceSnapshot is the golden-file view of a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Digest       string
	Steps        []StepTrace
}

// NewTraceSnapshot captures the golden-file view of result.
func NewTraceSnapshot(scenario *Scenario, result *Result) *TraceSnapshot {
	digest := scenario.Digest
	if digest == "" {
		digest = ir.DigestCRC32C
	}
	return &TraceSnapshot{
		ScenarioName: scenario.Name,
		Digest:       digest,
		Steps:        result.Steps,
	}
}

// Render produces the line-oriented text stored in golden files:
//
//	scenario <name>
//	digest <digester>
//	step <n> seq <seq> id <patch id> crc <embedded digest>
//	  wire <patch as hex>
//	  rejected <code>                      (corrupted steps only)
//	  field <index> <quoted value> [name <quoted new name>]
func (s *TraceSnapshot) Render() []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario %s\n", s.ScenarioName)
	fmt.Fprintf(&buf, "digest %s\n", s.Digest)
	for _, st := range s.Steps {
		fmt.Fprintf(&buf, "step %d seq %d id %s crc %s\n", st.Step, st.Seq, st.ID, st.CRC)
		fmt.Fprintf(&buf, "  wire %s\n", hex.EncodeToString(st.Wire))
		if st.Rejected != "" {
			fmt.Fprintf(&buf, "  rejected %s\n", st.Rejected)
		}
		for _, r := range st.Results {
			fmt.Fprintf(&buf, "  field %d %q", r.Index, r.Data)
			if r.MapNameChanged != nil {
				fmt.Fprintf(&buf, " name %q", r.MapNameChanged)
			}
			buf.WriteByte('\n')
		}
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario, result)
	return result, nil
}

// AssertGolden compares an existing result's trace against the golden file
// of scenario without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, NewTraceSnapshot(scenario, result).Render())
}
