package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_Render(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "demo",
		Digest:       "crc32c",
		Steps: []StepTrace{{
			Step:     1,
			Seq:      4,
			ID:       "alice-0004",
			CRC:      []byte("99"),
			Wire:     []byte{2, '9', '9'},
			Rejected: "CRC_MISMATCH",
		}},
	}

	want := "scenario demo\n" +
		"digest crc32c\n" +
		"step 1 seq 4 id alice-0004 crc 99\n" +
		"  wire 023939\n" +
		"  rejected CRC_MISMATCH\n"
	assert.Equal(t, want, string(snap.Render()))
}
