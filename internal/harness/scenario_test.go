package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: example
description: one step
digest: xxhash
initial:
  - {index: 3, value: "x"}
names:
  3: key
steps:
  - fields: []
    rename: {3: other}
    expect:
      fields: {}
`))
	require.NoError(t, err)

	assert.Equal(t, "example", s.Name)
	assert.Equal(t, "xxhash", s.Digest)
	assert.Equal(t, []FieldSpec{{Index: 3, Value: "x"}}, s.Initial)
	assert.Equal(t, map[uint8]string{3: "key"}, s.Names)
	require.Len(t, s.Steps, 1)
	assert.NotNil(t, s.Steps[0].Fields)
	assert.Empty(t, s.Steps[0].Fields)
	assert.Equal(t, map[uint8]string{3: "other"}, s.Steps[0].Rename)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown field",
			doc:     "name: a\ndescription: b\nstep: []\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing name",
			doc:     "description: b\nsteps: [{fields: []}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			doc:     "name: a\nsteps: [{fields: []}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			doc:     "name: a\ndescription: b\n",
			wantErr: "steps list is required",
		},
		{
			name:    "step without fields",
			doc:     "name: a\ndescription: b\nsteps: [{rename: {0: x}}]\n",
			wantErr: "steps[0]: fields is required",
		},
		{
			name:    "duplicate index",
			doc:     "name: a\ndescription: b\ninitial: [{index: 1, value: x}, {index: 1, value: y}]\nsteps: [{fields: []}]\n",
			wantErr: "duplicate index 1",
		},
		{
			name:    "unknown digest",
			doc:     "name: a\ndescription: b\ndigest: md5\nsteps: [{fields: []}]\n",
			wantErr: "unknown digest",
		},
		{
			name:    "corrupt without expected error",
			doc:     "name: a\ndescription: b\nsteps: [{fields: [], corrupt: crc}]\n",
			wantErr: "expect.error is required",
		},
		{
			name:    "unknown corrupt mode",
			doc:     "name: a\ndescription: b\nsteps: [{fields: [], corrupt: flip, expect: {error: CRC_MISMATCH}}]\n",
			wantErr: "unknown corrupt mode",
		},
		{
			name:    "unknown error code",
			doc:     "name: a\ndescription: b\nsteps: [{fields: [], corrupt: crc, expect: {error: BOOM}}]\n",
			wantErr: "unknown error code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_SortedByFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b", "a"} {
		doc := "name: " + name + "\ndescription: d\nsteps: [{fields: []}]\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(doc), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, "b", scenarios[1].Name)
}

func TestLoadScenarios_ReportsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: x\n"), 0644))

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}
