package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sdde/internal/engine"
	"github.com/roach88/sdde/internal/ir"
)

// Scenario defines a sync scenario between a sender and a receiver.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Digest selects the digester both endpoints use ("crc32c" or "xxhash").
	// Empty selects crc32c.
	Digest string `yaml:"digest,omitempty"`

	// Initial is the collection both endpoints start from.
	Initial []FieldSpec `yaml:"initial"`

	// Names is the baseline field naming committed on both endpoints before
	// the first step.
	Names map[uint8]string `yaml:"names,omitempty"`

	// Steps are pushed by the sender and applied by the receiver in order.
	Steps []Step `yaml:"steps"`
}

// FieldSpec is one field in a scenario document.
type FieldSpec struct {
	Index uint8  `yaml:"index"`
	Value string `yaml:"value"`
}

// Step is one push from the sender.
type Step struct {
	// Fields is the complete new collection. Use an empty list to remove
	// every field.
	Fields []FieldSpec `yaml:"fields"`

	// Rename stages new names for field indexes before the push.
	Rename map[uint8]string `yaml:"rename,omitempty"`

	// Corrupt delivers a damaged copy of the patch before the intact one:
	// "crc" alters the embedded digest, "truncate" drops the last byte.
	Corrupt string `yaml:"corrupt,omitempty"`

	// Expect specifies the expected outcome. If nil only endpoint
	// equivalence is checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Fields is the expected receiver collection, index -> value.
	Fields map[uint8]string `yaml:"fields,omitempty"`

	// Renamed lists the indexes the patch must rename, index -> new name.
	// Indexes not listed must not be renamed.
	Renamed map[uint8]string `yaml:"renamed,omitempty"`

	// Wire is the expected patch as lowercase hex.
	Wire string `yaml:"wire,omitempty"`

	// Error is the error code the corrupted copy must be rejected with.
	Error string `yaml:"error,omitempty"`
}

// Corruption modes.
const (
	CorruptCRC      = "crc"
	CorruptTruncate = "truncate"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := ir.DigesterByName(s.Digest); err != nil {
		return err
	}

	if err := validateFields("initial", s.Initial); err != nil {
		return err
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if step.Fields == nil {
			return fmt.Errorf("%s: fields is required (use empty list to remove all fields)", where)
		}
		if err := validateFields(where+".fields", step.Fields); err != nil {
			return err
		}

		switch step.Corrupt {
		case "":
		case CorruptCRC, CorruptTruncate:
			if step.Expect == nil || step.Expect.Error == "" {
				return fmt.Errorf("%s: expect.error is required with corrupt", where)
			}
		default:
			return fmt.Errorf("%s: unknown corrupt mode %q", where, step.Corrupt)
		}

		if step.Expect != nil && step.Expect.Error != "" {
			switch engine.ErrorCode(step.Expect.Error) {
			case engine.ErrCodeCRCMismatch, engine.ErrCodeDifferenceInvalid:
			default:
				return fmt.Errorf("%s.expect: unknown error code %q", where, step.Expect.Error)
			}
		}
	}

	return nil
}

func validateFields(where string, fields []FieldSpec) error {
	seen := make(map[uint8]bool, len(fields))
	for i, f := range fields {
		if seen[f.Index] {
			return fmt.Errorf("%s[%d]: duplicate index %d", where, i, f.Index)
		}
		seen[f.Index] = true
	}
	return nil
}

// toFields converts scenario fields to engine fields.
func toFields(specs []FieldSpec) []ir.IndexedField {
	fields := make([]ir.IndexedField, len(specs))
	for i, f := range specs {
		fields[i] = ir.IndexedField{Index: f.Index, Data: []byte(f.Value)}
	}
	return fields
}

// toNames converts scenario names to NFC-normalized keys.
func toNames(names map[uint8]string) map[uint8][]byte {
	if len(names) == 0 {
		return nil
	}
	out := make(map[uint8][]byte, len(names))
	for idx, name := range names {
		out[idx] = ir.NormalizeKey(name)
	}
	return out
}
