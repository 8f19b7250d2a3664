package harness

import (
	"github.com/roach88/sdde/internal/ir"
)

// StepTrace records what happened in one step.
type StepTrace struct {
	Step int   `json:"step"`
	Seq  int64 `json:"seq"`

	// ID is the sender's patch log ID.
	ID string `json:"id"`

	// CRC is the digest embedded in the patch.
	CRC []byte `json:"crc"`

	// Wire is the complete patch.
	Wire []byte `json:"wire"`

	// Rejected is the error code the corrupted copy was rejected with.
	Rejected string `json:"rejected,omitempty"`

	// Results are the fields returned by the receiver.
	Results []ir.FieldResult `json:"results"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success.
	// True if every step applied and every expect clause matched.
	Pass bool `json:"pass"`

	// Steps contains one trace per executed step.
	Steps []StepTrace `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Fields is the final receiver collection.
	Fields map[uint8]string `json:"fields"`

	// Names is the final receiver naming, index -> current name.
	Names map[uint8]string `json:"names,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepTrace{},
		Errors: []string{},
		Fields: map[uint8]string{},
		Names:  map[uint8]string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
