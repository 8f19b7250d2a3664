package cli

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sdde/internal/ir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File read error
	ErrCodeEmpty       = "E003" // Empty document
	ErrCodeParseFailed = "E004" // YAML/JSON/CUE syntax error
	ErrCodeNotFound    = "E005" // Path or endpoint not found
	ErrCodeSchema      = "E006" // Document does not satisfy the field-set schema
	ErrCodeWriteFailed = "E007" // File write error

	// Field-set validation errors
	ErrCodeIndexRange     = "E101" // Index outside 0..255
	ErrCodeDuplicateIndex = "E102" // Same index listed twice
	ErrCodeValueConflict  = "E103" // Both value and hex given
	ErrCodeInvalidHex     = "E104" // hex is not valid hexadecimal

	// Patch errors
	ErrCodeInvalidPatch = "E201" // DIFFERENCE_INVALID
	ErrCodeCRCMismatch  = "E202" // CRC_MISMATCH

	// Store and session errors
	ErrCodeStore  = "E301" // Database error
	ErrCodeExists = "E302" // Endpoint already exists
	ErrCodeReplay = "E303" // Broken digest chain

	// Harness errors
	ErrCodeScenarios = "E401" // One or more scenarios failed
)

// LoadError represents an error that occurred while loading a field-set document.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldDoc is one field of a field-set document.
//
// Value holds the field bytes as text. Binary content uses Hex instead;
// setting both is an error and setting neither means an empty field.
// Key is the optional index name, normalized to NFC on load.
type FieldDoc struct {
	Index int    `json:"index" yaml:"index"`
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	Hex   string `json:"hex,omitempty" yaml:"hex,omitempty"`
}

// FieldSet is a document describing a complete field collection:
//
//	digest: crc32c
//	fields:
//	  - {index: 0, key: title, value: "Test1"}
//	  - {index: 1, hex: "00ff"}
type FieldSet struct {
	Digest string     `json:"digest,omitempty" yaml:"digest,omitempty"`
	Fields []FieldDoc `json:"fields" yaml:"fields"`
}

// fieldSetSchema is unified with CUE and JSON documents before decoding.
const fieldSetSchema = `
#Field: {
	index:  int & >=0 & <=255
	key?:   string
	value?: string
	hex?:   =~"^([0-9a-fA-F]{2})*$"
}

#FieldSet: {
	digest?: "crc32c" | "xxhash"
	fields: [...#Field]
}
`

// LoadFieldSet reads a field-set document. The format follows the file
// extension: .yaml and .yml are decoded with yaml.v3, .cue and .json are
// compiled by CUE and checked against the field-set schema.
func LoadFieldSet(path string) (*FieldSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("field set not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: fmt.Sprintf("empty field set: %s", path)}
	}

	var fs *FieldSet
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		fs, err = parseYAMLFieldSet(data)
	default:
		fs, err = parseCUEFieldSet(data, path)
	}
	if err != nil {
		return nil, err
	}

	if err := fs.validate(); err != nil {
		return nil, err
	}
	return fs, nil
}

func parseYAMLFieldSet(data []byte) (*FieldSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fs FieldSet
	if err := dec.Decode(&fs); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing YAML: %v", err)}
	}
	return &fs, nil
}

func parseCUEFieldSet(data []byte, path string) (*FieldSet, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(fieldSetSchema, cue.Filename("fieldset.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("compiling schema: %v", err)}
	}

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParseFailed, "parsing document", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#FieldSet")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, "invalid field set", err)
	}

	var fs FieldSet
	if err := unified.Decode(&fs); err != nil {
		return nil, cueLoadError(ErrCodeSchema, "decoding field set", err)
	}
	return &fs, nil
}

// cueLoadError converts a CUE error to a LoadError with position info.
func cueLoadError(code, context string, err error) *LoadError {
	loadErr := &LoadError{Code: code, Message: fmt.Sprintf("%s: %v", context, err)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		loadErr.Pos = positions[0]
	}
	return loadErr
}

func (fs *FieldSet) validate() error {
	if _, err := ir.DigesterByName(fs.Digest); err != nil {
		return &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}

	seen := make(map[int]bool, len(fs.Fields))
	for i := range fs.Fields {
		f := &fs.Fields[i]
		if f.Index < 0 || f.Index >= ir.MaxFields {
			return &LoadError{Code: ErrCodeIndexRange, Message: fmt.Sprintf("fields[%d]: index %d outside 0..%d", i, f.Index, ir.MaxFields-1)}
		}
		if seen[f.Index] {
			return &LoadError{Code: ErrCodeDuplicateIndex, Message: fmt.Sprintf("fields[%d]: duplicate index %d", i, f.Index)}
		}
		seen[f.Index] = true

		if f.Value != "" && f.Hex != "" {
			return &LoadError{Code: ErrCodeValueConflict, Message: fmt.Sprintf("fields[%d]: value and hex are mutually exclusive", i)}
		}
		if _, err := hex.DecodeString(f.Hex); err != nil {
			return &LoadError{Code: ErrCodeInvalidHex, Message: fmt.Sprintf("fields[%d]: %v", i, err)}
		}
		if f.Key != "" {
			f.Key = string(ir.NormalizeKey(f.Key))
		}
	}
	return nil
}

// bytes returns the field content. Hex was checked by validate.
func (d FieldDoc) bytes() []byte {
	if d.Hex != "" {
		b, _ := hex.DecodeString(d.Hex)
		return b
	}
	return []byte(d.Value)
}

// IndexedFields converts the document to engine fields.
func (fs *FieldSet) IndexedFields() []ir.IndexedField {
	fields := make([]ir.IndexedField, 0, len(fs.Fields))
	for _, f := range fs.Fields {
		fields = append(fields, ir.NewIndexedField(uint8(f.Index), f.bytes()))
	}
	return fields
}

// Names returns the keyed indexes of the document.
func (fs *FieldSet) Names() map[uint8][]byte {
	names := make(map[uint8][]byte)
	for _, f := range fs.Fields {
		if f.Key != "" {
			names[uint8(f.Index)] = []byte(f.Key)
		}
	}
	return names
}

// FieldSetFrom builds a document from engine state. Valid UTF-8 content is
// written as value, anything else as hex.
func FieldSetFrom(digest string, fields []ir.IndexedField, names map[uint8]ir.HistoryValue) *FieldSet {
	fs := &FieldSet{Digest: digest, Fields: make([]FieldDoc, 0, len(fields))}
	for _, f := range ir.SortFields(fields) {
		doc := FieldDoc{Index: int(f.Index), Key: string(names[f.Index].Current)}
		if utf8.Valid(f.Data) {
			doc.Value = string(f.Data)
		} else {
			doc.Hex = hex.EncodeToString(f.Data)
		}
		fs.Fields = append(fs.Fields, doc)
	}
	return fs
}

// WriteFieldSet encodes fs as YAML.
func WriteFieldSet(w io.Writer, fs *FieldSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fs); err != nil {
		return err
	}
	return enc.Close()
}

// SaveFieldSet writes fs as YAML to path.
func SaveFieldSet(path string, fs *FieldSet) error {
	var buf bytes.Buffer
	if err := WriteFieldSet(&buf, fs); err != nil {
		return &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("encoding field set: %v", err)}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing %s: %v", path, err)}
	}
	return nil
}
