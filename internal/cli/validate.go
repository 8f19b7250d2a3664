package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sdde/internal/engine"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	State  string // optional field set to check the digest against
	Digest string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	CRC      string `json:"crc"`
	Entries  int    `json:"entries"`
	StateCRC string `json:"state_crc,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <patch>",
		Short: "Check that a patch is well formed",
		Long: `Check the framing of a patch without applying it: the digest header,
index tokens, record lengths and every difference record.

With --state the digest the patch was produced against is also compared
with the digest of that field set.

Exit codes:
  0 - Patch is valid
  1 - Patch is malformed or does not match --state
  2 - Command error (missing file, unreadable document)

Examples:
  sdde validate v2.patch
  sdde validate v2.hex --state v1.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.State, "state", "", "field set to check the patch digest against")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "digest algorithm (crc32c|xxhash), overrides the document")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	wire, err := readPatchFile(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	if err := engine.ValidatePatchDifferences(wire); err != nil {
		return failPatch(formatter, err)
	}
	decoded, err := engine.DecodePatch(wire)
	if err != nil {
		return failPatch(formatter, err)
	}

	result := ValidationResult{
		Valid:   true,
		CRC:     string(decoded.CRC),
		Entries: len(decoded.Entries),
	}

	if opts.State != "" {
		state, err := LoadFieldSet(opts.State)
		if err != nil {
			return failLoad(formatter, err)
		}
		e, err := engineFromFieldSet(state, opts.Digest, formatter.Logger())
		if err != nil {
			return failLoad(formatter, err)
		}
		result.StateCRC = string(e.CRC())
		if !bytes.Equal(e.CRC(), decoded.CRC) {
			return failPatch(formatter, engine.NewCRCError(decoded.CRC, e.CRC()))
		}
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Patch valid: %d entr(ies), crc %s\n", result.Entries, result.CRC)
		if result.StateCRC != "" {
			fmt.Fprintln(w, "  Digest matches state")
		}
	})
}
