package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sdde/internal/ir"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	State  string
	Patch  string
	Out    string
	Digest string
}

// ApplyResult holds the apply output.
type ApplyResult struct {
	CRC     string     `json:"crc"`
	Fields  []FieldDoc `json:"fields"`
	Renamed []int      `json:"renamed,omitempty"`
	Out     string     `json:"out,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a patch to a field set",
		Long: `Apply a patch to the --state field set and print the resulting field set.

The patch is rejected when the digest of --state is not the digest the
patch was produced against, or when its bytes are malformed.

Exit codes:
  0 - Patch applied
  1 - Patch rejected (CRC mismatch or malformed patch)
  2 - Command error (missing file, unreadable document)

Examples:
  sdde apply --state v1.yaml --patch v2.patch
  sdde apply --state v1.yaml --patch v2.hex --out v2.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.State, "state", "", "field set the patch applies to (required)")
	cmd.Flags().StringVar(&opts.Patch, "patch", "", "patch file (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the resulting field set to this file")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "digest algorithm (crc32c|xxhash), overrides the document")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("patch")

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	state, err := LoadFieldSet(opts.State)
	if err != nil {
		return failLoad(formatter, err)
	}
	wire, err := readPatchFile(opts.Patch)
	if err != nil {
		return failLoad(formatter, err)
	}

	e, err := engineFromFieldSet(state, opts.Digest, formatter.Logger())
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("state: %d field(s), crc %s", e.Len(), e.CRC())

	results, err := e.ApplyPatch(wire)
	if err != nil {
		return failPatch(formatter, err)
	}

	fs := FieldSetFrom(e.Digester().Name(), e.Fields(), e.IndexMapping())
	result := ApplyResult{
		CRC:     string(e.CRC()),
		Fields:  fs.Fields,
		Renamed: renamedIndexes(results),
		Out:     opts.Out,
	}

	if opts.Out != "" {
		if err := SaveFieldSet(opts.Out, fs); err != nil {
			return failLoad(formatter, err)
		}
	}

	return formatter.Success(result, func(w io.Writer) {
		if result.Out != "" {
			fmt.Fprintf(w, "✓ Applied: %d field(s), crc %s\n", len(result.Fields), result.CRC)
			fmt.Fprintf(w, "  Written to %s\n", result.Out)
			return
		}
		_ = WriteFieldSet(w, fs)
	})
}

// renamedIndexes lists the indexes whose name a patch changed.
func renamedIndexes(results []ir.FieldResult) []int {
	var out []int
	for _, r := range results {
		if r.MapNameChanged != nil {
			out = append(out, int(r.Index))
		}
	}
	return out
}
