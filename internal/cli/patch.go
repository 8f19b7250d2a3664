package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sdde/internal/engine"
	"github.com/roach88/sdde/internal/ir"
)

// PatchOptions holds flags for the patch command.
type PatchOptions struct {
	*RootOptions
	From   string
	To     string
	Out    string
	Digest string
}

// PatchResult holds the patch output.
type PatchResult struct {
	CRC    string `json:"crc"`     // digest the patch was produced against
	NewCRC string `json:"new_crc"` // digest of the target collection
	Bytes  int    `json:"bytes"`
	Hex    string `json:"hex"`
	Out    string `json:"out,omitempty"`
}

// NewPatchCommand creates the patch command.
func NewPatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Encode the patch between two field sets",
		Long: `Encode the patch that moves the --from field set to the --to field set.

Keys in --from are the agreed names; a key that differs in --to is sent
as a rename. The patch is written to --out (raw bytes, or hex when the
name ends in .hex) and printed as hex.

Examples:
  sdde patch --from v1.yaml --to v2.yaml
  sdde patch --from v1.cue --to v2.cue --out v2.patch
  sdde patch --from v1.json --to v2.json --digest xxhash --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "field set the receiver holds (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "field set to move to (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the patch to this file")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "digest algorithm (crc32c|xxhash), overrides the document")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runPatch(opts *PatchOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	from, err := LoadFieldSet(opts.From)
	if err != nil {
		return failLoad(formatter, err)
	}
	to, err := LoadFieldSet(opts.To)
	if err != nil {
		return failLoad(formatter, err)
	}

	e, err := engineFromFieldSet(from, opts.Digest, formatter.Logger())
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("from: %d field(s), crc %s", e.Len(), e.CRC())

	crc := e.CRC()
	renames := to.Names()
	for _, idx := range slices.Sorted(maps.Keys(renames)) {
		e.ChangeIndexMapping(idx, renames[idx])
	}
	wire := e.Patch(to.IndexedFields())

	result := PatchResult{
		CRC:    string(crc),
		NewCRC: string(e.CRC()),
		Bytes:  len(wire),
		Hex:    hex.EncodeToString(wire),
		Out:    opts.Out,
	}
	if opts.Out != "" {
		if err := writePatchFile(opts.Out, wire); err != nil {
			return failLoad(formatter, err)
		}
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Patch: %d bytes against crc %s\n", result.Bytes, result.CRC)
		if result.Out != "" {
			fmt.Fprintf(w, "  Written to %s\n", result.Out)
		}
		fmt.Fprintln(w, result.Hex)
	})
}

// engineFromFieldSet builds an engine holding fs with its keys committed as
// the agreed names. digestFlag, when set, overrides the document's digest.
func engineFromFieldSet(fs *FieldSet, digestFlag string, logger *slog.Logger) (*engine.Engine, error) {
	name := fs.Digest
	if digestFlag != "" {
		name = digestFlag
	}
	digester, err := ir.DigesterByName(name)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error()}
	}

	e := engine.New(fs.IndexedFields(), engine.WithDigester(digester), engine.WithLogger(logger))
	names := fs.Names()
	for _, idx := range slices.Sorted(maps.Keys(names)) {
		e.ChangeIndexMapping(idx, names[idx])
	}
	e.Apply()
	return e, nil
}
