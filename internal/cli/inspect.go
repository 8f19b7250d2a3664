package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sdde/internal/engine"
	"github.com/roach88/sdde/internal/ir"
)

// InspectEntry is the decoded content of a patch for one index.
type InspectEntry struct {
	Index  int      `json:"index"`
	Remove bool     `json:"remove,omitempty"`
	Diffs  []string `json:"diffs,omitempty"`
	Rename []string `json:"rename,omitempty"`
}

// InspectResult holds the inspect output.
type InspectResult struct {
	CRC     string         `json:"crc"`
	Bytes   int            `json:"bytes"`
	Entries []InspectEntry `json:"entries"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <patch>",
		Short: "Decode a patch and print its entries",
		Long: `Decode a patch file and print the digest it was produced against and,
per field index, the difference records, removals and renames it carries.

Examples:
  sdde inspect v2.patch
  sdde inspect v2.hex --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runInspect(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	wire, err := readPatchFile(path)
	if err != nil {
		return failLoad(formatter, err)
	}

	decoded, err := engine.DecodePatch(wire)
	if err != nil {
		return failPatch(formatter, err)
	}

	result := InspectResult{
		CRC:     string(decoded.CRC),
		Bytes:   len(wire),
		Entries: make([]InspectEntry, 0, len(decoded.Entries)),
	}
	for _, e := range decoded.Entries {
		result.Entries = append(result.Entries, InspectEntry{
			Index:  int(e.Index),
			Remove: e.RemoveEntry,
			Diffs:  diffStrings(e.Diffs),
			Rename: diffStrings(e.MapNameChanged),
		})
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "crc %s (%d bytes)\n", result.CRC, result.Bytes)
		if len(result.Entries) == 0 {
			fmt.Fprintln(w, "  no changes")
		}
		for _, e := range result.Entries {
			if e.Remove {
				fmt.Fprintf(w, "field %d removed\n", e.Index)
				continue
			}
			fmt.Fprintf(w, "field %d\n", e.Index)
			for _, d := range e.Diffs {
				fmt.Fprintf(w, "  %s\n", d)
			}
			for _, d := range e.Rename {
				fmt.Fprintf(w, "  name %s\n", d)
			}
		}
	})
}

func diffStrings(diffs []ir.Difference) []string {
	if len(diffs) == 0 {
		return nil
	}
	out := make([]string, len(diffs))
	for i, d := range diffs {
		out[i] = d.String()
	}
	return out
}
