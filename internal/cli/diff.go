package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sdde/internal/diff"
	"github.com/roach88/sdde/internal/record"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Literal bool // arguments are the byte sequences themselves
}

// DiffRecord is one difference with its serialized record.
type DiffRecord struct {
	Action string `json:"action"`
	Start  uint64 `json:"start"`
	Length uint64 `json:"length"`
	Value  string `json:"value,omitempty"`
	Record string `json:"record"` // hex
}

// DiffResult holds the diff output.
type DiffResult struct {
	Records []DiffRecord `json:"records"`
	Stream  string       `json:"stream"` // hex of the length-prefixed record stream
	Bytes   int          `json:"bytes"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Print the difference records between two byte sequences",
		Long: `Compute the byte-level difference records that turn <old> into <new>.

By default both arguments are file paths. With --literal they are taken
as the byte sequences themselves.

Examples:
  sdde diff --literal Test Test2
  sdde diff old.bin new.bin --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Literal, "literal", false, "treat arguments as literal byte sequences")

	return cmd
}

func runDiff(opts *DiffOptions, oldArg, newArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	oldData, err := diffInput(oldArg, opts.Literal)
	if err != nil {
		return failLoad(formatter, err)
	}
	newData, err := diffInput(newArg, opts.Literal)
	if err != nil {
		return failLoad(formatter, err)
	}

	diffs := diff.Diff(oldData, newData)
	formatter.VerboseLog("old %d bytes, new %d bytes, %d record(s)", len(oldData), len(newData), len(diffs))

	stream := record.EncodeStream(diffs)
	result := DiffResult{
		Records: make([]DiffRecord, 0, len(diffs)),
		Stream:  hex.EncodeToString(stream),
		Bytes:   len(stream),
	}
	for _, d := range diffs {
		result.Records = append(result.Records, DiffRecord{
			Action: d.Action.String(),
			Start:  d.Range.Start,
			Length: d.Range.Length,
			Value:  string(d.Value),
			Record: hex.EncodeToString(record.ToBytes(d)),
		})
	}

	return formatter.Success(result, func(w io.Writer) {
		if len(diffs) == 0 {
			fmt.Fprintln(w, "✓ Identical")
			return
		}
		for _, d := range diffs {
			fmt.Fprintf(w, "%-24s %s\n", d, hex.EncodeToString(record.ToBytes(d)))
		}
		fmt.Fprintf(w, "%d record(s), %d bytes\n", len(diffs), len(stream))
	})
}

func diffInput(arg string, literal bool) ([]byte, error) {
	if literal {
		return []byte(arg), nil
	}
	data, err := os.ReadFile(arg)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", arg)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", arg, err)}
	}
	return data, nil
}
