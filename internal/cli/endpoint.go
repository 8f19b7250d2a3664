package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sdde/internal/ir"
	"github.com/roach88/sdde/internal/session"
	"github.com/roach88/sdde/internal/store"
)

// EndpointOptions holds the flags shared by the commands that work on a
// stored endpoint.
type EndpointOptions struct {
	*RootOptions
	Database string
	Name     string
}

func (o *EndpointOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&o.Name, "name", "", "endpoint name (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("name")
}

// EndpointResult describes an endpoint after a command.
type EndpointResult struct {
	Name   string `json:"name"`
	Seq    int64  `json:"seq"`
	CRC    string `json:"crc"`
	Fields int    `json:"fields"`

	// Set by push.
	ID    string `json:"id,omitempty"`
	Bytes int    `json:"bytes,omitempty"`
	Hex   string `json:"hex,omitempty"`
	Out   string `json:"out,omitempty"`

	// Set by receive.
	Renamed []int `json:"renamed,omitempty"`
}

func endpointResult(s *session.Session) EndpointResult {
	return EndpointResult{
		Name:   s.Name(),
		Seq:    s.Seq(),
		CRC:    string(s.CRC()),
		Fields: len(s.Fields()),
	}
}

// openStore opens the database. Every command except init requires the
// file to exist already.
func openStore(f *OutputFormatter, path string, mustExist bool) (*store.Store, error) {
	if mustExist {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	return st, nil
}

// openSession opens a stored endpoint, mapping a missing endpoint and a
// broken digest chain to their error codes.
func openSession(ctx context.Context, f *OutputFormatter, st *store.Store, name string) (*session.Session, error) {
	s, err := session.Open(ctx, st, name, session.WithLogger(f.Logger()))
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("endpoint not found: %s", name), nil)
	default:
		return nil, f.Fail(ExitFailure, ErrCodeReplay, err.Error(), nil)
	}
}

// InitOptions holds flags for the init command.
type InitOptions struct {
	EndpointOptions
	Fields string
	Digest string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{EndpointOptions: EndpointOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a stored endpoint from a field set",
		Long: `Create a named endpoint in the database holding the --fields field set.
Keys in the field set become the endpoint's agreed names. Sender and
receiver of a sync are both created from the same field set.

Examples:
  sdde init --db ./sdde.db --name alice --fields v1.yaml
  sdde init --db ./sdde.db --name bob --fields v1.yaml --digest xxhash`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Fields, "fields", "", "initial field set (required)")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "digest algorithm (crc32c|xxhash), overrides the document")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	fs, err := LoadFieldSet(opts.Fields)
	if err != nil {
		return failLoad(formatter, err)
	}
	digestName := fs.Digest
	if opts.Digest != "" {
		digestName = opts.Digest
	}
	digester, err := ir.DigesterByName(digestName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSchema, err.Error(), nil)
	}

	st, err := openStore(formatter, opts.Database, false)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := session.Create(ctx, st, opts.Name, fs.IndexedFields(),
		session.WithDigester(digester),
		session.WithLogger(formatter.Logger()),
	)
	if errors.Is(err, session.ErrExists) {
		return formatter.Fail(ExitCommandError, ErrCodeExists, fmt.Sprintf("endpoint already exists: %s", opts.Name), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if names := fs.Names(); len(names) > 0 {
		if err := s.SetBaseline(ctx, names); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
	}

	result := endpointResult(s)
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Created %s: %d field(s), crc %s\n", result.Name, result.Fields, result.CRC)
	})
}

// PushOptions holds flags for the push command.
type PushOptions struct {
	EndpointOptions
	Fields string
	Out    string
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{EndpointOptions: EndpointOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Move an endpoint to a field set and log the patch",
		Long: `Move the endpoint to the --fields field set, log the resulting patch and
print it. Keys that differ from the endpoint's current names are sent as
renames. Ship the patch to the peer and feed it to "sdde receive".

Examples:
  sdde push --db ./sdde.db --name alice --fields v2.yaml
  sdde push --db ./sdde.db --name alice --fields v2.yaml --out v2.patch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(opts, cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Fields, "fields", "", "field set to move to (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the patch to this file")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func runPush(opts *PushOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	fs, err := LoadFieldSet(opts.Fields)
	if err != nil {
		return failLoad(formatter, err)
	}

	st, err := openStore(formatter, opts.Database, true)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := openSession(ctx, formatter, st, opts.Name)
	if err != nil {
		return err
	}

	rec, err := s.Push(ctx, fs.IndexedFields(), fs.Names())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	if opts.Out != "" {
		if err := writePatchFile(opts.Out, rec.Payload); err != nil {
			return failLoad(formatter, err)
		}
	}

	result := endpointResult(s)
	result.ID = rec.ID
	result.Bytes = len(rec.Payload)
	result.Hex = hex.EncodeToString(rec.Payload)
	result.Out = opts.Out

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Pushed %s seq %d: %d bytes, crc %s\n", result.Name, result.Seq, result.Bytes, result.CRC)
		formatter.VerboseLog("patch id %s", result.ID)
		if result.Out != "" {
			fmt.Fprintf(w, "  Written to %s\n", result.Out)
		}
		fmt.Fprintln(w, result.Hex)
	})
}

// ReceiveOptions holds flags for the receive command.
type ReceiveOptions struct {
	EndpointOptions
	Patch string
}

// NewReceiveCommand creates the receive command.
func NewReceiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReceiveOptions{EndpointOptions: EndpointOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Apply a peer's patch to an endpoint and log it",
		Long: `Validate and apply a patch produced by a peer's push, then log it.
A rejected patch leaves the endpoint unchanged.

Exit codes:
  0 - Patch applied
  1 - Patch rejected (CRC mismatch or malformed patch)
  2 - Command error (database or endpoint not found)

Examples:
  sdde receive --db ./sdde.db --name bob --patch v2.patch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(opts, cmd)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.Patch, "patch", "", "patch file (required)")
	_ = cmd.MarkFlagRequired("patch")

	return cmd
}

func runReceive(opts *ReceiveOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	wire, err := readPatchFile(opts.Patch)
	if err != nil {
		return failLoad(formatter, err)
	}

	st, err := openStore(formatter, opts.Database, true)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := openSession(ctx, formatter, st, opts.Name)
	if err != nil {
		return err
	}

	results, rec, err := s.Receive(ctx, wire)
	if err != nil {
		return failPatch(formatter, err)
	}

	result := endpointResult(s)
	result.ID = rec.ID
	result.Renamed = renamedIndexes(results)

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Received %s seq %d: %d field(s), crc %s\n", result.Name, result.Seq, result.Fields, result.CRC)
		for _, idx := range result.Renamed {
			fmt.Fprintf(w, "  field %d renamed\n", idx)
		}
	})
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EndpointOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Snapshot an endpoint and prune its patch log",
		Long: `Write the endpoint's current state as its snapshot and drop the logged
patches the snapshot absorbs.

Examples:
  sdde checkpoint --db ./sdde.db --name bob`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoint(opts, cmd)
		},
	}

	opts.bind(cmd)

	return cmd
}

func runCheckpoint(opts *EndpointOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(formatter, opts.Database, true)
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := openSession(ctx, formatter, st, opts.Name)
	if err != nil {
		return err
	}
	if err := s.Checkpoint(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	result := endpointResult(s)
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Checkpoint %s at seq %d\n", result.Name, result.Seq)
	})
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored endpoints",
		Long: `List the endpoints in the database with their snapshot seq, digest,
field count and number of logged patches.

Examples:
  sdde list --db ./sdde.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(formatter, opts.Database, true)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListSnapshots(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	if infos == nil {
		infos = []store.SnapshotInfo{}
	}

	return formatter.Success(infos, func(w io.Writer) {
		if len(infos) == 0 {
			fmt.Fprintln(w, "No endpoints found in database.")
			return
		}
		for _, info := range infos {
			fmt.Fprintf(w, "%s  seq %d  %s %s  %d field(s)  %d patch(es)\n",
				info.Name, info.Seq, info.Digest, info.CRC, info.Fields, info.Patches)
		}
	})
}
