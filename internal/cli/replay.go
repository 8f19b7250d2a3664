package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sdde/internal/session"
	"github.com/roach88/sdde/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Name     string // optional - specific endpoint only
}

// ReplayEndpointResult holds the replay result for a single endpoint.
type ReplayEndpointResult struct {
	Name     string `json:"name"`
	Seq      int64  `json:"seq"`
	Replayed int    `json:"replayed"`
	CRC      string `json:"crc,omitempty"`
	Fields   int    `json:"fields"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Endpoints      []ReplayEndpointResult `json:"endpoints"`
	TotalEndpoints int                    `json:"total_endpoints"`
	AllVerified    bool                   `json:"all_verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild endpoints from their logs and verify the digest chain",
		Long: `Rebuild every endpoint (or only --name) from its snapshot and patch log.

Each logged patch is re-applied in seq order and its embedded digest is
checked against the state it lands on, so a tampered, missing or
reordered patch breaks the chain.

Exit codes:
  0 - All endpoints verified
  1 - Verification failed (broken digest chain)
  2 - Command error (database not found, etc.)

Examples:
  sdde replay --db ./sdde.db
  sdde replay --db ./sdde.db --name bob
  sdde replay --db ./sdde.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Name, "name", "", "replay specific endpoint only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(formatter, opts.Database, true)
	if err != nil {
		return err
	}
	defer st.Close()

	// Get endpoint names to process
	var names []string
	if opts.Name != "" {
		names = []string{opts.Name}
	} else {
		infos, err := st.ListSnapshots(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to list endpoints: %v", err), nil)
		}
		for _, info := range infos {
			names = append(names, info.Name)
		}
	}

	result := ReplayResult{
		Endpoints:      make([]ReplayEndpointResult, 0, len(names)),
		TotalEndpoints: len(names),
		AllVerified:    true,
	}

	for _, name := range names {
		formatter.VerboseLog("Replaying endpoint: %s", name)
		r := replayEndpoint(ctx, st, name, formatter)
		result.Endpoints = append(result.Endpoints, r)
		if !r.Verified {
			result.AllVerified = false
		}
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter.Writer, result, opts.Verbose)
}

// replayEndpoint rebuilds one endpoint. A failure is recorded in the
// result rather than returned so the remaining endpoints are still checked.
func replayEndpoint(ctx context.Context, st *store.Store, name string, formatter *OutputFormatter) ReplayEndpointResult {
	replayed, err := session.Replay(ctx, st, name, formatter.Logger())
	if err != nil {
		return ReplayEndpointResult{Name: name, Error: err.Error()}
	}
	return ReplayEndpointResult{
		Name:     name,
		Seq:      replayed.LastSeq,
		Replayed: replayed.Replayed,
		CRC:      string(replayed.Engine.CRC()),
		Fields:   replayed.Engine.Len(),
		Verified: true,
	}
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllVerified {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeReplay,
			Message: "digest chain verification failed",
		}
	}

	if err := formatter.encode(response); err != nil {
		return err
	}

	if !result.AllVerified {
		// Verification failure = exit code 1
		return NewExitError(ExitFailure, "digest chain verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, result ReplayResult, verbose bool) error {
	if result.TotalEndpoints == 0 {
		fmt.Fprintln(w, "No endpoints found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d endpoint(s)\n", result.TotalEndpoints)
	fmt.Fprintln(w)

	for _, ep := range result.Endpoints {
		if !ep.Verified {
			fmt.Fprintf(w, "✗ Endpoint: %s\n", ep.Name)
			fmt.Fprintf(w, "  Error: %s\n\n", ep.Error)
			continue
		}

		fmt.Fprintf(w, "✓ Endpoint: %s\n", ep.Name)
		fmt.Fprintf(w, "  Seq %d, %d patch(es) replayed\n", ep.Seq, ep.Replayed)
		if verbose {
			fmt.Fprintf(w, "  Fields: %d\n", ep.Fields)
			fmt.Fprintf(w, "  CRC: %s\n", ep.CRC)
		}
		fmt.Fprintln(w)
	}

	if result.AllVerified {
		fmt.Fprintln(w, "✓ All endpoints verified")
		return nil
	}

	fmt.Fprintln(w, "✗ Digest chain verification failed")
	// Verification failure = exit code 1
	return NewExitError(ExitFailure, "digest chain verification failed")
}
