package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/specialize/internal/builtins"
	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/harness"
	"github.com/roach88/specialize/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string              `json:"run_id"`
	Scenario      string              `json:"scenario"`
	Nodes         int                 `json:"nodes"`
	Calls         int                 `json:"calls"`
	Events        int                 `json:"events"`
	Deterministic bool                `json:"deterministic"`
	KindChanged   bool                `json:"kind_changed,omitempty"`
	Divergence    *harness.Divergence `json:"divergence,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Re-execute recorded runs and verify determinism",
		Long: `Re-execute recorded runs on fresh nodes and compare event streams.

Each node is rebuilt from the current declarations in specs-dir with its
recorded id, the recorded calls are dispatched again in seq order, and
the resulting trace must equal the recorded one event for event. A
declaration whose hash changed since recording is reported, not replayed.

Exit codes:
  0 - All runs reproduce their recorded trace
  1 - A trace diverged or a declaration changed
  2 - Command error (database not found, etc.)

Examples:
  specialize replay --db ./trace.db ./specs
  specialize replay --db ./trace.db ./specs --run run-1
  specialize replay --db ./trace.db ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to load specs", loadErrors[0])
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	lib := builtins.Library()

	for _, run := range runs {
		formatter.VerboseLog("Replaying run %s (%s)", run.ID, run.Scenario)
		rr := ReplayRunResult{RunID: run.ID, Scenario: run.Scenario}

		replayed, err := harness.Replay(ctx, st, run.ID, loadResult.Kinds, lib, logger)
		switch {
		case errors.Is(err, harness.ErrKindChanged):
			rr.KindChanged = true
		case err != nil:
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		default:
			rr.Nodes = replayed.Nodes
			rr.Calls = replayed.Calls
			rr.Events = replayed.Events
			rr.Deterministic = replayed.Identical()
			rr.Divergence = replayed.Divergence
		}

		if !rr.Deterministic {
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, rr)
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

func replayFailure(result ReplayResult) error {
	if result.AllDeterministic {
		return nil
	}
	failed := 0
	for _, r := range result.Runs {
		if !r.Deterministic {
			failed++
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) did not reproduce their trace", failed))
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_NONDETERMINISTIC",
			Message: "replayed trace differs from the recording",
		}
	}
	if err := writeJSON(formatter.Writer, response); err != nil {
		return err
	}
	return replayFailure(result)
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	for _, r := range result.Runs {
		switch {
		case r.KindChanged:
			fmt.Fprintf(w, "%s %s (%s): node kind declaration changed since recording\n", formatter.Fail(), r.RunID, r.Scenario)
		case r.Deterministic:
			fmt.Fprintf(w, "%s %s (%s): %d node(s), %d call(s), %d event(s)\n",
				formatter.Pass(), r.RunID, r.Scenario, r.Nodes, r.Calls, r.Events)
		default:
			d := r.Divergence
			fmt.Fprintf(w, "%s %s (%s): diverged at event %d\n", formatter.Fail(), r.RunID, r.Scenario, d.Index)
			fmt.Fprintf(w, "  recorded: %s\n", describeOptional(d.Recorded))
			fmt.Fprintf(w, "  replayed: %s\n", describeOptional(d.Replayed))
		}
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "%s All %d run(s) deterministic\n", formatter.Pass(), result.TotalRuns)
	}
	return replayFailure(result)
}

func describeOptional(ev *dispatch.Event) string {
	if ev == nil {
		return "(end of trace)"
	}
	return fmt.Sprintf("[%d] %s", ev.Seq, harness.DescribeEvent(*ev))
}
