package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/specialize/internal/harness"
	"github.com/roach88/specialize/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	RunID    string

	// NewRunID overrides run id generation (for testing).
	// If nil, run ids are UUIDv7 strings.
	NewRunID func() string
}

// RunOutput is the result of the run command.
type RunOutput struct {
	RunID    string              `json:"run_id"`
	Scenario string              `json:"scenario"`
	Pass     bool                `json:"pass"`
	Events   int                 `json:"events"`
	Outcomes []harness.Outcome   `json:"outcomes"`
	Nodes    []harness.NodeState `json:"nodes"`
	Errors   []string            `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir> <scenario.yaml>",
		Short: "Execute a scenario and persist its trace",
		Long: `Execute one scenario and record the run in a SQLite trace store.

The database is created if it doesn't exist. Every node creation, call
and dispatch event is written under a new run id, which trace and replay
accept afterwards. Spec paths in the scenario resolve against specs-dir.

Example:
  specialize run --db ./trace.db ./specs ./scenarios/rewrite.yaml
  specialize run --db ./trace.db ./specs ./scenarios/rewrite.yaml --run nightly-1 -v`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default: generated UUIDv7)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, specsDir, scenarioFile string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(specsDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("specs directory not found: %s", specsDir))
	}
	scenario, err := harness.LoadScenarioWithBasePath(scenarioFile, specsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	// A run is short, but an interrupt still stops it between store writes.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	runID := opts.RunID
	if runID == "" {
		runID = newRunID(opts)
	}
	if _, err := st.ReadRun(ctx, runID); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s already recorded in %s", runID, opts.Database))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return WrapExitError(ExitCommandError, "failed to check run id", err)
	}

	result, err := harness.RunContext(ctx, scenario, harness.Options{
		Store:  st,
		RunID:  runID,
		Logger: logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	out := RunOutput{
		RunID:    result.RunID,
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Events:   len(result.Trace),
		Outcomes: result.Outcomes,
		Nodes:    result.Nodes,
		Errors:   result.Errors,
	}
	if err := outputRun(formatter, out); err != nil {
		return err
	}
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", scenario.Name, len(result.Errors)))
	}
	return nil
}

func newRunID(opts *RunOptions) string {
	if opts.NewRunID != nil {
		return opts.NewRunID()
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func outputRun(formatter *OutputFormatter, out RunOutput) error {
	if formatter.Format == "json" {
		status := "ok"
		if !out.Pass {
			status = "error"
		}
		return writeJSON(formatter.Writer, CLIResponse{Status: status, Data: out, RunID: out.RunID})
	}

	w := formatter.Writer
	marker := formatter.Pass()
	if !out.Pass {
		marker = formatter.Fail()
	}
	fmt.Fprintf(w, "%s %s\n", marker, out.Scenario)
	fmt.Fprintf(w, "  run: %s (%d events)\n", out.RunID, out.Events)
	for _, o := range out.Outcomes {
		if o.Error != "" {
			fmt.Fprintf(w, "  step %d  %s#%d  error: %s\n", o.Step, o.Node, o.Call, o.Error)
			continue
		}
		fmt.Fprintf(w, "  step %d  %s#%d  %s\n", o.Step, o.Node, o.Call, o.Value)
	}
	for _, n := range out.Nodes {
		fmt.Fprintf(w, "  %s chain=%v fallback=%d excluded=%v\n",
			n.ID, n.Stats.Chain, n.Stats.Fallback, n.Stats.Excluded)
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}
