package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/harness"
	"github.com/roach88/specialize/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	NodeID   string // optional - filter to one node
}

// TraceEntry is one line of a run's timeline: a node creation, a call with
// its arguments, or a dispatch event.
type TraceEntry struct {
	Seq   int64           `json:"seq"`
	Type  string          `json:"type"` // "node", "call" or "event"
	Node  string          `json:"node"`
	Kind  string          `json:"kind,omitempty"` // node kind for "node" entries
	Call  int64           `json:"call,omitempty"`
	Args  string          `json:"args,omitempty"`
	Event *dispatch.Event `json:"event,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Nodes     int `json:"nodes"`
	Calls     int `json:"calls"`
	Events    int `json:"events"`
	Installs  int `json:"installs"`
	Rewrites  int `json:"rewrites"`
	Fallbacks int `json:"fallbacks"`
	Misses    int `json:"misses"`
	Errors    int `json:"errors"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      store.Run    `json:"run"`
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded trace of a run",
		Long: `Show what happened during a recorded run.

The timeline interleaves node creations, calls with their argument
values, and every dispatch event (guard evaluations, installations,
confirmations, executions, rewrites, fallbacks and misses) in seq order.
Without --run, lists the runs in the database.

Examples:
  specialize trace --db ./trace.db
  specialize trace --db ./trace.db --run run-1
  specialize trace --db ./trace.db --run run-1 --node node-2
  specialize trace --db ./trace.db --run run-1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.NodeID, "node", "", "filter to one node id")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, formatter)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result, err := buildTrace(ctx, st, run, opts.NodeID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build trace", err)
	}

	if opts.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// buildTrace merges the run's node and call records with its events.
// When nodeID is set, only entries of that node are kept.
func buildTrace(ctx context.Context, st *store.Store, run store.Run, nodeID string) (TraceResult, error) {
	steps, err := st.Timeline(ctx, run.ID)
	if err != nil {
		return TraceResult{}, err
	}
	events, err := st.ReadEvents(ctx, run.ID, nodeID)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{Run: run, Timeline: []TraceEntry{}}
	for _, step := range steps {
		switch step.Type {
		case store.StepNode:
			if nodeID != "" && step.Node.ID != nodeID {
				continue
			}
			result.Stats.Nodes++
			result.Timeline = append(result.Timeline, TraceEntry{
				Seq:  step.Seq,
				Type: "node",
				Node: step.Node.ID,
				Kind: step.Node.Kind,
			})
		case store.StepCall:
			if nodeID != "" && step.Call.NodeID != nodeID {
				continue
			}
			result.Stats.Calls++
			result.Timeline = append(result.Timeline, TraceEntry{
				Seq:  step.Seq,
				Type: "call",
				Node: step.Call.NodeID,
				Call: step.Call.Call,
				Args: step.Call.Args.String(),
			})
		}
	}

	for i := range events {
		ev := &events[i]
		result.Stats.Events++
		switch ev.Kind {
		case dispatch.EventInstall:
			result.Stats.Installs++
		case dispatch.EventRewrite:
			result.Stats.Rewrites++
		case dispatch.EventFallback:
			result.Stats.Fallbacks++
		case dispatch.EventMiss:
			result.Stats.Misses++
		case dispatch.EventError:
			result.Stats.Errors++
		}
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:   ev.Seq,
			Type:  "event",
			Node:  ev.Node,
			Call:  ev.Call,
			Event: ev,
		})
	}

	// Seqs are unique across the three tables.
	sort.SliceStable(result.Timeline, func(i, j int) bool {
		return result.Timeline[i].Seq < result.Timeline[j].Seq
	})
	return result, nil
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if formatter.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%s  %s  (max_active %d, engine %s)\n", r.ID, r.Scenario, r.MaxActive, r.EngineVersion)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Scenario: %s\n", result.Run.Scenario)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, entry := range result.Timeline {
		switch entry.Type {
		case "node":
			fmt.Fprintf(w, "  [%d] NODE %s %s\n", entry.Seq, entry.Node, entry.Kind)
		case "call":
			fmt.Fprintf(w, "  [%d] CALL %s#%d %s\n", entry.Seq, entry.Node, entry.Call, entry.Args)
		case "event":
			// Guard evaluations are the noisiest part of a trace.
			if !verbose && entry.Event.Kind == dispatch.EventGuard {
				continue
			}
			fmt.Fprintf(w, "  [%d]   %s\n", entry.Seq, harness.DescribeEvent(*entry.Event))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Nodes:     %d\n", result.Stats.Nodes)
	fmt.Fprintf(w, "  Calls:     %d\n", result.Stats.Calls)
	fmt.Fprintf(w, "  Events:    %d\n", result.Stats.Events)
	fmt.Fprintf(w, "  Installs:  %d\n", result.Stats.Installs)
	fmt.Fprintf(w, "  Rewrites:  %d\n", result.Stats.Rewrites)
	fmt.Fprintf(w, "  Fallbacks: %d\n", result.Stats.Fallbacks)
	fmt.Fprintf(w, "  Misses:    %d\n", result.Stats.Misses)
	fmt.Fprintf(w, "  Errors:    %d\n", result.Stats.Errors)
	return nil
}
