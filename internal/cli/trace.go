package cli

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
	Rule     string // optional - only firings of this rule
}

// TraceEvent is one line of a run's timeline.
type TraceEvent struct {
	Seq      int64   `json:"seq"`
	Type     string  `json:"type"` // assert, retract, modify or fire
	Fact     int64   `json:"fact,omitempty"`
	Template string  `json:"template,omitempty"`
	Slots    string  `json:"slots,omitempty"`
	Rule     string  `json:"rule,omitempty"`
	Salience int     `json:"salience,omitempty"`
	Facts    []int64 `json:"facts,omitempty"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	Asserts  int `json:"asserts"`
	Retracts int `json:"retracts"`
	Modifies int `json:"modifies"`
	Firings  int `json:"firings"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string       `json:"run_id"`
	Label    string       `json:"label"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a run",
		Long: `Show the journaled timeline of a run: every fact asserted, modified or
retracted and every rule firing, in the order they happened.

The latest run is shown unless --run names one. Run ids are UUIDv7, so the
latest run is the one with the greatest id.

Examples:
  rete trace --db ./rete.db
  rete trace --db ./rete.db --run 0190c0de-... --rule adult
  rete trace --db ./rete.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default latest)")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "only show firings of this rule")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := selectRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	result, err := buildTrace(ctx, st, run, opts.Rule)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if out.JSON() {
		return out.Encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	outputTraceText(out.Writer, result)
	return nil
}

// selectRun returns the named run, or the latest one when id is empty.
func selectRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id != "" {
		run, err := st.ReadRun(ctx, id)
		if err != nil {
			return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
		}
		return run, nil
	}

	runs, err := st.ReadRuns(ctx)
	if err != nil {
		return store.Run{}, WrapExitError(ExitCommandError, "failed to read runs", err)
	}
	if len(runs) == 0 {
		return store.Run{}, NewExitError(ExitCommandError, "no runs in database")
	}
	return runs[len(runs)-1], nil
}

// buildTrace merges a run's fact events and firings into one timeline
// ordered by sequence number.
func buildTrace(ctx context.Context, st *store.Store, run store.Run, rule string) (TraceResult, error) {
	result := TraceResult{RunID: run.ID, Label: run.Label, Timeline: []TraceEvent{}}

	events, err := st.ReadFactEvents(ctx, run.ID)
	if err != nil {
		return result, err
	}
	firings, err := st.ReadFirings(ctx, run.ID)
	if err != nil {
		return result, err
	}

	for _, ev := range events {
		switch ev.Op {
		case store.OpAssert:
			result.Stats.Asserts++
		case store.OpRetract:
			result.Stats.Retracts++
		case store.OpModify:
			result.Stats.Modifies++
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:      ev.Seq,
			Type:     ev.Op,
			Fact:     ev.FactID,
			Template: ev.Type,
			Slots:    ev.Slots,
		})
	}
	for _, f := range firings {
		result.Stats.Firings++
		if rule != "" && f.Rule != rule {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:      f.Seq,
			Type:     "fire",
			Rule:     f.Rule,
			Salience: f.Salience,
			Facts:    f.Facts,
		})
	}
	slices.SortFunc(result.Timeline, func(a, b TraceEvent) int { return cmp.Compare(a.Seq, b.Seq) })
	return result, nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Trace for run: %s (%s)\n", result.RunID, result.Label)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		if ev.Type == "fire" {
			fmt.Fprintf(w, "  [%d] FIRE %s %s\n", ev.Seq, ev.Rule, factList(ev.Facts))
			continue
		}
		fmt.Fprintf(w, "  [%d] %s f-%d %s %s\n", ev.Seq, strings.ToUpper(ev.Type), ev.Fact, ev.Template, ev.Slots)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Asserts:  %d\n", result.Stats.Asserts)
	fmt.Fprintf(w, "  Retracts: %d\n", result.Stats.Retracts)
	fmt.Fprintf(w, "  Modifies: %d\n", result.Stats.Modifies)
	fmt.Fprintf(w, "  Firings:  %d\n", result.Stats.Firings)
}

// factList renders fact ids as "f-1,f-2". Facts without an id, such as
// accumulate results, print as "*".
func factList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 {
			parts[i] = "*"
			continue
		}
		parts[i] = fmt.Sprintf("f-%d", id)
	}
	return strings.Join(parts, ",")
}
