package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/engine"
	"github.com/roach88/rete/internal/harness"
	"github.com/roach88/rete/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string           `json:"run_id"`
	Label         string           `json:"label"`
	Scenario      string           `json:"scenario"`
	Events        int              `json:"events"`
	Firings       int              `json:"firings"`
	Facts         []store.LiveFact `json:"facts"`
	Deterministic bool             `json:"deterministic"`
	Diff          string           `json:"diff,omitempty"`
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
		Use:   "replay <path>...",
		Short: "Re-execute journaled runs and compare",
		Long: `Re-execute every journaled run against the scenario it was recorded from
and compare the new journal with the stored one. A run's label names its
scenario; scenarios are searched for under the given paths.

The firings and the working memory left behind must match exactly. Any
difference, such as a rule edited since the run was journaled, is reported
as a diff.

Exit codes:
  0 - All runs replay deterministically
  1 - A replay diverged
  2 - Command error (database not found, unknown run, missing scenario, etc.)

Examples:
  rete replay --db ./rete.db ./scenarios
  rete replay --db ./rete.db --run 0190c0de-... ./scenarios
  rete replay --db ./rete.db --format json ./scenarios`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, paths []string, cmd *cobra.Command) error {
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

	scenarios, err := loadScenarios(paths)
	if err != nil {
		return err
	}

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
	}

	logger := newLogger(opts.RootOptions, out.GetErrWriter())
	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, run := range runs {
		sc, ok := scenarios[run.Label]
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("no scenario named %q for run %s", run.Label, run.ID))
		}
		out.VerboseLog("replaying run %s against %s", run.ID, sc.path)
		rr, err := replayRun(ctx, st, run, sc, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, rr)
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if out.JSON() {
		return outputReplayJSON(out, result)
	}
	return outputReplayText(out, result)
}

type loadedScenario struct {
	path     string
	scenario *harness.Scenario
}

// loadScenarios indexes the scenarios under paths by name.
func loadScenarios(paths []string) (map[string]loadedScenario, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to resolve working directory", err)
	}
	files, err := harness.DiscoverScenarios(wd, paths...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	byName := make(map[string]loadedScenario, len(files))
	for _, file := range files {
		sc, err := harness.LoadScenario(file)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to load %s", file), err)
		}
		if prev, dup := byName[sc.Name]; dup {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("scenario %q defined by both %s and %s", sc.Name, prev.path, file))
		}
		byName[sc.Name] = loadedScenario{path: file, scenario: sc}
	}
	return byName, nil
}

// journalRecord is what a re-execution must reproduce.
type journalRecord struct {
	Firings []store.Firing
	Facts   []store.LiveFact
}

func readRecord(ctx context.Context, st *store.Store, runID string) (journalRecord, []store.FactEvent, error) {
	events, err := st.ReadFactEvents(ctx, runID)
	if err != nil {
		return journalRecord{}, nil, err
	}
	firings, err := st.ReadFirings(ctx, runID)
	if err != nil {
		return journalRecord{}, nil, err
	}
	facts, err := st.ReplayFacts(ctx, runID)
	if err != nil {
		return journalRecord{}, nil, err
	}
	return journalRecord{Firings: firings, Facts: facts}, events, nil
}

// replayRun re-executes the run's scenario into a scratch journal under the
// same run id and diffs the two journals.
func replayRun(ctx context.Context, st *store.Store, run store.Run, sc loadedScenario, logger *slog.Logger) (ReplayRunResult, error) {
	stored, events, err := readRecord(ctx, st, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	scratch, err := store.Open(":memory:")
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("open scratch journal: %w", err)
	}
	defer scratch.Close()

	if _, err := harness.Run(sc.scenario,
		harness.WithStore(scratch),
		harness.WithRunIDs(engine.NewFixedGenerator(run.ID)),
		harness.WithLogger(logger),
	); err != nil {
		return ReplayRunResult{}, fmt.Errorf("re-execute %s: %w", sc.path, err)
	}
	replayed, _, err := readRecord(ctx, scratch, run.ID)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("read scratch journal: %w", err)
	}

	diff := cmp.Diff(stored, replayed)
	return ReplayRunResult{
		RunID:         run.ID,
		Label:         run.Label,
		Scenario:      sc.path,
		Events:        len(events),
		Firings:       len(stored.Firings),
		Facts:         stored.Facts,
		Deterministic: diff == "",
		Diff:          diff,
	}, nil
}

// openExisting opens a journal that must already exist. store.Open would
// create a missing file.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(out *OutputFormatter, result ReplayResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		resp.Status = "error"
		resp.Error = &CLIError{Code: CodeNotReplayed, Message: "replay diverged"}
	}
	if err := out.Encode(resp); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(out *OutputFormatter, result ReplayResult) error {
	w := out.Writer
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)
	for _, rr := range result.Runs {
		status := "✓"
		if !rr.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, rr.RunID, rr.Label)
		fmt.Fprintf(w, "  Events: %d fact events, %d firings, %d live facts\n", rr.Events, rr.Firings, len(rr.Facts))
		if out.Verbose {
			for _, f := range rr.Facts {
				fmt.Fprintf(w, "  f-%d %s %s\n", f.ID, f.Type, f.Slots)
			}
		}
		if !rr.Deterministic {
			fmt.Fprintf(w, "  Diff (-journal +replay):\n%s", rr.Diff)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs replay deterministically")
		return nil
	}
	fmt.Fprintln(w, "✗ Replay diverged")
	return NewExitError(ExitFailure, "replay diverged")
}
