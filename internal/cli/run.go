package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/engine"
	"github.com/roach88/rete/internal/harness"
	"github.com/roach88/rete/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	Watch      bool
	MaxFirings int

	// RunIDs overrides the journal run id generator (for testing).
	// If nil, journaled runs get UUIDv7 ids.
	RunIDs engine.RunIDGenerator
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Scenario string              `json:"scenario"`
	RunID    string              `json:"run_id"`
	Pass     bool                `json:"pass"`
	Firings  int                 `json:"firings"`
	Facts    []harness.FactState `json:"facts"`
	Errors   []string            `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario",
		Long: `Run a scenario's flow against a fresh engine and print the final
working memory.

With --db the run is journaled to a SQLite database under a new UUIDv7 run
id, for later use with trace and replay. Without it the journal is kept in
memory.

Example:
  rete run ./scenarios/adult_badge.yaml
  rete run --db ./rete.db --watch ./scenarios/adult_badge.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "print fact and firing changes as they happen")
	cmd.Flags().IntVar(&opts.MaxFirings, "max-firings", engine.DefaultMaxFirings, "firing quota per run step")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	hopts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithMaxFirings(opts.MaxFirings),
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		gen := opts.RunIDs
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		hopts = append(hopts, harness.WithStore(st), harness.WithRunIDs(gen))
	}
	if opts.Watch && !out.JSON() {
		hopts = append(hopts, harness.WithWatch(out.Writer))
	}

	logger.Info("running scenario", "name", scenario.Name, "path", path, "db", opts.Database)
	result, err := harness.Run(scenario, hopts...)
	if err != nil {
		return WrapExitError(ExitFailure, "scenario could not run", err)
	}

	res := RunResult{
		Scenario: scenario.Name,
		RunID:    result.RunID,
		Pass:     result.Pass,
		Firings:  len(result.Firings()),
		Facts:    result.Facts,
		Errors:   result.Errors,
	}
	if out.JSON() {
		resp := CLIResponse{Status: "ok", Data: res, RunID: res.RunID}
		if !res.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: CodeRunFailed, Message: "scenario failed"}
		}
		if err := out.Encode(resp); err != nil {
			return err
		}
	} else {
		printRunText(out, res)
	}

	if !res.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func printRunText(out *OutputFormatter, res RunResult) {
	w := out.Writer
	fmt.Fprintf(w, "Scenario: %s\n", res.Scenario)
	fmt.Fprintf(w, "Run:      %s\n", res.RunID)
	fmt.Fprintf(w, "Firings:  %d\n", res.Firings)
	fmt.Fprintln(w, "Facts:")
	if len(res.Facts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, f := range res.Facts {
		fmt.Fprintf(w, "  f-%d %s %s\n", f.ID, f.Template, f.Slots)
	}

	if res.Pass {
		fmt.Fprintln(w, "✓ passed")
		return
	}
	fmt.Fprintln(w, "✗ failed")
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
