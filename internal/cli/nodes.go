package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/harness"
)

// NodesResult is the network built from a scenario's rules.
type NodesResult struct {
	Scenario string   `json:"scenario"`
	Rules    []string `json:"rules"`
	Listing  string   `json:"listing"`
}

// NewNodesCommand creates the nodes command.
func NewNodesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes <scenario.yaml>",
		Short: "List the network built for a scenario's rules",
		Long: `Compile a scenario's templates and rules into a network and print every
node with its successors. Shared nodes appear once. No facts are asserted.

Example:
  rete nodes ./scenarios/adult_badge.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNodes(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runNodes(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	eng, err := harness.Load(scenario, harness.WithLogger(newLogger(opts, cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build network", err)
	}
	defer eng.Close()

	res := NodesResult{
		Scenario: scenario.Name,
		Rules:    eng.Rules(),
		Listing:  eng.ListNodes(),
	}
	if out.JSON() {
		return out.Success(res)
	}
	out.VerboseLog("rules: %v", res.Rules)
	fmt.Fprint(out.Writer, res.Listing)
	return nil
}
