package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rete/internal/harness"
)

// ScenarioCheck is the validation outcome of one scenario file.
type ScenarioCheck struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Rules int    `json:"rules"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// ValidationResult holds the outcome of validate.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Scenarios []ScenarioCheck `json:"scenarios"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check scenario files without running them",
		Long: `Parse scenario files and build their rules into a network without
asserting any facts. Directories are searched for .yaml and .yml files.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (path not found)

Examples:
  rete validate ./scenarios
  rete validate ./scenarios/adult_badge.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)

	wd, err := os.Getwd()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve working directory", err)
	}
	files, err := harness.DiscoverScenarios(wd, paths...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	result := ValidationResult{Valid: true, Scenarios: make([]ScenarioCheck, 0, len(files))}
	for _, path := range files {
		out.VerboseLog("validating %s", path)
		check := validateScenarioFile(opts, path, cmd)
		if check.Error != "" {
			result.Valid = false
		}
		result.Scenarios = append(result.Scenarios, check)
	}

	if out.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: CodeInvalid, Message: "one or more scenarios are invalid"}
		}
		if err := out.Encode(resp); err != nil {
			return err
		}
	} else {
		for _, c := range result.Scenarios {
			if c.Error == "" {
				fmt.Fprintf(out.Writer, "✓ %s (%d rules)\n", c.Name, c.Rules)
				continue
			}
			fmt.Fprintf(out.Writer, "✗ %s\n", c.Path)
			fmt.Fprintf(out.Writer, "  %s: %s\n", c.Code, c.Error)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateScenarioFile parses one file and installs its rules in a
// throwaway engine.
func validateScenarioFile(opts *RootOptions, path string, cmd *cobra.Command) ScenarioCheck {
	check := ScenarioCheck{Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		check.Code = CodeLoadFailed
		check.Error = err.Error()
		return check
	}
	check.Name = scenario.Name

	eng, err := harness.Load(scenario, harness.WithLogger(newLogger(opts, cmd.ErrOrStderr())))
	if err != nil {
		check.Code = CodeInvalid
		check.Error = err.Error()
		return check
	}
	defer eng.Close()
	check.Rules = len(eng.Rules())
	return check
}
