package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/calmloop/settle/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Timeout  time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario script",
		Long: `Run a scenario script against a fresh scene world.

The scenario's scene is compiled from CUE, the steps execute in order on the
control loop, and every injection, delivery, and wait is recorded. With --db
the journal persists to SQLite for later inspection with trace; without it
the journal stays in memory.

Example:
  settle run scenarios/tap_dialog.yaml
  settle run --db ./run.db scenarios/type_text.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default in-memory)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "idle timeout override, e.g. 500ms")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if opts.Timeout > 0 {
		scenario.IdleTimeout = harness.Duration(opts.Timeout)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = ":memory:"
	}

	slog.Info("running scenario", "name", scenario.Name, "scene", scenario.Scene, "db", dbPath)
	result, err := harness.RunWithJournal(scenario, dbPath)
	if err != nil {
		// The scenario never produced a result: bad scene, bad script.
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario did not run", err)
	}

	return outputRunResult(formatter, result)
}

// outputRunResult renders the result. A failed run becomes exit code 1.
func outputRunResult(formatter *OutputFormatter, result *harness.Result) error {
	if formatter.Format == "json" {
		status := "ok"
		var cliErr *CLIError
		if !result.Pass {
			status = "error"
			cliErr = &CLIError{
				Code:    "E_SCENARIO_FAILED",
				Message: result.Errors[0],
			}
		}
		response := CLIResponse{Status: status, Data: result, Error: cliErr}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		if !result.Pass {
			return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", result.Scenario))
		}
		return nil
	}

	// Text format
	for _, step := range result.Steps {
		line := fmt.Sprintf("  [%d] %s -> %s", step.Index, step.Step, step.Outcome)
		if step.Error != "" {
			line += fmt.Sprintf(" (%s)", step.Error)
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	if formatter.Verbose && len(result.Trace) > 0 {
		fmt.Fprintln(formatter.Writer, "Trace:")
		fmt.Fprint(formatter.Writer, harness.FormatTrace(result.Trace))
	}

	if result.Pass {
		fmt.Fprintf(formatter.Writer, "✓ %s\n", result.Scenario)
		return nil
	}

	fmt.Fprintf(formatter.Writer, "✗ %s\n", result.Scenario)
	for _, msg := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s\n", msg)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", result.Scenario))
}
