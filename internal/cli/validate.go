package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/calmloop/settle/internal/scene"
)

// ValidationResult holds validation findings across the given scene files.
type ValidationResult struct {
	Valid    bool                    `json:"valid"`
	Files    int                     `json:"files"`
	Scenes   int                     `json:"scenes"`
	Errors   []scene.ValidationError `json:"errors,omitempty"`
	Warnings []scene.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene-path>...",
		Short: "Validate scene files without running anything",
		Long: `Validate CUE scene files against the display vocabulary.

Each path may be a single .cue file or a directory to walk. Every scene in
every file is compiled and checked. Warnings are reported but do not fail
the command.

Example:
  settle validate ./scenes
  settle validate scenes/editor.cue scenes/dialog.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	var files []string
	for _, path := range paths {
		resolved, err := ResolveScenePaths(path)
		if err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
			}
			return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
		files = append(files, resolved...)
	}

	result := ValidationResult{Files: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)

		scenes, err := LoadScenes(file)
		if err != nil {
			// A file that does not extract still counts against the run,
			// reported with position info where CUE provides it.
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				result.Errors = append(result.Errors, scene.ValidationError{
					Field:   "load",
					Message: loadErr.Message,
					Code:    loadErr.Code,
					Line:    lineFromPos(loadErr.Pos),
				})
			} else {
				result.Errors = append(result.Errors, scene.ValidationError{
					Field:   "load",
					Message: err.Error(),
					Code:    ErrCodeGeneric,
				})
			}
			continue
		}

		for _, s := range scenes {
			formatter.VerboseLog("Validating scene: %s", s.Name)
			findings := scene.Validate(s)
			result.Errors = append(result.Errors, scene.Errors(findings)...)
			result.Warnings = append(result.Warnings, scene.Warnings(findings)...)
			result.Scenes++
		}
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

// lineFromPos extracts a line number from a CUE position.
func lineFromPos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All scenes valid (%d scene(s) in %d file(s))\n", result.Scenes, result.Files)
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s: %s: %s\n", w.Code, w.Field, w.Message)
	}
	return nil
}

// outputValidateError outputs a single path or scan error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Path and scan problems are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs the collected findings.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range result.Errors {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  warning %s: %s: %s\n", w.Code, w.Field, w.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
