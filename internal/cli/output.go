package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes reported by the settle binary. Harness scripts branch on
// these, so "the scenario failed" and "the command could not run" stay
// distinct codes.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Domain failure (scenario failed, validation errors, idle timeout)
	ExitCommandError = 2 // Command error (invalid paths, database not found, etc.)
)

// ExitError carries the exit code a command wants the process to report.
// Commands return it from RunE instead of calling os.Exit, so main stays
// the only place that terminates the process.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string
	Err     error // optional cause
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to an existing error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error returned by a command to a process exit code.
// Anything that is not an ExitError counts as a plain failure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as human-readable text or as a
// single JSON object, per the --format flag. Verbose diagnostics go to
// ErrWriter so JSON on Writer stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; falls back to Writer when nil
	Verbose   bool
}

// CLIResponse is the envelope every command emits in JSON mode.
type CLIResponse struct {
	Status string      `json:"status"`         // "ok" or "error"
	Data   interface{} `json:"data,omitempty"` // command-specific payload
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError describes a failure inside a JSON response. Code is either a
// numeric loader/scene code (E005, E108) or a command code such as
// E_SCENARIO_FAILED.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success emits data in the configured format. In JSON mode the payload
// is wrapped in a status:ok envelope; commands render their own text, so
// the text branch just prints the value.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format != "json" {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error emits a failure in the configured format. The text form is a
// single "Error [CODE]: message" line; details show only with verbose.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a diagnostic line when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
