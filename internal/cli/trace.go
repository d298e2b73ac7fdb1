package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calmloop/settle/internal/driver"
	"github.com/calmloop/settle/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Token    string
	Window   string
	Kind     string
	Outcome  string
}

// TraceResult holds the trace query output.
type TraceResult struct {
	Injections []driver.InjectionRecord `json:"injections"`
	Waits      []driver.WaitRecord      `json:"waits"`
	Stats      TraceStats               `json:"stats"`
}

// TraceStats holds summary statistics for the queried records.
type TraceStats struct {
	Injections int `json:"injections"`
	Deliveries int `json:"deliveries"`
	Waits      int `json:"waits"`
	TimedOut   int `json:"timed_out"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query a recorded journal",
		Long: `Query the injection journal written by a run.

Shows every injection with its deliveries nested under it, every wait with
its convergence pass count, and summary statistics. Filters narrow by
injection token, delivery window, kind, or outcome.

Examples:
  settle trace --db ./run.db
  settle trace --db ./run.db --token tok-0001
  settle trace --db ./run.db --window dialog --kind pointer
  settle trace --db ./run.db --outcome idle_timeout --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "filter to one injection token")
	cmd.Flags().StringVar(&opts.Window, "window", "", "filter to injections that delivered to a window")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by injection kind: pointer, key, text")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "filter by outcome, e.g. ok, idle_timeout")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	// Open would create a fresh database at a mistyped path, so check first.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	injections, err := j.ReadInjections(ctx, journal.Filter{
		Token:   opts.Token,
		Kind:    opts.Kind,
		Outcome: opts.Outcome,
		Window:  opts.Window,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read injections", err)
	}

	// Wait kinds are not injection kinds, so only token and outcome carry
	// over to the waits query.
	waits, err := j.ReadWaits(ctx, journal.WaitFilter{
		Token:   opts.Token,
		Outcome: opts.Outcome,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read waits", err)
	}

	if injections == nil {
		injections = []driver.InjectionRecord{}
	}
	if waits == nil {
		waits = []driver.WaitRecord{}
	}

	result := TraceResult{
		Injections: injections,
		Waits:      waits,
		Stats:      buildTraceStats(injections, waits),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, opts, result)
}

// buildTraceStats summarizes the queried records.
func buildTraceStats(injections []driver.InjectionRecord, waits []driver.WaitRecord) TraceStats {
	stats := TraceStats{
		Injections: len(injections),
		Waits:      len(waits),
	}
	for _, inj := range injections {
		stats.Deliveries += len(inj.Deliveries)
		if inj.Outcome == driver.OutcomeIdleTimeout {
			stats.TimedOut++
		}
	}
	for _, wt := range waits {
		if wt.Outcome == driver.OutcomeIdleTimeout {
			stats.TimedOut++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, opts *TraceOptions, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Journal: %s\n", opts.Database)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Injections ===")
	if len(result.Injections) == 0 {
		fmt.Fprintln(w, "  (no injections)")
	} else {
		for _, inj := range result.Injections {
			formatInjection(w, inj)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Waits ===")
	if len(result.Waits) == 0 {
		fmt.Fprintln(w, "  (no waits)")
	} else {
		for _, wt := range result.Waits {
			formatWait(w, wt)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Injections: %d\n", result.Stats.Injections)
	fmt.Fprintf(w, "  Deliveries: %d\n", result.Stats.Deliveries)
	fmt.Fprintf(w, "  Waits:      %d\n", result.Stats.Waits)
	fmt.Fprintf(w, "  Timed Out:  %d\n", result.Stats.TimedOut)

	return nil
}

// formatInjection prints one injection with its deliveries nested under it.
func formatInjection(w io.Writer, inj driver.InjectionRecord) {
	line := fmt.Sprintf("  [%d] %s %s %s -> %s", inj.Seq, inj.Token, inj.Kind, inj.Detail, inj.Outcome)
	if inj.Error != "" {
		line += fmt.Sprintf(" (%s)", inj.Error)
	}
	fmt.Fprintln(w, line)

	for _, d := range inj.Deliveries {
		if d.Code != "" {
			fmt.Fprintf(w, "  [%d]   %s <- %s %s\n", d.Seq, d.Window, d.Action, d.Code)
		} else {
			fmt.Fprintf(w, "  [%d]   %s <- %s (%g,%g)\n", d.Seq, d.Window, d.Action, d.X, d.Y)
		}
	}
}

// formatWait prints one wait record.
func formatWait(w io.Writer, wt driver.WaitRecord) {
	line := fmt.Sprintf("  [%d] wait %s -> %s (%d passes)", wt.Seq, wt.Kind, wt.Outcome, wt.Passes)
	if len(wt.Stalled) > 0 {
		line += " stalled: " + strings.Join(wt.Stalled, ", ")
	}
	fmt.Fprintln(w, line)
}
