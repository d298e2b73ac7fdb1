package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/calmloop/settle/internal/keymap"
)

// KeysResult holds the chord breakdown for one text.
type KeysResult struct {
	Text   string     `json:"text"`
	Chords []KeyChord `json:"chords"`
	Events int        `json:"events"`
}

// KeyChord is one rune's resolved chord.
type KeyChord struct {
	Rune    string `json:"rune"`
	Code    string `json:"code"`
	Shifted bool   `json:"shifted,omitempty"`
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys <text>",
		Short: "Show the key chords for a text",
		Long: `Show how text translates to key chords on the US layout.

Each rune resolves to a physical key plus shift state; a shifted chord
injects four key events (shift down, key down, key up, shift up) instead of
two. Text that needs an unavailable key fails, the same way a text step
would.

Examples:
  settle keys "Hello, world"
  settle keys 'Hi!' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runKeys(opts *RootOptions, text string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Same normalization the text injector applies before lookup.
	normalized := norm.NFC.String(text)

	result := KeysResult{Text: normalized}
	for _, r := range normalized {
		ch, ok := keymap.Lookup(r)
		if !ok {
			msg := fmt.Sprintf("no key events for %q", r)
			_ = formatter.Error("E_UNMAPPED_RUNE", msg, nil)
			return NewExitError(ExitFailure, msg)
		}
		result.Chords = append(result.Chords, KeyChord{
			Rune:    string(r),
			Code:    ch.Code.String(),
			Shifted: ch.Shifted,
		})
		if ch.Shifted {
			result.Events += 4
		} else {
			result.Events += 2
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "%q resolves to %d chord(s), %d key event(s)\n",
		normalized, len(result.Chords), result.Events)
	for _, ch := range result.Chords {
		desc := ch.Code
		if ch.Shifted {
			desc = "shift + " + ch.Code
		}
		fmt.Fprintf(formatter.Writer, "  %q  %s\n", ch.Rune, desc)
	}
	return nil
}
