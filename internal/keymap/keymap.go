// Package keymap translates text into the key-event sequences a US-layout
// virtual keyboard would produce. Text injection goes through here once per
// call; runes the layout cannot produce fail the whole translation.
package keymap

import (
	"fmt"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/calmloop/settle/internal/event"
)

// Chord is the physical key (plus shift state) that produces one rune.
type Chord struct {
	Code    event.Code `json:"code"`
	Shifted bool       `json:"shifted,omitempty"`
}

// UnmappedError reports a rune the layout cannot produce.
type UnmappedError struct {
	Rune rune
	Pos  int // rune index in the normalized text
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("keymap: no key events for %q at rune %d", e.Rune, e.Pos)
}

// base maps directly typeable runes to their key.
var base = map[rune]event.Code{
	' ':  event.CodeSpace,
	'\n': event.CodeEnter,
	'\t': event.CodeTab,
	'`':  event.CodeGrave,
	'-':  event.CodeMinus,
	'=':  event.CodeEquals,
	'[':  event.CodeLeftBracket,
	']':  event.CodeRightBracket,
	'\\': event.CodeBackslash,
	';':  event.CodeSemicolon,
	'\'': event.CodeApostrophe,
	',':  event.CodeComma,
	'.':  event.CodePeriod,
	'/':  event.CodeSlash,
}

// shiftPairs maps shifted symbols to the unshifted rune on the same key.
var shiftPairs = map[rune]rune{
	'!': '1', '@': '2', '#': '3', '$': '4', '%': '5',
	'^': '6', '&': '7', '*': '8', '(': '9', ')': '0',
	'_': '-', '+': '=', '{': '[', '}': ']', '|': '\\',
	':': ';', '"': '\'', '<': ',', '>': '.', '?': '/',
	'~': '`',
}

func init() {
	for r := 'a'; r <= 'z'; r++ {
		base[r] = event.CodeA + event.Code(r-'a')
	}
	for r := '0'; r <= '9'; r++ {
		base[r] = event.Code0 + event.Code(r-'0')
	}
}

// Lookup resolves a single rune to its chord.
func Lookup(r rune) (Chord, bool) {
	if c, ok := base[r]; ok {
		return Chord{Code: c}, true
	}
	if lower := unicode.ToLower(r); lower != r {
		if c, ok := base[lower]; ok {
			return Chord{Code: c, Shifted: true}, true
		}
	}
	if unshifted, ok := shiftPairs[r]; ok {
		if c, ok := base[unshifted]; ok {
			return Chord{Code: c, Shifted: true}, true
		}
	}
	return Chord{}, false
}

// Events translates text into its flat key-event sequence.
//
// The text is NFC-normalized first, so decomposed input composes before
// lookup. Each unshifted rune becomes down/up; each shifted rune is wrapped
// in a shift press. Timestamps are left zero: the injector stamps every
// event at injection time.
func Events(text string) ([]event.Key, error) {
	normalized := norm.NFC.String(text)

	var out []event.Key
	pos := 0
	for _, r := range normalized {
		ch, ok := Lookup(r)
		if !ok {
			return nil, &UnmappedError{Rune: r, Pos: pos}
		}
		out = append(out, chordEvents(ch)...)
		pos++
	}
	return out, nil
}

func chordEvents(ch Chord) []event.Key {
	if !ch.Shifted {
		return []event.Key{
			{Action: event.KeyDown, Code: ch.Code},
			{Action: event.KeyUp, Code: ch.Code},
		}
	}
	return []event.Key{
		{Action: event.KeyDown, Code: event.CodeShift},
		{Action: event.KeyDown, Code: ch.Code, Meta: event.MetaShift},
		{Action: event.KeyUp, Code: ch.Code, Meta: event.MetaShift},
		{Action: event.KeyUp, Code: event.CodeShift},
	}
}
