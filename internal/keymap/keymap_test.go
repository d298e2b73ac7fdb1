package keymap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmloop/settle/internal/event"
)

func TestLookup_Letters(t *testing.T) {
	ch, ok := Lookup('a')
	require.True(t, ok)
	assert.Equal(t, Chord{Code: event.CodeA}, ch)

	ch, ok = Lookup('Z')
	require.True(t, ok)
	assert.Equal(t, Chord{Code: event.CodeZ, Shifted: true}, ch)
}

func TestLookup_DigitsAndSymbols(t *testing.T) {
	ch, ok := Lookup('7')
	require.True(t, ok)
	assert.Equal(t, Chord{Code: event.Code7}, ch)

	ch, ok = Lookup('&')
	require.True(t, ok)
	assert.Equal(t, Chord{Code: event.Code7, Shifted: true}, ch)

	ch, ok = Lookup('?')
	require.True(t, ok)
	assert.Equal(t, Chord{Code: event.CodeSlash, Shifted: true}, ch)

	_, ok = Lookup('€')
	assert.False(t, ok)
}

func TestEvents_Unshifted(t *testing.T) {
	got, err := Events("ok")
	require.NoError(t, err)

	want := []event.Key{
		{Action: event.KeyDown, Code: event.CodeO},
		{Action: event.KeyUp, Code: event.CodeO},
		{Action: event.KeyDown, Code: event.CodeK},
		{Action: event.KeyUp, Code: event.CodeK},
	}
	assert.Equal(t, want, got)
}

func TestEvents_ShiftedRuneIsWrappedInShift(t *testing.T) {
	got, err := Events("A")
	require.NoError(t, err)

	want := []event.Key{
		{Action: event.KeyDown, Code: event.CodeShift},
		{Action: event.KeyDown, Code: event.CodeA, Meta: event.MetaShift},
		{Action: event.KeyUp, Code: event.CodeA, Meta: event.MetaShift},
		{Action: event.KeyUp, Code: event.CodeShift},
	}
	assert.Equal(t, want, got)
}

func TestEvents_WhitespaceKeys(t *testing.T) {
	got, err := Events(" \n")
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, event.CodeSpace, got[0].Code)
	assert.Equal(t, event.CodeEnter, got[2].Code)
}

func TestEvents_TimestampsLeftZero(t *testing.T) {
	got, err := Events("x")
	require.NoError(t, err)

	for _, k := range got {
		assert.Zero(t, k.EventTime, "the injector stamps events, not the keymap")
		assert.Zero(t, k.DownTime)
	}
}

func TestEvents_UnmappableRune_Fails(t *testing.T) {
	_, err := Events("ab€")
	require.Error(t, err)

	var unmapped *UnmappedError
	require.True(t, errors.As(err, &unmapped))
	assert.Equal(t, '€', unmapped.Rune)
	assert.Equal(t, 2, unmapped.Pos)
	assert.Contains(t, unmapped.Error(), "'€'")
}

func TestEvents_NormalizesBeforeLookup(t *testing.T) {
	// Decomposed e + combining acute composes to a single é under NFC, so
	// the failure reports one composed rune, not the combining mark.
	_, err := Events("é")
	require.Error(t, err)

	var unmapped *UnmappedError
	require.True(t, errors.As(err, &unmapped))
	assert.Equal(t, 'é', unmapped.Rune)
	assert.Equal(t, 0, unmapped.Pos)
}

func TestEvents_EmptyText(t *testing.T) {
	got, err := Events("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
