package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysResolvesText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewKeysCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"Hi!"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `"Hi!" resolves to 3 chord(s), 10 key event(s)`)
	assert.Contains(t, output, `"H"  shift + h`)
	assert.Contains(t, output, `"i"  i`)
	assert.Contains(t, output, `"!"  shift + 1`)
}

func TestKeysJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewKeysCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"Hi!"})

	err := cmd.Execute()
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)

	raw, err := json.Marshal(response.Data)
	require.NoError(t, err)
	var result KeysResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, "Hi!", result.Text)
	require.Len(t, result.Chords, 3)
	assert.Equal(t, "h", result.Chords[0].Code)
	assert.True(t, result.Chords[0].Shifted)
	assert.Equal(t, "i", result.Chords[1].Code)
	assert.False(t, result.Chords[1].Shifted)
	assert.Equal(t, "1", result.Chords[2].Code)
	assert.True(t, result.Chords[2].Shifted)
	assert.Equal(t, 10, result.Events)
}

func TestKeysUnmappedRune(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewKeysCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"café"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no key events for")
	assert.Contains(t, buf.String(), "E_UNMAPPED_RUNE")
}

func TestKeysNormalizesBeforeLookup(t *testing.T) {
	// Decomposed "e" + combining acute composes to a single rune, so the
	// failure names one rune rather than a stray combining mark.
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewKeysCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"café"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'é'")
}

func TestKeysHelpText(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewKeysCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "chord")
	assert.Contains(t, output, "shift")
	assert.Contains(t, output, "US layout")
}
