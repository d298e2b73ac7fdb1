package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSceneFile drops CUE content into a temp dir and returns the path.
func writeSceneFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const twoSceneFile = `
scene: pad: {
	windows: [
		{ name: "pad", layer: "base", frame: { width: 400, height: 300 } },
	]
}
scene: desk: {
	windows: [
		{ name: "desk", layer: "base", frame: { width: 800, height: 600 } },
		{ name: "tray", layer: "panel", frame: { x: 10, y: 10, width: 100, height: 40 } },
	]
	loops: ["render"]
}
`

func TestLoad_SingleSceneUnnamed(t *testing.T) {
	path := writeSceneFile(t, `
		scene: solo: {
			windows: [
				{ name: "solo", layer: "base", frame: { width: 200, height: 200 } },
			]
			started: ["solo"]
		}
	`)

	s, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "solo", s.Name)
	require.Len(t, s.Windows, 1)
	assert.Equal(t, []string{"solo"}, s.Started)
}

func TestLoad_NamedScene(t *testing.T) {
	path := writeSceneFile(t, twoSceneFile)

	s, err := Load(path, "desk")
	require.NoError(t, err)

	assert.Equal(t, "desk", s.Name)
	assert.Len(t, s.Windows, 2)
	assert.Equal(t, []string{"render"}, s.Loops)
}

func TestLoad_NamedSceneNotFound(t *testing.T) {
	path := writeSceneFile(t, twoSceneFile)

	_, err := Load(path, "ghost")
	require.Error(t, err)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrMissingScene, verr.Code)
}

func TestLoad_MultipleScenesNeedName(t *testing.T) {
	path := writeSceneFile(t, twoSceneFile)

	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defines 2 scenes")
	assert.Contains(t, err.Error(), "name one")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene file not found")
}

func TestLoad_DirectoryPath(t *testing.T) {
	_, err := Load(t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene path is a directory")
}

func TestLoad_NoSceneRoot(t *testing.T) {
	path := writeSceneFile(t, `config: { retries: 3 }`)

	_, err := Load(path, "")
	require.Error(t, err)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrMissingScene, verr.Code)
	assert.Contains(t, err.Error(), "no scene definitions")
}

func TestLoadAll_DeclarationOrder(t *testing.T) {
	path := writeSceneFile(t, twoSceneFile)

	scenes, err := LoadAll(path)
	require.NoError(t, err)

	require.Len(t, scenes, 2)
	assert.Equal(t, "pad", scenes[0].Name)
	assert.Equal(t, "desk", scenes[1].Name)
}

func TestLoadAll_StopsAtBrokenScene(t *testing.T) {
	path := writeSceneFile(t, `
		scene: good: {
			windows: [
				{ name: "good", layer: "base", frame: { width: 100, height: 100 } },
			]
		}
		scene: broken: {
			windows: [
				{ name: "broken", layer: "base" },
			]
		}
	`)

	_, err := LoadAll(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame")
}

func TestLoadAll_NoScenes(t *testing.T) {
	path := writeSceneFile(t, `scene: {}`)

	_, err := LoadAll(path)
	require.Error(t, err)

	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrMissingScene, verr.Code)
}
