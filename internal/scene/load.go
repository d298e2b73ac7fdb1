package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Load reads a CUE file and compiles the named scene out of it. Scenes live
// under the top-level "scene" struct; with name empty the file must define
// exactly one.
//
// Load only extracts. Callers run Validate and decide what to do with
// warnings.
func Load(path, name string) (*Scene, error) {
	scenes, err := sceneRoot(path)
	if err != nil {
		return nil, err
	}

	if name != "" {
		return Compile(scenes.LookupPath(cue.ParsePath(name)))
	}

	labels, err := sceneLabels(scenes)
	if err != nil {
		return nil, err
	}
	switch len(labels) {
	case 0:
		return nil, ValidationError{
			Field:   "scene",
			Message: fmt.Sprintf("no scene definitions in %s", path),
			Code:    ErrMissingScene,
		}
	case 1:
		return Compile(scenes.LookupPath(cue.ParsePath(labels[0])))
	default:
		return nil, fmt.Errorf("%s defines %d scenes (%v), name one", path, len(labels), labels)
	}
}

// LoadAll compiles every scene the file defines, in declaration order.
// Compilation stops at the first broken scene.
func LoadAll(path string) ([]*Scene, error) {
	scenes, err := sceneRoot(path)
	if err != nil {
		return nil, err
	}

	labels, err := sceneLabels(scenes)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ValidationError{
			Field:   "scene",
			Message: fmt.Sprintf("no scene definitions in %s", path),
			Code:    ErrMissingScene,
		}
	}

	out := make([]*Scene, 0, len(labels))
	for _, label := range labels {
		sc, err := Compile(scenes.LookupPath(cue.ParsePath(label)))
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// sceneRoot builds the file's CUE value and returns its top-level "scene"
// struct.
func sceneRoot(path string) (cue.Value, error) {
	var zero cue.Value

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return zero, fmt.Errorf("scene file not found: %s", path)
	}
	if err != nil {
		return zero, fmt.Errorf("access scene file: %w", err)
	}
	if info.IsDir() {
		return zero, fmt.Errorf("scene path is a directory: %s", path)
	}

	dir := filepath.Dir(path)
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{filepath.Base(path)}, cfg)
	if len(instances) == 0 {
		return zero, fmt.Errorf("no CUE instances loaded from %s", path)
	}

	inst := instances[0]
	if inst.Err != nil {
		return zero, fmt.Errorf("loading %s: %w", path, inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return zero, formatCUEError(err)
	}

	scenes := value.LookupPath(cue.ParsePath("scene"))
	if !scenes.Exists() {
		return zero, ValidationError{
			Field:   "scene",
			Message: fmt.Sprintf("no scene definitions in %s", path),
			Code:    ErrMissingScene,
		}
	}
	return scenes, nil
}

// sceneLabels lists the scene names the file defines, in declaration order.
func sceneLabels(scenes cue.Value) ([]string, error) {
	iter, err := scenes.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var labels []string
	for iter.Next() {
		labels = append(labels, iter.Selector().String())
	}
	return labels, nil
}
