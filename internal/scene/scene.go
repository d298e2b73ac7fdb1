// Package scene compiles CUE scene definitions into the window topology,
// idling resources, and secondary loops a run is built from.
package scene

import (
	"fmt"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/calmloop/settle/internal/display"
)

// Scene is a compiled scene definition.
type Scene struct {
	Name      string     `json:"name"`
	Windows   []Window   `json:"windows"`
	Started   []string   `json:"started,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
	Loops     []string   `json:"loops,omitempty"`
}

// Window is one window declaration. Layer and Flags stay strings here so
// Validate can check them against the display vocabulary and report every
// problem at once.
type Window struct {
	Name  string   `json:"name"`
	App   string   `json:"app,omitempty"`
	Layer string   `json:"layer"`
	Frame Frame    `json:"frame"`
	Flags []string `json:"flags,omitempty"`
}

// Frame is a window's position and size in display coordinates.
type Frame struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Resource is one named idling resource declaration.
type Resource struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Idle is the initial state for gates. Counters ignore it.
	Idle bool `json:"idle"`
}

// Resource kinds.
const (
	KindCounter = "counter"
	KindGate    = "gate"
)

// ResolvedLayer returns the parsed layer. Only meaningful after Validate.
func (w Window) ResolvedLayer() display.Layer {
	l, _ := display.ParseLayer(w.Layer)
	return l
}

// ResolvedFlags returns the parsed flag set. Only meaningful after Validate.
func (w Window) ResolvedFlags() display.Flags {
	var flags display.Flags
	for _, name := range w.Flags {
		if f, ok := display.ParseFlag(name); ok {
			flags |= f
		}
	}
	return flags
}

// Params returns the window's layout params for the display stage.
func (w Window) Params() display.Params {
	return display.Params{
		X:     w.Frame.X,
		Y:     w.Frame.Y,
		Layer: w.ResolvedLayer(),
		Flags: w.ResolvedFlags(),
		App:   w.App,
	}
}

// Compile parses a CUE value into a Scene.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the scene struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`scene: editor: { ... }`)
//	s, err := scene.Compile(v.LookupPath(cue.ParsePath("scene.editor")))
//
// Compile reports structural problems (missing fields, wrong types) with
// source positions. Vocabulary problems are Validate's job.
func Compile(v cue.Value) (*Scene, error) {
	if !v.Exists() {
		return nil, ValidationError{
			Field:   "scene",
			Message: "scene definition not found",
			Code:    ErrMissingScene,
		}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &Scene{}

	// The scene name defaults to the struct label.
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		s.Name = labels[len(labels)-1].String()
	}
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		s.Name = name
	}

	var err error
	s.Windows, err = parseWindows(v)
	if err != nil {
		return nil, err
	}
	if len(s.Windows) == 0 {
		return nil, &CompileError{
			Field:   "windows",
			Message: "at least one window is required",
			Pos:     v.Pos(),
		}
	}

	s.Started, err = parseStringList(v, "started")
	if err != nil {
		return nil, err
	}

	s.Resources, err = parseResources(v)
	if err != nil {
		return nil, err
	}

	s.Loops, err = parseStringList(v, "loops")
	if err != nil {
		return nil, err
	}

	return s, nil
}

// parseWindows extracts the window list.
func parseWindows(v cue.Value) ([]Window, error) {
	var windows []Window

	winVal := v.LookupPath(cue.ParsePath("windows"))
	if !winVal.Exists() {
		return windows, nil
	}

	iter, err := winVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		w, err := parseWindow(iter.Value())
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}

	return windows, nil
}

// parseWindow extracts a single window declaration.
func parseWindow(v cue.Value) (Window, error) {
	var w Window

	name, err := requiredString(v, "name")
	if err != nil {
		return w, err
	}
	w.Name = name

	appVal := v.LookupPath(cue.ParsePath("app"))
	if appVal.Exists() {
		app, err := appVal.String()
		if err != nil {
			return w, formatCUEError(err)
		}
		w.App = app
	}

	w.Layer, err = requiredString(v, "layer")
	if err != nil {
		return w, err
	}

	// A base window belongs to an app; default to the window's own name.
	if w.Layer == display.LayerBase.String() && w.App == "" {
		w.App = w.Name
	}

	frameVal := v.LookupPath(cue.ParsePath("frame"))
	if !frameVal.Exists() {
		return w, &CompileError{
			Field:   fmt.Sprintf("windows.%s.frame", name),
			Message: "frame is required",
			Pos:     v.Pos(),
		}
	}
	w.Frame, err = parseFrame(frameVal)
	if err != nil {
		return w, err
	}

	flagsVal := v.LookupPath(cue.ParsePath("flags"))
	if flagsVal.Exists() {
		iter, err := flagsVal.List()
		if err != nil {
			return w, formatCUEError(err)
		}
		for iter.Next() {
			flag, err := iter.Value().String()
			if err != nil {
				return w, formatCUEError(err)
			}
			w.Flags = append(w.Flags, flag)
		}
	}

	return w, nil
}

// parseFrame extracts a frame. x and y default to 0.
func parseFrame(v cue.Value) (Frame, error) {
	var f Frame

	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"x", &f.X},
		{"y", &f.Y},
	} {
		fv := v.LookupPath(cue.ParsePath(field.name))
		if !fv.Exists() {
			continue
		}
		n, err := fv.Int64()
		if err != nil {
			return f, formatCUEError(err)
		}
		*field.dst = int(n)
	}

	width, err := requiredInt(v, "width")
	if err != nil {
		return f, err
	}
	f.Width = width

	height, err := requiredInt(v, "height")
	if err != nil {
		return f, err
	}
	f.Height = height

	return f, nil
}

// parseResources extracts the resource list.
func parseResources(v cue.Value) ([]Resource, error) {
	var resources []Resource

	resVal := v.LookupPath(cue.ParsePath("resources"))
	if !resVal.Exists() {
		return resources, nil
	}

	iter, err := resVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		rv := iter.Value()
		var r Resource

		r.Name, err = requiredString(rv, "name")
		if err != nil {
			return nil, err
		}
		r.Kind, err = requiredString(rv, "kind")
		if err != nil {
			return nil, err
		}

		// Gates start idle unless the scene says otherwise.
		r.Idle = true
		idleVal := rv.LookupPath(cue.ParsePath("idle"))
		if idleVal.Exists() {
			idle, err := idleVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			r.Idle = idle
		}

		resources = append(resources, r)
	}

	return resources, nil
}

// parseStringList extracts an optional list of strings at the given path.
func parseStringList(v cue.Value, field string) ([]string, error) {
	var out []string

	listVal := v.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return out, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}

	return out, nil
}

// requiredString reads a required string field.
func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// requiredInt reads a required integer field.
func requiredInt(v cue.Value, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

// CompileError represents a scene extraction error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
