// Package display models the simulated window stack: layout parameters,
// window views, the source that snapshots them, and the router that decides
// which window observes an injected input event.
package display

import (
	"github.com/calmloop/settle/internal/event"
)

// Layer is a window's z-class. Higher layers are tried first during routing.
type Layer int32

const (
	// LayerBase is a base application window. Base windows route input only
	// while their owning app is started; a background app's base window is
	// filtered out of every snapshot.
	LayerBase Layer = 1
	// LayerApplication is a regular application window (dialogs, popups).
	LayerApplication Layer = 2
	// LayerPanel is an application panel attached above its app windows.
	LayerPanel Layer = 1000
	// LayerOverlay is a system overlay above all application layers.
	LayerOverlay Layer = 2000
)

var layerNames = map[Layer]string{
	LayerBase:        "base",
	LayerApplication: "application",
	LayerPanel:       "panel",
	LayerOverlay:     "overlay",
}

var layersByName = map[string]Layer{
	"base":        LayerBase,
	"application": LayerApplication,
	"panel":       LayerPanel,
	"overlay":     LayerOverlay,
}

func (l Layer) String() string {
	if n, ok := layerNames[l]; ok {
		return n
	}
	return "unknown"
}

// ParseLayer resolves a scene-level layer name.
func ParseLayer(name string) (Layer, bool) {
	l, ok := layersByName[name]
	return l, ok
}

// Flags are the boolean layout attributes that drive routing.
type Flags uint32

const (
	// FlagNotFocusable excludes the window from key routing.
	FlagNotFocusable Flags = 1 << iota
	// FlagNotTouchable excludes the window from pointer routing.
	FlagNotTouchable
	// FlagNotTouchModal lets pointer events outside the window's bounds fall
	// through to windows below it.
	FlagNotTouchModal
	// FlagWatchOutsideTouch asks for an outside notification when a press
	// lands outside the window's bounds.
	FlagWatchOutsideTouch
)

var flagNames = map[Flags]string{
	FlagNotFocusable:      "not_focusable",
	FlagNotTouchable:      "not_touchable",
	FlagNotTouchModal:     "not_touch_modal",
	FlagWatchOutsideTouch: "watch_outside_touch",
}

var flagsByName = map[string]Flags{
	"not_focusable":       FlagNotFocusable,
	"not_touchable":       FlagNotTouchable,
	"not_touch_modal":     FlagNotTouchModal,
	"watch_outside_touch": FlagWatchOutsideTouch,
}

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Names returns the set flag names, in declaration order.
func (f Flags) Names() []string {
	var out []string
	for _, bit := range []Flags{FlagNotFocusable, FlagNotTouchable, FlagNotTouchModal, FlagWatchOutsideTouch} {
		if f.Has(bit) {
			out = append(out, flagNames[bit])
		}
	}
	return out
}

// ParseFlag resolves a scene-level flag name.
func ParseFlag(name string) (Flags, bool) {
	f, ok := flagsByName[name]
	return f, ok
}

// Params are the layout parameters of one window: its offset on the display,
// its z-class, its routing flags, and the app identity that owns it.
type Params struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Layer Layer  `json:"layer"`
	Flags Flags  `json:"flags"`
	App   string `json:"app,omitempty"`
}

// View is the opaque handle to one window's content. Routing needs its name
// for reporting, its size for bounds checks, and its dispatch entry points.
//
// Dispatch errors are transient injection failures: the caller decides
// whether to retry (key events during text injection) or fail.
type View interface {
	Name() string
	Size() (w, h int)
	DispatchPointer(event.Pointer) error
	DispatchKey(event.Key) error
}

// Source supplies the window topology for one routing snapshot: the view
// list, the parallel layout-params list (equal length required), and the set
// of started app identities.
type Source interface {
	Views() []View
	Params() []Params
	StartedApps() map[string]struct{}
}

// Delivery records one routed event hitting one window. Pointer deliveries
// carry window-local coordinates; key deliveries carry the key code.
type Delivery struct {
	Window string  `json:"window"`
	Action string  `json:"action"`
	Code   string  `json:"code,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}
