package display

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/calmloop/settle/internal/event"
)

var (
	// ErrSourceMismatch reports view and params lists of different lengths.
	ErrSourceMismatch = errors.New("display: window views and layout params differ in length")
	// ErrEmptyStack reports that filtering left no window to target.
	ErrEmptyStack = errors.New("display: no windows to target")
)

// root is one window descriptor inside a snapshot: view, params, and the
// window's position in the source list. The index is only a sort tie-break.
type root struct {
	view   View
	params Params
	index  int
}

func (r root) touchable() bool {
	return !r.params.Flags.Has(FlagNotTouchable)
}

func (r root) focusable() bool {
	return !r.params.Flags.Has(FlagNotFocusable)
}

func (r root) touchModal() bool {
	return r.focusable() && !r.params.Flags.Has(FlagNotTouchModal)
}

func (r root) watchesOutside() bool {
	return !r.touchModal() && r.params.Flags.Has(FlagWatchOutsideTouch)
}

func (r root) touchInside(ev event.Pointer) bool {
	w, h := r.view.Size()
	return ev.X >= float64(r.params.X) && ev.X <= float64(r.params.X+w) &&
		ev.Y >= float64(r.params.Y) && ev.Y <= float64(r.params.Y+h)
}

// local translates ev into the window's coordinate space.
func (r root) local(ev event.Pointer) event.Pointer {
	return ev.Offset(float64(-r.params.X), float64(-r.params.Y))
}

// Stack is an ordered, filtered view of the current windows, valid for a
// single routing query.
type Stack struct {
	roots []root
}

// Snapshot builds a Stack from the source's current topology.
//
// The view and params lists are zipped (length mismatch is
// ErrSourceMismatch), base-layer windows of apps outside the started set are
// filtered out, and the survivors are sorted descending by (layer, index):
// higher z-classes first, later-added windows first within a class. An empty
// result is ErrEmptyStack.
func Snapshot(src Source) (*Stack, error) {
	views := src.Views()
	params := src.Params()
	if len(views) != len(params) {
		return nil, fmt.Errorf("%w: %d views, %d params", ErrSourceMismatch, len(views), len(params))
	}

	started := src.StartedApps()
	roots := make([]root, 0, len(views))
	for i := range views {
		r := root{view: views[i], params: params[i], index: i}
		if r.params.Layer == LayerBase {
			if _, ok := started[r.params.App]; !ok {
				continue
			}
		}
		roots = append(roots, r)
	}
	if len(roots) == 0 {
		return nil, ErrEmptyStack
	}

	sort.Slice(roots, func(i, j int) bool {
		if roots[i].params.Layer != roots[j].params.Layer {
			return roots[i].params.Layer > roots[j].params.Layer
		}
		return roots[i].index > roots[j].index
	})

	return &Stack{roots: roots}, nil
}

// Len returns the number of windows in the stack.
func (s *Stack) Len() int {
	return len(s.roots)
}

// Names returns the window names in routing order.
func (s *Stack) Names() []string {
	out := make([]string, len(s.roots))
	for i, r := range s.roots {
		out[i] = r.view.Name()
	}
	return out
}

// DispatchPointer routes ev to the touchable windows in stack order and
// returns the deliveries made.
//
// A candidate consumes the event if it is the last touchable window, or is
// touch-modal, or the event lands inside its bounds; the consuming window
// receives a copy translated into its local space and routing stops. Before
// that, every watch-outside window passed over by a pointer-down receives a
// translated copy with the action replaced by outside; scanning then
// continues toward lower windows. With no touchable window at all the event
// is silently dropped.
func (s *Stack) DispatchPointer(ev event.Pointer) ([]Delivery, error) {
	touchable := make([]root, 0, len(s.roots))
	for _, r := range s.roots {
		if r.touchable() {
			touchable = append(touchable, r)
		}
	}

	var made []Delivery
	for i, r := range touchable {
		if i == len(touchable)-1 || r.touchModal() || r.touchInside(ev) {
			local := r.local(ev)
			if err := r.view.DispatchPointer(local); err != nil {
				return made, err
			}
			made = append(made, Delivery{
				Window: r.view.Name(),
				Action: local.Action.String(),
				X:      local.X,
				Y:      local.Y,
			})
			slog.Debug("pointer consumed",
				"window", r.view.Name(),
				"action", local.Action,
				"x", local.X,
				"y", local.Y)
			return made, nil
		}

		if ev.Action == event.PointerDown && r.watchesOutside() {
			outside := r.local(ev.WithAction(event.PointerOutside))
			if err := r.view.DispatchPointer(outside); err != nil {
				return made, err
			}
			made = append(made, Delivery{
				Window: r.view.Name(),
				Action: outside.Action.String(),
				X:      outside.X,
				Y:      outside.Y,
			})
			slog.Debug("outside press notified", "window", r.view.Name())
		}
	}

	if len(made) == 0 {
		slog.Debug("pointer dropped, no touchable window", "action", ev.Action)
	}
	return made, nil
}

// DispatchKey routes ev to the first focusable window in stack order.
// Returns nil delivery when no window is focusable; the event is silently
// dropped and the call still succeeds.
func (s *Stack) DispatchKey(ev event.Key) (*Delivery, error) {
	for _, r := range s.roots {
		if !r.focusable() {
			continue
		}
		if err := r.view.DispatchKey(ev); err != nil {
			return nil, err
		}
		d := &Delivery{
			Window: r.view.Name(),
			Action: ev.Action.String(),
			Code:   ev.Code.String(),
		}
		slog.Debug("key consumed", "window", r.view.Name(), "action", ev.Action, "code", ev.Code)
		return d, nil
	}

	slog.Debug("key dropped, no focusable window", "code", ev.Code)
	return nil, nil
}
