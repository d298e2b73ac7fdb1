package display

import (
	"fmt"
	"sync"

	"github.com/calmloop/settle/internal/event"
)

// Stage is the simulated window manager: it owns the window list, the
// parallel params list, and the set of started apps, and serves as the
// Source for routing snapshots.
//
// Windows keep their insertion order; a later AddWindow stacks above an
// earlier one within the same layer.
type Stage struct {
	mu      sync.Mutex
	views   []View
	params  []Params
	started map[string]struct{}
}

// NewStage creates an empty stage.
func NewStage() *Stage {
	return &Stage{started: make(map[string]struct{})}
}

// AddWindow appends a window and its layout params.
func (st *Stage) AddWindow(v View, p Params) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.views = append(st.views, v)
	st.params = append(st.params, p)
}

// RemoveWindow drops the first window with the given name. Returns false if
// no window matches.
func (st *Stage) RemoveWindow(name string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	for i, v := range st.views {
		if v.Name() == name {
			st.views = append(st.views[:i], st.views[i+1:]...)
			st.params = append(st.params[:i], st.params[i+1:]...)
			return true
		}
	}
	return false
}

// Start marks an app identity as started; its base windows join routing.
func (st *Stage) Start(app string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.started[app] = struct{}{}
}

// Stop removes an app identity from the started set.
func (st *Stage) Stop(app string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.started, app)
}

// Views implements Source.
func (st *Stage) Views() []View {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]View, len(st.views))
	copy(out, st.views)
	return out
}

// Params implements Source.
func (st *Stage) Params() []Params {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Params, len(st.params))
	copy(out, st.params)
	return out
}

// StartedApps implements Source.
func (st *Stage) StartedApps() map[string]struct{} {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]struct{}, len(st.started))
	for app := range st.started {
		out[app] = struct{}{}
	}
	return out
}

// SimView is a scripted window view: it records every delivered event, can
// reject a set number of dispatches to exercise retry paths, and can run a
// hook on delivery (scenario runners use the hook to post follow-up work to
// loops).
type SimView struct {
	name   string
	width  int
	height int

	mu        sync.Mutex
	pointers  []event.Pointer
	keys      []event.Key
	rejects   int
	onPointer func(event.Pointer)
	onKey     func(event.Key)
}

// NewSimView creates a view with the given name and size.
func NewSimView(name string, width, height int) *SimView {
	return &SimView{name: name, width: width, height: height}
}

// Name implements View.
func (v *SimView) Name() string {
	return v.name
}

// Size implements View.
func (v *SimView) Size() (int, int) {
	return v.width, v.height
}

// RejectNext makes the next n dispatches fail.
func (v *SimView) RejectNext(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejects = n
}

// OnPointer installs a hook invoked after each recorded pointer delivery.
func (v *SimView) OnPointer(fn func(event.Pointer)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onPointer = fn
}

// OnKey installs a hook invoked after each recorded key delivery.
func (v *SimView) OnKey(fn func(event.Key)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onKey = fn
}

// DispatchPointer implements View.
func (v *SimView) DispatchPointer(ev event.Pointer) error {
	v.mu.Lock()
	if v.rejects > 0 {
		v.rejects--
		v.mu.Unlock()
		return fmt.Errorf("view %s: pointer dispatch rejected", v.name)
	}
	v.pointers = append(v.pointers, ev)
	hook := v.onPointer
	v.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
	return nil
}

// DispatchKey implements View.
func (v *SimView) DispatchKey(ev event.Key) error {
	v.mu.Lock()
	if v.rejects > 0 {
		v.rejects--
		v.mu.Unlock()
		return fmt.Errorf("view %s: key dispatch rejected", v.name)
	}
	v.keys = append(v.keys, ev)
	hook := v.onKey
	v.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
	return nil
}

// Pointers returns the recorded pointer deliveries in order.
func (v *SimView) Pointers() []event.Pointer {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]event.Pointer, len(v.pointers))
	copy(out, v.pointers)
	return out
}

// Keys returns the recorded key deliveries in order.
func (v *SimView) Keys() []event.Key {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]event.Key, len(v.keys))
	copy(out, v.keys)
	return out
}
