package idling

import (
	"log/slog"
	"sync"

	"github.com/calmloop/settle/internal/looper"
)

// Registry holds the currently registered resources and secondary loops and
// reconciles the live proxy set on every Sync.
//
// Registration may happen from any goroutine; the returned proxy set is only
// ever consumed on the control goroutine between waits.
type Registry struct {
	mu        sync.Mutex
	resources []Resource
	loops     []*looper.Loop
	proxies   map[string]*resourceProxy
	spawn     func(func())
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{proxies: make(map[string]*resourceProxy)}
}

// Register adds a resource. Duplicate names are tolerated here and reported
// when Sync reconciles; the first registration wins. Resources must be
// comparable, since reconciliation is by instance identity.
func (r *Registry) Register(res Resource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources = append(r.resources, res)
}

// Deregister removes the first registration that is identity-equal to res.
// Returns false if res was not registered.
func (r *Registry) Deregister(res Resource) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, got := range r.resources {
		if got == res {
			r.resources = append(r.resources[:i], r.resources[i+1:]...)
			return true
		}
	}
	return false
}

// RegisterLoop adds a secondary loop to wait on.
func (r *Registry) RegisterLoop(l *looper.Loop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loops = append(r.loops, l)
}

// DeregisterLoop removes a secondary loop. Returns false if l was not
// registered.
func (r *Registry) DeregisterLoop(l *looper.Loop) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, got := range r.loops {
		if got == l {
			r.loops = append(r.loops[:i], r.loops[i+1:]...)
			return true
		}
	}
	return false
}

// Sync reconciles and returns the current proxy set.
//
// Named proxies persist across calls while the instance registered under
// their name is unchanged; a replaced instance drops the old proxy and a
// fresh one is built around the replacement. Loop proxies are transient: a
// fresh proxy per registered loop on every call, since they carry no state
// beyond the loop identity.
func (r *Registry) Sync() []Proxy {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Name -> resource, first registration wins, later ones reported.
	byName := make(map[string]Resource, len(r.resources))
	for _, res := range r.resources {
		name := res.Name()
		if _, ok := byName[name]; ok {
			slog.Warn("duplicate idling resource ignored", "resource", name)
			continue
		}
		byName[name] = res
	}

	// Drop proxies whose name is gone or whose instance was replaced.
	for name, p := range r.proxies {
		if res, ok := byName[name]; !ok || res != p.res {
			delete(r.proxies, name)
		}
	}

	// Wrap names not yet represented.
	for name, res := range byName {
		if _, ok := r.proxies[name]; !ok {
			r.proxies[name] = newResourceProxy(res)
		}
	}

	out := make([]Proxy, 0, len(r.proxies)+len(r.loops))
	for _, p := range r.proxies {
		out = append(out, p)
	}
	for _, l := range r.loops {
		out = append(out, newLoopProxy(l, r.spawn))
	}
	return out
}
