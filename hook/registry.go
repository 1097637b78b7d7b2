// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

// Package hook implements observer registration for module execution.
//
// A Registry maps a module (a Site) to ordered lists of observers, one list
// per pass direction. Registration returns a Handle; removing the handle is
// the only way to detach an observer. Scope groups handles so that a caller
// can release everything it attached with a single deferred Close, which is
// how every instrumented call in this module guarantees that no observer
// outlives the call that installed it.
package hook

import (
	"sync"

	"github.com/fumi-engineer/saliency/tensor"
	"github.com/google/uuid"
)

// Kind selects the pass an observer is attached to.
type Kind uint8

const (
	Forward Kind = iota
	Backward
)

// String returns "forward" or "backward".
func (k Kind) String() string {
	if k == Backward {
		return "backward"
	}
	return "forward"
}

// Site is anything observers can be attached to. Module trees in package nn
// satisfy it; identity is the interface value itself, so sites must be
// comparable (pointer types in practice).
type Site interface {
	Type() string
}

// Func observes one module execution.
//
// On the forward pass in holds the module input and out its output. Forward
// observers may modify out in place; the modified values are what the rest
// of the pass sees.
//
// On the backward pass in holds the gradient with respect to the module
// input and out the gradient with respect to its output. Backward gradients
// are reported in visit order: the position axis runs last to first.
type Func func(site Site, in, out []*tensor.Tensor)

type entry struct {
	id uuid.UUID
	fn Func
}

type key struct {
	kind Kind
	site Site
}

// Registry holds the observers attached to the modules of one model.
type Registry struct {
	mu       sync.Mutex
	entries  map[key][]entry
	attached int
	detached int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[key][]entry)}
}

// Register attaches fn to site for the given pass and returns its handle.
func (r *Registry) Register(kind Kind, site Site, fn Func) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &Handle{ID: uuid.New(), Kind: kind, Site: site, reg: r}
	k := key{kind, site}
	r.entries[k] = append(r.entries[k], entry{id: h.ID, fn: fn})
	r.attached++
	return h
}

// Fire invokes every observer attached to site for the given pass, in
// registration order. Observers registered or removed while firing take
// effect on the next call.
func (r *Registry) Fire(kind Kind, site Site, in, out []*tensor.Tensor) {
	r.mu.Lock()
	list := r.entries[key{kind, site}]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	r.mu.Unlock()

	for _, e := range snapshot {
		e.fn(site, in, out)
	}
}

// Attached returns how many observers were ever registered.
func (r *Registry) Attached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// Detached returns how many observers were removed.
func (r *Registry) Detached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}

// Active returns the number of observers currently attached.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, list := range r.entries {
		n += len(list)
	}
	return n
}

func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{h.Kind, h.Site}
	list := r.entries[k]
	for i, e := range list {
		if e.id == h.ID {
			list = append(list[:i:i], list[i+1:]...)
			r.detached++
			break
		}
	}
	if len(list) == 0 {
		delete(r.entries, k)
	} else {
		r.entries[k] = list
	}
}

// Handle is the receipt for one registered observer.
type Handle struct {
	ID   uuid.UUID
	Kind Kind
	Site Site

	reg  *Registry
	once sync.Once
}

// Remove detaches the observer. Calling it more than once is a no-op.
func (h *Handle) Remove() {
	if h == nil || h.reg == nil {
		return
	}
	h.once.Do(func() { h.reg.remove(h) })
}
