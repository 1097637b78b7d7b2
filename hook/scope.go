// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

package hook

// Scope owns the handles attached during one unit of work.
//
//	var s hook.Scope
//	defer s.Close()
//	s.Add(model.RegisterForwardHook(layer, sink.Observe))
type Scope struct {
	handles []*Handle
}

// Add takes ownership of h and returns it.
func (s *Scope) Add(h *Handle) *Handle {
	s.handles = append(s.handles, h)
	return h
}

// Len returns the number of handles the scope still owns.
func (s *Scope) Len() int { return len(s.handles) }

// Close removes every owned handle, most recent first, and empties the scope.
// It is safe to call on every exit path and more than once.
func (s *Scope) Close() {
	for i := len(s.handles) - 1; i >= 0; i-- {
		s.handles[i].Remove()
	}
	s.handles = nil
}
