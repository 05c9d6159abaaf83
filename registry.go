package tracefmt

import (
	"fmt"
	"sync"
)

// SpanData is the per-span view stored by the registry collaborator.
type SpanData interface {
	// ID returns the span's identifier.
	ID() SpanID

	// Metadata returns the span's static metadata.
	Metadata() *Metadata

	// Parent returns the parent span, if the span is not a root.
	Parent() (SpanID, bool)

	// Extensions returns the span's extension map, where subscribers
	// attach derived state. Destroyed together with the span.
	Extensions() *Extensions
}

// SpanLookup is the read surface the Subscriber consumes from the span
// registry.
//
// The registry must guarantee that lifecycle hooks for the same span never
// execute concurrently: all mutation of a span's Extensions happens inside
// one hook call under that exclusivity. The Subscriber relies on, but does
// not re-validate, this guarantee.
type SpanLookup interface {
	// Span returns the stored data for a span, if it exists.
	Span(id SpanID) (SpanData, bool)

	// Current returns the span the calling execution context is
	// currently inside, if any.
	Current() (SpanID, bool)
}

// Extensions is a typed key/value map attached to each span by its
// registry. Hooks mutate a span's extensions under the registry's
// per-span exclusivity, but event formatters on other goroutines read
// them at any time, so Extensions carries its own lock.
type Extensions struct {
	mu sync.RWMutex
	m  map[extensionKey]any
}

type extensionKey struct {
	kind string
}

// NewExtensions returns an empty extension map. Registry implementations
// call this once per span.
func NewExtensions() *Extensions {
	return &Extensions{}
}

// get returns the value stored under key, if any. The returned value may
// only be mutated in place from a lifecycle hook for the owning span, and
// only if no formatter ever reads it; state shared with formatters goes
// through withRead and withWrite instead.
func (e *Extensions) get(key extensionKey) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.m[key]
	return v, ok
}

// insert stores val under key, replacing any previous value.
func (e *Extensions) insert(key extensionKey, val any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.m == nil {
		e.m = make(map[extensionKey]any, 2)
	}
	e.m[key] = val
}

// withRead runs f with the value under key while holding the read lock.
// Formatters use this to snapshot state a hook may be appending to.
func (e *Extensions) withRead(key extensionKey, f func(any)) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.m[key]
	if ok {
		f(v)
	}
	return ok
}

// withWrite runs f with the value under key while holding the write lock.
// f must not call back into anything that takes this lock.
func (e *Extensions) withWrite(key extensionKey, f func(any)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.m[key]
	if ok {
		f(v)
	}
	return ok
}

// Context is the per-hook read handle into the registry. The registry
// passes one to every hook invocation.
type Context struct {
	lookup SpanLookup
}

// NewContext wraps a registry lookup surface for handing to hooks.
func NewContext(lookup SpanLookup) Context {
	return Context{lookup: lookup}
}

// Span returns the stored data for a span, if it exists.
func (c Context) Span(id SpanID) (SpanData, bool) {
	if c.lookup == nil {
		return nil, false
	}
	return c.lookup.Span(id)
}

// Exists reports whether a span with the given id is alive.
func (c Context) Exists(id SpanID) bool {
	_, ok := c.Span(id)
	return ok
}

// Current returns the span the calling execution context is inside, if any.
func (c Context) Current() (SpanID, bool) {
	if c.lookup == nil {
		return 0, false
	}
	return c.lookup.Current()
}

// mustSpan resolves a span that a lifecycle hook was fired for. Hooks are
// only invoked for live spans; a miss is a registry bug, not a recoverable
// condition.
func (c Context) mustSpan(id SpanID) SpanData {
	span, ok := c.Span(id)
	if !ok {
		panic(fmt.Sprintf("tracefmt: span %d not found, this is a registry bug", id))
	}
	return span
}

// Scope is a lazy walk over a span's ancestry, from the span itself up to
// the root. It is finite and not restartable: each span is yielded once.
type Scope struct {
	lookup SpanLookup
	next   SpanID
	ok     bool
}

// newScope starts an ancestry walk at the given span.
func newScope(lookup SpanLookup, leaf SpanID) *Scope {
	return &Scope{lookup: lookup, next: leaf, ok: leaf != 0}
}

// Next yields the next span, moving leaf to root.
func (s *Scope) Next() (SpanData, bool) {
	if !s.ok {
		return nil, false
	}
	span, found := s.lookup.Span(s.next)
	if !found {
		s.ok = false
		return nil, false
	}
	if parent, has := span.Parent(); has {
		s.next = parent
	} else {
		s.ok = false
	}
	return span, true
}

// FromRoot drains the walk and returns the same spans in root-to-leaf
// order. The receiver is exhausted afterwards.
func (s *Scope) FromRoot() *RootScope {
	var spans []SpanData
	for {
		span, ok := s.Next()
		if !ok {
			break
		}
		spans = append(spans, span)
	}
	return &RootScope{spans: spans}
}

// RootScope yields a span ancestry in root-to-leaf order.
type RootScope struct {
	spans []SpanData
}

// Next yields the next span, moving root to leaf.
func (s *RootScope) Next() (SpanData, bool) {
	if len(s.spans) == 0 {
		return nil, false
	}
	span := s.spans[len(s.spans)-1]
	s.spans = s.spans[:len(s.spans)-1]
	return span, true
}
