// Package tracefmt renders span lifecycle transitions and events from an
// external span registry into formatted text on pluggable writers.
//
// tracefmt is the output half of a tracing system: it owns no spans and
// allocates no identifiers. A registry collaborator calls the Subscriber's
// lifecycle hooks as spans are created, receive fields, are entered, exited
// and closed, and the Subscriber turns those transitions into rendered
// lines according to its configuration.
//
// Core Components:.
//   - Subscriber: receives lifecycle hooks and drives formatting.
//   - FormatEvent / FormatFields: pluggable event and field renderers.
//   - MakeWriter: pluggable sink selection, optionally per event metadata.
//   - FmtContext: read-only span-ancestry view handed to event formatters.
//
// Basic Usage:.
//
//	sub, err := tracefmt.New().
//		WithSpanEvents(tracefmt.SpanEventsClose).
//		Build()
//	if err != nil {
//		// invalid configuration (e.g. two output presets)
//	}
//
//	// The registry invokes the hooks; ctx wraps its lookup surface.
//	sub.OnNewSpan(attrs, id, ctx)
//	sub.OnEnter(id, ctx)
//	sub.OnExit(id, ctx)
//	sub.OnClose(id, ctx)
//
// Thread Safety:.
//
// A Subscriber is immutable after Build and safe for concurrent use from
// any number of goroutines. The registry guarantees lifecycle hooks for
// one span never run concurrently; cached per-span field text is
// additionally synchronized inside Extensions, because event formatters
// on other goroutines read it while record hooks append to it.
//
// Error Handling:.
//
// Hooks never return errors and never panic on render or write failures;
// the instrumented program must not be disrupted by its tracing path.
// Failures are optionally diagnosed on a fallback writer. The only fatal
// condition is a hook firing for a span the registry does not know, which
// is a registry bug and panics.
package tracefmt

// SpanID identifies a span within the registry that owns it.
// The zero value is never a valid span.
type SpanID uint64

// Field is a single structured key/value pair on a span or event.
type Field struct {
	Key   string
	Value any
}

// Metadata describes the static callsite data of a span or event.
// Metadata values are immutable once constructed.
type Metadata struct {
	Name   string
	Target string
	Level  Level
	File   string
	Line   int
}

// Event is a single point-in-time record. Synthesized lifecycle events
// borrow the originating span's Metadata and carry literal fields.
type Event struct {
	meta   *Metadata
	fields []Field
	parent SpanID // explicit parent span, 0 = contextual
}

// NewEvent returns an event with no explicit parent span; formatters
// resolve its span context from the registry's current span.
func NewEvent(meta *Metadata, fields []Field) *Event {
	return &Event{meta: meta, fields: fields}
}

// NewChildEvent returns an event explicitly parented to the given span.
func NewChildEvent(parent SpanID, meta *Metadata, fields []Field) *Event {
	return &Event{meta: meta, fields: fields, parent: parent}
}

// Metadata returns the event's static metadata.
func (e *Event) Metadata() *Metadata { return e.meta }

// Fields returns the event's fields. The returned slice must not be modified.
func (e *Event) Fields() []Field { return e.fields }

// Parent returns the explicit parent span, if the event has one.
func (e *Event) Parent() (SpanID, bool) { return e.parent, e.parent != 0 }

// Message returns the value of the "message" field, if present.
func (e *Event) Message() (string, bool) {
	for _, f := range e.fields {
		if f.Key == "message" {
			if s, ok := f.Value.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
