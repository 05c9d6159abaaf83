package tracefmt

// FmtContext is the read-only view handed to an event formatter: the span
// ancestry of the event being formatted, lookup into the registry, and the
// field formatter configured on the Subscriber. It never mutates registry
// or span state.
type FmtContext struct {
	ctx       Context
	fmtFields FormatFields
	fieldsKey extensionKey
	event     *Event
}

// Event returns the event being formatted.
func (c *FmtContext) Event() *Event { return c.event }

// Span returns the stored data for a span, if it exists.
func (c *FmtContext) Span(id SpanID) (SpanData, bool) { return c.ctx.Span(id) }

// Exists reports whether a span with the given id is alive.
func (c *FmtContext) Exists(id SpanID) bool { return c.ctx.Exists(id) }

// Metadata returns the static metadata for a span, if it exists.
func (c *FmtContext) Metadata(id SpanID) (*Metadata, bool) {
	span, ok := c.ctx.Span(id)
	if !ok {
		return nil, false
	}
	return span.Metadata(), true
}

// LookupCurrent returns the span the calling execution context is inside,
// if any.
func (c *FmtContext) LookupCurrent() (SpanData, bool) {
	id, ok := c.ctx.Current()
	if !ok {
		return nil, false
	}
	return c.ctx.Span(id)
}

// ParentSpan returns the span the event belongs to: its explicit parent if
// it has one, otherwise the current span.
func (c *FmtContext) ParentSpan() (SpanData, bool) {
	if id, ok := c.event.Parent(); ok {
		return c.ctx.Span(id)
	}
	return c.LookupCurrent()
}

// SpanScope returns the ancestry walk starting at the given span, leaf to
// root. Use FromRoot for root-to-leaf order. The walk is finite and not
// restartable.
func (c *FmtContext) SpanScope(id SpanID) *Scope {
	return newScope(c.ctx.lookup, id)
}

// EventScope returns the ancestry walk for the event's span context, leaf
// to root, or nil if the event has no span context.
func (c *FmtContext) EventScope() *Scope {
	span, ok := c.ParentSpan()
	if !ok {
		return nil
	}
	return c.SpanScope(span.ID())
}

// VisitSpans calls f for every span in the event's context, root first.
// Stops at the first error, which is returned.
func (c *FmtContext) VisitSpans(f func(SpanData) error) error {
	scope := c.EventScope()
	if scope == nil {
		return nil
	}
	root := scope.FromRoot()
	for {
		span, ok := root.Next()
		if !ok {
			return nil
		}
		if err := f(span); err != nil {
			return err
		}
	}
}

// FieldFormat returns the field formatter configured on the Subscriber, so
// event formatters can render field sets consistently.
func (c *FmtContext) FieldFormat() FormatFields { return c.fmtFields }

// FormatFields renders fields through the configured field formatter.
func (c *FmtContext) FormatFields(w *Writer, fields []Field) error {
	return c.fmtFields.FormatFields(w, fields)
}

// FormattedFields returns the cached rendered field text for a span, as
// written by the lifecycle hooks for the configured field formatter. The
// snapshot is taken under the span's extension lock, so it is safe to
// call while a record hook is appending on another goroutine.
func (c *FmtContext) FormattedFields(span SpanData) (string, bool) {
	var fields string
	ok := span.Extensions().withRead(c.fieldsKey, func(v any) {
		fields = v.(*FormattedFields).Fields
	})
	return fields, ok
}
