package tracefmt

import (
	"bytes"
	"fmt"
	"io"

	"github.com/zoobzio/clockz"
)

// SpanEvents selects which span lifecycle transitions are synthesized into
// output events. Values combine with bitwise or.
type SpanEvents uint8

const (
	// SpanEventsNew emits an event when a span is created.
	SpanEventsNew SpanEvents = 1 << iota
	// SpanEventsEnter emits an event when a span is entered.
	SpanEventsEnter
	// SpanEventsExit emits an event when a span is exited.
	SpanEventsExit
	// SpanEventsClose emits an event when a span closes, with the span's
	// busy and idle times when a timer is configured.
	SpanEventsClose
)

const (
	// SpanEventsNone synthesizes nothing. This is the default.
	SpanEventsNone SpanEvents = 0
	// SpanEventsActive emits events on enter and exit.
	SpanEventsActive = SpanEventsEnter | SpanEventsExit
	// SpanEventsFull emits events on every lifecycle transition.
	SpanEventsFull = SpanEventsNew | SpanEventsEnter | SpanEventsExit | SpanEventsClose
)

// Subscriber receives span lifecycle hooks from a registry and renders
// them, and any events, to its configured writer. Immutable after Build;
// safe for concurrent use.
//
// Hooks never return errors: render and write failures are swallowed, and
// optionally diagnosed on the fallback error writer. A hook fired for an
// unknown span id panics, since that breaks the registry contract.
type Subscriber struct {
	fmtFields FormatFields
	fmtEvent  FormatEvent

	makeWriter MakeWriter
	errOut     io.Writer

	spanEvents        SpanEvents
	timing            bool // a timer is configured
	ansi              bool
	logInternalErrors bool

	clock     clockz.Clock
	fieldsKey extensionKey
	buffers   bufferPool
}

// timingRequired reports whether enter/exit transitions must feed the
// timing tracker: close events are on and a timer exists to render them.
func (s *Subscriber) timingRequired() bool {
	return s.spanEvents&SpanEventsClose != 0 && s.timing
}

// EventFormatter returns the configured event formatter.
func (s *Subscriber) EventFormatter() FormatEvent { return s.fmtEvent }

// FieldFormatter returns the configured field formatter.
func (s *Subscriber) FieldFormatter() FormatFields { return s.fmtFields }

// Writer returns the configured sink-selection policy.
func (s *Subscriber) Writer() MakeWriter { return s.makeWriter }

// OnNewSpan caches the span's rendered field text (first call only), seeds
// the timing tracker if close timing is enabled, and synthesizes a "new"
// event when the policy asks for one.
func (s *Subscriber) OnNewSpan(attrs []Field, id SpanID, ctx Context) {
	span := ctx.mustSpan(id)
	exts := span.Extensions()

	if _, ok := exts.get(s.fieldsKey); !ok {
		text, err := s.renderFields(attrs, s.ansi)
		if err != nil {
			fmt.Fprintf(s.errOut,
				"[tracefmt] unable to format fields for span %q, ignoring: %v\n",
				span.Metadata().Name, err)
		} else {
			exts.insert(s.fieldsKey, &FormattedFields{Fields: text, wasANSI: s.ansi})
		}
	}

	if s.timingRequired() {
		if _, ok := exts.get(timingsKey); !ok {
			exts.insert(timingsKey, newTimings(s.clock.Now()))
		}
	}

	if s.spanEvents&SpanEventsNew != 0 {
		s.spanEvent(id, span, ctx, "new", nil)
	}
}

// OnRecord merges newly recorded fields into the span's cached field text,
// creating the cache if this is the first field activity on the span.
func (s *Subscriber) OnRecord(id SpanID, values []Field, ctx Context) {
	span := ctx.mustSpan(id)
	exts := span.Extensions()

	var wasANSI, cached bool
	exts.withRead(s.fieldsKey, func(v any) {
		wasANSI = v.(*FormattedFields).wasANSI
		cached = true
	})
	if cached {
		// Render outside the lock: the field formatter is user code. Hooks
		// for one span never run concurrently, so the cache cannot change
		// between the read above and the append below.
		text, err := s.renderFields(values, wasANSI)
		if err != nil || text == "" {
			return
		}
		exts.withWrite(s.fieldsKey, func(v any) {
			ff := v.(*FormattedFields)
			if ff.Fields != "" {
				ff.Fields += " "
			}
			ff.Fields += text
		})
		return
	}

	text, err := s.renderFields(values, s.ansi)
	if err != nil {
		return
	}
	exts.insert(s.fieldsKey, &FormattedFields{Fields: text, wasANSI: s.ansi})
}

// OnEnter advances the timing tracker on the 0→1 entered transition and
// synthesizes an "enter" event when the policy asks for one.
func (s *Subscriber) OnEnter(id SpanID, ctx Context) {
	traceEnter := s.spanEvents&SpanEventsEnter != 0
	if !traceEnter && !s.timingRequired() {
		return
	}

	span := ctx.mustSpan(id)
	if v, ok := span.Extensions().get(timingsKey); ok {
		v.(*timings).enter(s.clock.Now())
	}
	if traceEnter {
		s.spanEvent(id, span, ctx, "enter", nil)
	}
}

// OnExit advances the timing tracker on the 1→0 entered transition and
// synthesizes an "exit" event when the policy asks for one.
func (s *Subscriber) OnExit(id SpanID, ctx Context) {
	traceExit := s.spanEvents&SpanEventsExit != 0
	if !traceExit && !s.timingRequired() {
		return
	}

	span := ctx.mustSpan(id)
	if v, ok := span.Extensions().get(timingsKey); ok {
		v.(*timings).exit(s.clock.Now())
	}
	if traceExit {
		s.spanEvent(id, span, ctx, "exit", nil)
	}
}

// OnClose synthesizes a "close" event when the policy asks for one. If the
// span carries a timing tracker the event gets time.busy and time.idle
// fields; the stored state is not mutated, the span is about to be
// destroyed by the registry.
func (s *Subscriber) OnClose(id SpanID, ctx Context) {
	if s.spanEvents&SpanEventsClose == 0 {
		return
	}

	span := ctx.mustSpan(id)
	if v, ok := span.Extensions().get(timingsKey); ok {
		t := v.(*timings)
		idle := t.finalIdle(s.clock.Now())
		s.spanEvent(id, span, ctx, "close", []Field{
			{Key: "time.busy", Value: t.busy},
			{Key: "time.idle", Value: idle},
		})
		return
	}
	s.spanEvent(id, span, ctx, "close", nil)
}

// spanEvent synthesizes a lifecycle event borrowing the span's metadata
// and dispatches it through the normal event path.
func (s *Subscriber) spanEvent(id SpanID, span SpanData, ctx Context, message string, extra []Field) {
	fields := make([]Field, 0, 1+len(extra))
	fields = append(fields, Field{Key: "message", Value: message})
	fields = append(fields, extra...)
	s.OnEvent(NewChildEvent(id, span.Metadata(), fields), ctx)
}

// OnEvent renders one event and writes it to the sink selected for the
// event's metadata. Never returns or raises an error to the caller; the
// caller is instrumented application code.
func (s *Subscriber) OnEvent(ev *Event, ctx Context) {
	defer func() {
		if r := recover(); r != nil && s.logInternalErrors {
			fmt.Fprintf(s.errOut,
				"[tracefmt] panic while formatting event %q: %v\n",
				ev.Metadata().Name, r)
		}
	}()

	buf, release := s.buffers.acquire()
	defer release()

	fctx := &FmtContext{ctx: ctx, fmtFields: s.fmtFields, fieldsKey: s.fieldsKey, event: ev}
	w := NewWriter(buf).WithANSI(s.ansi)

	if err := s.fmtEvent.FormatEvent(fctx, w, ev); err != nil {
		if !s.logInternalErrors {
			return
		}
		// Best-effort fallback line: event name plus raw fields.
		msg := fmt.Sprintf("Unable to format the following event. Name: %s; Fields: %v\n",
			ev.Metadata().Name, ev.Fields())
		sink := writerFor(s.makeWriter, ev.Metadata())
		if _, werr := io.WriteString(sink, msg); werr != nil {
			fmt.Fprintf(s.errOut,
				"[tracefmt] unable to write an event formatting error to the writer for this subscriber: %v\n",
				werr)
		}
		return
	}

	sink := writerFor(s.makeWriter, ev.Metadata())
	if _, werr := sink.Write(buf.Bytes()); werr != nil && s.logInternalErrors {
		fmt.Fprintf(s.errOut,
			"[tracefmt] unable to write an event to the writer for this subscriber: %v\n",
			werr)
	}
}

// renderFields runs the field formatter over fields into a fresh string.
func (s *Subscriber) renderFields(fields []Field, ansi bool) (string, error) {
	var buf bytes.Buffer
	if err := s.fmtFields.FormatFields(NewWriter(&buf).WithANSI(ansi), fields); err != nil {
		return "", err
	}
	return buf.String(), nil
}
