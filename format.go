package tracefmt

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/zoobzio/clockz"
)

// Writer is the text buffer formatters render into, carrying the ANSI
// styling flag alongside the bytes.
type Writer struct {
	buf  *bytes.Buffer
	ansi bool
}

// NewWriter wraps a buffer for formatter use. ANSI styling is off until
// WithANSI enables it.
func NewWriter(buf *bytes.Buffer) *Writer {
	return &Writer{buf: buf}
}

// WithANSI sets whether styled output is wanted and returns the writer.
func (w *Writer) WithANSI(ansi bool) *Writer {
	w.ansi = ansi
	return w
}

// ANSI reports whether styled output is wanted.
func (w *Writer) ANSI() bool { return w.ansi }

// Write appends raw bytes.
func (w *Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

// WriteString appends a string.
func (w *Writer) WriteString(s string) (int, error) { return w.buf.WriteString(s) }

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) error { return w.buf.WriteByte(b) }

// FormatFields renders a set of key/value fields to text. Implementations
// are shared across goroutines and must be stateless or internally
// synchronized.
type FormatFields interface {
	FormatFields(w *Writer, fields []Field) error
}

// FormatEvent renders one event, real or synthesized, to its final output
// line(s). The context gives access to the event's span ancestry and the
// configured field formatter.
type FormatEvent interface {
	FormatEvent(ctx *FmtContext, w *Writer, ev *Event) error
}

// FormatTime writes a timestamp prefix for an event. A nil timer on the
// Subscriber disables timestamps and, with them, close-event timings.
type FormatTime interface {
	FormatTime(w *Writer) error
}

// FormattedFields is a span's cached rendered field text, stored in the
// span's extension map under the field formatter's kind. Created on first
// need, appended to by later record notifications, destroyed only when the
// registry destroys the span.
type FormattedFields struct {
	// Fields is the rendered text.
	Fields string

	wasANSI bool
}

// Style palette. Instances are force-enabled; callers consult the writer's
// ANSI flag before using them.
var (
	styleDim    = forced(color.New(color.Faint))
	styleBold   = forced(color.New(color.Bold))
	styleItalic = forced(color.New(color.Italic))

	levelStyles = map[Level]*color.Color{
		LevelTrace: forced(color.New(color.FgMagenta)),
		LevelDebug: forced(color.New(color.FgBlue)),
		LevelInfo:  forced(color.New(color.FgGreen)),
		LevelWarn:  forced(color.New(color.FgYellow)),
		LevelError: forced(color.New(color.FgRed)),
	}
)

func forced(c *color.Color) *color.Color {
	c.EnableColor()
	return c
}

// DefaultFields renders fields space-separated as k=v, with the message
// field first and bare. String values are quoted, durations rendered with
// adaptive units, field keys italicized under ANSI.
type DefaultFields struct{}

// FormatFields implements FormatFields.
func (DefaultFields) FormatFields(w *Writer, fields []Field) error {
	first := true
	sep := func() error {
		if first {
			first = false
			return nil
		}
		return w.WriteByte(' ')
	}

	for _, f := range fields {
		if f.Key != "message" {
			continue
		}
		if err := sep(); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%v", f.Value); err != nil {
			return err
		}
	}
	for _, f := range fields {
		if f.Key == "message" {
			continue
		}
		if err := sep(); err != nil {
			return err
		}
		key := f.Key
		if w.ANSI() {
			key = styleItalic.Sprint(key)
		}
		if _, err := fmt.Fprintf(w, "%s=%s", key, fieldValue(f.Value)); err != nil {
			return err
		}
	}
	return nil
}

// fieldValue renders one field value: strings quoted, durations with
// adaptive units, everything else in its natural form.
func fieldValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case time.Duration:
		return formatTiming(v)
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// SystemTime stamps events with the wall clock.
type SystemTime struct {
	// Clock provides the current instant; clockz.RealClock when nil.
	Clock clockz.Clock
}

// FormatTime implements FormatTime.
func (t SystemTime) FormatTime(w *Writer) error {
	clock := t.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	_, err := w.WriteString(clock.Now().Format("2006-01-02T15:04:05.000000Z07:00"))
	return err
}

// Uptime stamps events with the time elapsed since the timer was created.
type Uptime struct {
	clock clockz.Clock
	epoch time.Time
}

// NewUptime returns an Uptime timer anchored at the clock's current time.
func NewUptime(clock clockz.Clock) *Uptime {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Uptime{clock: clock, epoch: clock.Now()}
}

// FormatTime implements FormatTime.
func (t *Uptime) FormatTime(w *Writer) error {
	_, err := fmt.Fprintf(w, "%12.6fs", t.clock.Now().Sub(t.epoch).Seconds())
	return err
}

type formatKind uint8

const (
	formatFull formatKind = iota
	formatCompact
)

// Format is the built-in single-line event formatter, in full (default) or
// compact form.
type Format struct {
	kind          formatKind
	timer         FormatTime // nil = no timestamps
	displayTarget bool
	displayLevel  bool
	displayFile   bool
	displayLine   bool
	displayGID    bool
}

// FormatEvent implements FormatEvent.
func (f *Format) FormatEvent(ctx *FmtContext, w *Writer, ev *Event) error {
	meta := ev.Metadata()

	if err := f.writeTime(w); err != nil {
		return err
	}
	if f.displayLevel {
		level := meta.Level.padded()
		// Unknown levels have no style entry and render unstyled.
		if style, ok := levelStyles[meta.Level]; ok && w.ANSI() {
			level = style.Sprint(level)
		}
		if _, err := w.WriteString(level + " "); err != nil {
			return err
		}
	}
	if f.displayGID {
		if _, err := fmt.Fprintf(w, "%02d ", goroutineID()); err != nil {
			return err
		}
	}
	if err := f.writeScope(ctx, w); err != nil {
		return err
	}
	if f.displayTarget {
		target := meta.Target + ":"
		if w.ANSI() && f.kind == formatCompact {
			target = styleDim.Sprint(target)
		}
		if _, err := w.WriteString(target + " "); err != nil {
			return err
		}
	}
	if err := f.writeLocation(w, meta); err != nil {
		return err
	}
	if err := ctx.FormatFields(w, ev.Fields()); err != nil {
		return err
	}
	if f.kind == formatCompact {
		if err := f.writeCompactSpanFields(ctx, w); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func (f *Format) writeTime(w *Writer) error {
	if f.timer == nil {
		return nil
	}
	if !w.ANSI() {
		if err := f.timer.FormatTime(w); err != nil {
			return err
		}
		return w.WriteByte(' ')
	}

	// Render to a scratch buffer so the whole stamp can be dimmed.
	var stamp bytes.Buffer
	if err := f.timer.FormatTime(NewWriter(&stamp).WithANSI(true)); err != nil {
		return err
	}
	_, err := w.WriteString(styleDim.Sprint(stamp.String()) + " ")
	return err
}

// writeScope writes the span path root to leaf: name{fields}: per span in
// full form, bare names in compact form, followed by one space.
func (f *Format) writeScope(ctx *FmtContext, w *Writer) error {
	scope := ctx.EventScope()
	if scope == nil {
		return nil
	}
	root := scope.FromRoot()
	wrote := false
	for {
		span, ok := root.Next()
		if !ok {
			break
		}
		wrote = true
		name := span.Metadata().Name
		if w.ANSI() {
			name = styleBold.Sprint(name)
		}
		if _, err := w.WriteString(name); err != nil {
			return err
		}
		if f.kind == formatFull {
			if fields, ok := ctx.FormattedFields(span); ok && fields != "" {
				open, clos := "{", "}"
				if w.ANSI() {
					open, clos = styleBold.Sprint("{"), styleBold.Sprint("}")
				}
				if _, err := w.WriteString(open + fields + clos); err != nil {
					return err
				}
			}
		}
		if err := w.WriteByte(':'); err != nil {
			return err
		}
	}
	if wrote {
		return w.WriteByte(' ')
	}
	return nil
}

func (f *Format) writeLocation(w *Writer, meta *Metadata) error {
	if f.displayFile && meta.File != "" {
		loc := meta.File
		if f.displayLine && meta.Line > 0 {
			loc += ":" + strconv.Itoa(meta.Line)
		}
		loc += ": "
		if w.ANSI() {
			loc = styleDim.Sprint(loc)
		}
		if _, err := w.WriteString(loc); err != nil {
			return err
		}
	}
	return nil
}

// writeCompactSpanFields appends the cached fields of every span in scope,
// leaf to root, after the event's own fields.
func (f *Format) writeCompactSpanFields(ctx *FmtContext, w *Writer) error {
	scope := ctx.EventScope()
	if scope == nil {
		return nil
	}
	for {
		span, ok := scope.Next()
		if !ok {
			return nil
		}
		fields, ok := ctx.FormattedFields(span)
		if !ok || fields == "" {
			continue
		}
		if _, err := w.WriteString(" " + fields); err != nil {
			return err
		}
	}
}
