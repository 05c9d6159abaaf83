package tracefmt

import (
	"fmt"
	"strconv"
)

// PrettyFields renders fields comma-separated as k=v with the message
// first, for the multi-line pretty format.
type PrettyFields struct{}

// FormatFields implements FormatFields.
func (PrettyFields) FormatFields(w *Writer, fields []Field) error {
	first := true
	sep := func() error {
		if first {
			first = false
			return nil
		}
		_, err := w.WriteString(", ")
		return err
	}

	for _, f := range fields {
		if f.Key != "message" {
			continue
		}
		if err := sep(); err != nil {
			return err
		}
		msg := fmt.Sprintf("%v", f.Value)
		if w.ANSI() {
			msg = styleBold.Sprint(msg)
		}
		if _, err := w.WriteString(msg); err != nil {
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

// PrettyFormat is the multi-line human-readable event formatter: a header
// line with timestamp, level and target, the event fields, then one
// indented context line per ancestor span.
type PrettyFormat struct {
	timer        FormatTime
	displayLevel bool
	displayFile  bool
	displayLine  bool
}

// FormatEvent implements FormatEvent.
func (f *PrettyFormat) FormatEvent(ctx *FmtContext, w *Writer, ev *Event) error {
	meta := ev.Metadata()

	if f.timer != nil {
		if err := f.timer.FormatTime(w); err != nil {
			return err
		}
		if err := w.WriteByte(' '); err != nil {
			return err
		}
	}
	if f.displayLevel {
		level := meta.Level.String()
		if style, ok := levelStyles[meta.Level]; ok && w.ANSI() {
			level = style.Sprint(level)
		}
		if _, err := w.WriteString(level + " "); err != nil {
			return err
		}
	}
	if _, err := w.WriteString(meta.Target + ": "); err != nil {
		return err
	}
	if err := ctx.FormatFields(w, ev.Fields()); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}

	if f.displayFile && meta.File != "" {
		loc := "    at " + meta.File
		if f.displayLine && meta.Line > 0 {
			loc += ":" + strconv.Itoa(meta.Line)
		}
		if w.ANSI() {
			loc = styleDim.Sprint(loc)
		}
		if _, err := w.WriteString(loc + "\n"); err != nil {
			return err
		}
	}

	scope := ctx.EventScope()
	if scope == nil {
		return w.WriteByte('\n')
	}
	for {
		span, ok := scope.Next()
		if !ok {
			break
		}
		in := "in"
		if w.ANSI() {
			in = styleDim.Sprint("in")
		}
		if _, err := w.WriteString("    " + in + " " + span.Metadata().Name); err != nil {
			return err
		}
		if fields, ok := ctx.FormattedFields(span); ok && fields != "" {
			with := "with"
			if w.ANSI() {
				with = styleDim.Sprint("with")
			}
			if _, err := w.WriteString(" " + with + " " + fields); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}
