package tracefmt

import (
	"bytes"
	"encoding/json"
	"time"
)

// JSONFields renders a field set as a single JSON object, used both for
// the cached span field text and for event fields in JSON mode.
type JSONFields struct{}

// FormatFields implements FormatFields.
func (JSONFields) FormatFields(w *Writer, fields []Field) error {
	data, err := json.Marshal(fieldObject(fields))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// fieldObject converts fields to a JSON-marshalable map, keeping first
// occurrence of duplicate keys and rendering durations as adaptive text.
func fieldObject(fields []Field) map[string]any {
	obj := make(map[string]any, len(fields))
	for _, f := range fields {
		if _, ok := obj[f.Key]; ok {
			continue
		}
		obj[f.Key] = jsonValue(f.Value)
	}
	return obj
}

func jsonValue(v any) any {
	switch v := v.(type) {
	case time.Duration:
		return formatTiming(v)
	case error:
		return v.Error()
	default:
		return v
	}
}

// JSONFormat renders one event as a single-line JSON object. ANSI styling
// is always disabled in JSON mode.
type JSONFormat struct {
	timer              FormatTime
	displayLevel       bool
	displayTarget      bool
	displayFile        bool
	displayLine        bool
	flattenEvent       bool
	displayCurrentSpan bool
	displaySpanList    bool
}

type jsonSpan struct {
	name   string
	fields string
}

func (s jsonSpan) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if s.fields != "" && s.fields != "{}" {
		// Splice the span's cached field object into this one.
		buf.WriteString(s.fields[1 : len(s.fields)-1])
		buf.WriteByte(',')
	}
	name, err := json.Marshal(s.name)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"name":`)
	buf.Write(name)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FormatEvent implements FormatEvent.
func (f *JSONFormat) FormatEvent(ctx *FmtContext, w *Writer, ev *Event) error {
	meta := ev.Metadata()
	obj := make(map[string]any, 8)

	if f.timer != nil {
		var stamp bytes.Buffer
		if err := f.timer.FormatTime(NewWriter(&stamp)); err != nil {
			return err
		}
		obj["timestamp"] = stamp.String()
	}
	if f.displayLevel {
		obj["level"] = meta.Level.String()
	}
	if f.displayTarget {
		obj["target"] = meta.Target
	}
	if f.displayFile && meta.File != "" {
		obj["filename"] = meta.File
	}
	if f.displayLine && meta.Line > 0 {
		obj["line_number"] = meta.Line
	}

	if f.flattenEvent {
		for k, v := range fieldObject(ev.Fields()) {
			if _, taken := obj[k]; !taken {
				obj[k] = v
			}
		}
	} else {
		obj["fields"] = fieldObject(ev.Fields())
	}

	if f.displayCurrentSpan {
		if span, ok := ctx.ParentSpan(); ok {
			obj["span"] = f.spanObject(ctx, span)
		}
	}
	if f.displaySpanList {
		spans := []jsonSpan{}
		if scope := ctx.EventScope(); scope != nil {
			root := scope.FromRoot()
			for {
				span, ok := root.Next()
				if !ok {
					break
				}
				spans = append(spans, f.spanObject(ctx, span))
			}
		}
		obj["spans"] = spans
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func (f *JSONFormat) spanObject(ctx *FmtContext, span SpanData) jsonSpan {
	fields, _ := ctx.FormattedFields(span)
	return jsonSpan{name: span.Metadata().Name, fields: fields}
}
