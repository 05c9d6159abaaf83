package tracefmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
)

func renderDefaultFields(t *testing.T, fields ...Field) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, DefaultFields{}.FormatFields(NewWriter(&buf), fields))
	return buf.String()
}

func TestDefaultFieldsRendering(t *testing.T) {
	assert.Equal(t, "", renderDefaultFields(t))
	assert.Equal(t, "x=42", renderDefaultFields(t, Field{Key: "x", Value: 42}))
	assert.Equal(t, "hello", renderDefaultFields(t, Field{Key: "message", Value: "hello"}))

	// Message comes first and bare, regardless of field order; strings are
	// quoted and durations use adaptive units.
	got := renderDefaultFields(t,
		Field{Key: "user", Value: "ada"},
		Field{Key: "message", Value: "login"},
		Field{Key: "elapsed", Value: 1500 * time.Millisecond},
	)
	assert.Equal(t, `login user="ada" elapsed=1.5s`, got)
}

func TestLevelPadding(t *testing.T) {
	assert.Equal(t, " INFO", LevelInfo.padded())
	assert.Equal(t, " WARN", LevelWarn.padded())
	assert.Equal(t, "ERROR", LevelError.padded())
	assert.Equal(t, "DEBUG", LevelDebug.padded())
	assert.Equal(t, "TRACE", LevelTrace.padded())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, level)

	_, err = ParseLevel("shout")
	assert.Error(t, err)
}

func TestUptimeTimer(t *testing.T) {
	clock := clockz.NewFakeClock()
	timer := NewUptime(clock)
	clock.Advance(1500 * time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, timer.FormatTime(NewWriter(&buf)))
	assert.Equal(t, "    1.500000s", buf.String())
}

func TestFullFormatShowsLevelAndLocation(t *testing.T) {
	mw := &mockMakeWriter{}
	sub, err := New().
		WithWriter(mw).
		WithANSI(false).
		WithTimer(mockTime{}).
		WithFile(true).
		WithLineNumber(true).
		Build()
	require.NoError(t, err)

	reg := newTestRegistry(sub)
	reg.event(&Metadata{
		Name:   "event",
		Target: "app",
		Level:  LevelWarn,
		File:   "main.go",
		Line:   7,
	}, Field{Key: "message", Value: "careful"})

	assert.Equal(t, "fake time  WARN app: main.go:7: careful\n", mw.String())
}

func TestCompactFormatAppendsSpanFields(t *testing.T) {
	mw := &mockMakeWriter{}
	sub, err := New().
		WithWriter(mw).
		WithLevel(false).
		WithANSI(false).
		WithTimer(mockTime{}).
		WithSpanEvents(SpanEventsEnter).
		Compact().
		Build()
	require.NoError(t, err)

	reg := newTestRegistry(sub)
	id := reg.newSpan(testMeta("span1"), Field{Key: "x", Value: 42})
	reg.enter(id)

	// Span names stay in the path, span fields move to the end of the line.
	assert.Equal(t, "fake time span1: tracefmt_test: enter x=42\n", mw.String())
}

func TestANSIOutputCarriesEscapes(t *testing.T) {
	mw := &mockMakeWriter{}
	sub, err := New().
		WithWriter(mw).
		WithANSI(true).
		WithoutTime().
		WithTarget(false).
		Build()
	require.NoError(t, err)

	reg := newTestRegistry(sub)
	reg.event(&Metadata{Name: "event", Target: "app", Level: LevelInfo},
		Field{Key: "message", Value: "styled"})

	got := mw.String()
	assert.Contains(t, got, "\x1b[")
	assert.Contains(t, got, "styled")
}

// A zero-value Level has no style entry; the event must still come out,
// with the level name unstyled, instead of dying inside the formatter.
func TestUnknownLevelRendersUnstyled(t *testing.T) {
	mw := &mockMakeWriter{}
	sub, err := New().
		WithWriter(mw).
		WithANSI(true).
		WithTimer(mockTime{}).
		Build()
	require.NoError(t, err)

	reg := newTestRegistry(sub)
	reg.event(&Metadata{Name: "event", Target: "app"},
		Field{Key: "message", Value: "still here"})

	got := mw.String()
	assert.Contains(t, got, "unknown")
	assert.Contains(t, got, "still here")

	mw = &mockMakeWriter{}
	sub, err = New().
		WithWriter(mw).
		WithANSI(true).
		WithTimer(mockTime{}).
		Pretty().
		Build()
	require.NoError(t, err)

	reg = newTestRegistry(sub)
	reg.event(&Metadata{Name: "event", Target: "app"},
		Field{Key: "message", Value: "still here"})
	assert.Contains(t, mw.String(), "still here")
}

func decodeJSONLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &obj))
	return obj
}

func TestJSONFormat(t *testing.T) {
	mw := &mockMakeWriter{}
	sub, err := New().
		WithWriter(mw).
		WithTimer(mockTime{}).
		WithSpanEvents(SpanEventsClose).
		JSON().
		Build()
	require.NoError(t, err)

	reg := newTestRegistry(sub)
	id := reg.newSpan(testMeta("span1"), Field{Key: "x", Value: 42})
	reg.enter(id)
	reg.event(&Metadata{Name: "event", Target: "app", Level: LevelInfo},
		Field{Key: "message", Value: "hi"},
		Field{Key: "n", Value: 3})
	reg.exit(id)
	reg.close(id)

	lines := strings.Split(strings.TrimSuffix(mw.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	ev := decodeJSONLine(t, lines[0])
	assert.Equal(t, "fake time", ev["timestamp"])
	assert.Equal(t, "INFO", ev["level"])
	assert.Equal(t, "app", ev["target"])
	fields, ok := ev["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", fields["message"])
	assert.Equal(t, float64(3), fields["n"])

	span, ok := ev["span"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "span1", span["name"])
	assert.Equal(t, float64(42), span["x"])

	spans, ok := ev["spans"].([]any)
	require.True(t, ok)
	require.Len(t, spans, 1)

	closeEv := decodeJSONLine(t, lines[1])
	closeFields, ok := closeEv["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "close", closeFields["message"])
	assert.Contains(t, closeFields, "time.busy")
	assert.Contains(t, closeFields, "time.idle")
}

func TestJSONFlattenEvent(t *testing.T) {
	mw := &mockMakeWriter{}
	sub, err := New().
		WithWriter(mw).
		WithoutTime().
		JSON().
		FlattenEvent(true).
		WithCurrentSpan(false).
		WithSpanList(false).
		Build()
	require.NoError(t, err)

	reg := newTestRegistry(sub)
	reg.event(&Metadata{Name: "event", Target: "app", Level: LevelInfo},
		Field{Key: "message", Value: "flat"},
		Field{Key: "k", Value: "v"})

	obj := decodeJSONLine(t, strings.TrimSuffix(mw.String(), "\n"))
	assert.Equal(t, "flat", obj["message"])
	assert.Equal(t, "v", obj["k"])
	assert.NotContains(t, obj, "fields")
	assert.NotContains(t, obj, "span")
	assert.NotContains(t, obj, "spans")
}

func TestPrettyFormatMultiline(t *testing.T) {
	mw := &mockMakeWriter{}
	sub, err := New().
		WithWriter(mw).
		WithANSI(false).
		WithTimer(mockTime{}).
		Pretty().
		Build()
	require.NoError(t, err)

	reg := newTestRegistry(sub)
	id := reg.newSpan(testMeta("span1"), Field{Key: "x", Value: 42})
	reg.enter(id)
	reg.event(&Metadata{Name: "event", Target: "app", Level: LevelInfo},
		Field{Key: "message", Value: "hello"},
		Field{Key: "k", Value: "v"})

	want := "fake time INFO app: hello, k=\"v\"\n" +
		"    in span1 with x=42\n" +
		"\n"
	assert.Equal(t, want, mw.String())
}
