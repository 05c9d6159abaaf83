package tracefmt

import (
	"io"
	"os"
)

// MakeWriter produces the sink an event is written to. Implementations may
// return a fresh writer per call; the Subscriber performs exactly one write
// on it and never caches it.
//
// A slow or blocking writer stalls the goroutine that emitted the event.
// Callers that need non-blocking output must supply a writer that buffers
// or drops internally.
type MakeWriter interface {
	MakeWriter() io.Writer
}

// MetadataWriter is an optional upgrade of MakeWriter consulted per event,
// allowing sinks to be selected by target, level, or any other metadata.
type MetadataWriter interface {
	MakeWriter
	MakeWriterFor(meta *Metadata) io.Writer
}

// MakeWriterFunc adapts a plain function to MakeWriter.
type MakeWriterFunc func() io.Writer

// MakeWriter returns the function's writer.
func (f MakeWriterFunc) MakeWriter() io.Writer { return f() }

// Stdout is a MakeWriter producing os.Stdout, the default sink.
var Stdout MakeWriter = MakeWriterFunc(func() io.Writer { return os.Stdout })

// Stderr is a MakeWriter producing os.Stderr.
var Stderr MakeWriter = MakeWriterFunc(func() io.Writer { return os.Stderr })

// writerFor resolves the sink for one event's metadata, preferring the
// metadata-aware selection when the policy implements it.
func writerFor(mw MakeWriter, meta *Metadata) io.Writer {
	if m, ok := mw.(MetadataWriter); ok {
		return m.MakeWriterFor(meta)
	}
	return mw.MakeWriter()
}
