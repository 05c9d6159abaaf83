package tracefmt

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zoobzio/clockz"
)

// Builder accumulates Subscriber configuration as one mutable value and
// validates it at Build. Output presets (Compact, Pretty, JSON) are
// mutually exclusive; picking more than one is a Build error.
type Builder struct {
	fmtFields  FormatFields
	fmtEvent   FormatEvent
	makeWriter MakeWriter
	errOut     io.Writer

	spanEvents        SpanEvents
	logInternalErrors bool

	clock    clockz.Clock
	timer    FormatTime
	timerSet bool

	ansi bool

	displayTarget bool
	displayLevel  bool
	displayFile   bool
	displayLine   bool
	displayGID    bool

	flattenEvent       bool
	displayCurrentSpan bool
	displaySpanList    bool

	presets []string
}

// New returns a Builder with the default configuration: full single-line
// format on stdout, wall-clock timestamps, no synthesized span events,
// internal-error reporting off. Color is enabled unless the NO_COLOR
// environment variable is set to a non-empty value; the environment is
// read here, once, and never again.
func New() *Builder {
	return &Builder{
		makeWriter:         Stdout,
		errOut:             os.Stderr,
		clock:              clockz.RealClock,
		ansi:               os.Getenv("NO_COLOR") == "",
		displayTarget:      true,
		displayLevel:       true,
		displayCurrentSpan: true,
		displaySpanList:    true,
	}
}

// WithWriter sets the sink-selection policy.
func (b *Builder) WithWriter(mw MakeWriter) *Builder {
	b.makeWriter = mw
	return b
}

// WithErrorWriter sets the fallback channel for best-effort internal
// diagnostics. Defaults to stderr.
func (b *Builder) WithErrorWriter(w io.Writer) *Builder {
	b.errOut = w
	return b
}

// WithANSI explicitly enables or disables ANSI color styling, overriding
// the NO_COLOR environment signal resolved at construction.
func (b *Builder) WithANSI(ansi bool) *Builder {
	b.ansi = ansi
	return b
}

// WithSpanEvents sets which span lifecycle transitions are synthesized
// into output events.
func (b *Builder) WithSpanEvents(kind SpanEvents) *Builder {
	b.spanEvents = kind
	return b
}

// LogInternalErrors sets whether render and write failures inside the
// subscriber are diagnosed. Default off.
func (b *Builder) LogInternalErrors(log bool) *Builder {
	b.logInternalErrors = log
	return b
}

// WithClock sets the clock used for span busy/idle timing and the default
// timestamp timer. Enables clock injection for deterministic testing.
func (b *Builder) WithClock(clock clockz.Clock) *Builder {
	b.clock = clock
	return b
}

// WithTimer sets the timestamp timer implementation.
func (b *Builder) WithTimer(timer FormatTime) *Builder {
	b.timer = timer
	b.timerSet = true
	return b
}

// WithoutTime disables timestamps, and with them the busy/idle fields on
// synthesized close events.
func (b *Builder) WithoutTime() *Builder {
	b.timer = nil
	b.timerSet = true
	return b
}

// WithTarget sets whether the event's target is displayed. Default on.
func (b *Builder) WithTarget(display bool) *Builder {
	b.displayTarget = display
	return b
}

// WithLevel sets whether the event's level is displayed. Default on.
func (b *Builder) WithLevel(display bool) *Builder {
	b.displayLevel = display
	return b
}

// WithFile sets whether the event's source file path is displayed.
func (b *Builder) WithFile(display bool) *Builder {
	b.displayFile = display
	return b
}

// WithLineNumber sets whether the event's source line number is displayed.
func (b *Builder) WithLineNumber(display bool) *Builder {
	b.displayLine = display
	return b
}

// WithGoroutineIDs sets whether the emitting goroutine's id is displayed.
func (b *Builder) WithGoroutineIDs(display bool) *Builder {
	b.displayGID = display
	return b
}

// WithFieldFormatter overrides the field formatter, including the one a
// preset would install.
func (b *Builder) WithFieldFormatter(ff FormatFields) *Builder {
	b.fmtFields = ff
	return b
}

// WithEventFormatter overrides the event formatter, including the one a
// preset would install.
func (b *Builder) WithEventFormatter(fe FormatEvent) *Builder {
	b.fmtEvent = fe
	return b
}

// Compact selects the less verbose single-line output preset.
func (b *Builder) Compact() *Builder {
	b.presets = append(b.presets, "compact")
	return b
}

// Pretty selects the multi-line human-readable output preset.
func (b *Builder) Pretty() *Builder {
	b.presets = append(b.presets, "pretty")
	return b
}

// JSON selects the one-object-per-line JSON output preset. ANSI styling is
// always disabled in JSON mode.
func (b *Builder) JSON() *Builder {
	b.presets = append(b.presets, "json")
	return b
}

// FlattenEvent makes the JSON preset merge event fields into the root
// object instead of nesting them under "fields".
func (b *Builder) FlattenEvent(flatten bool) *Builder {
	b.flattenEvent = flatten
	return b
}

// WithCurrentSpan sets whether the JSON preset includes the event's span.
// Default on.
func (b *Builder) WithCurrentSpan(display bool) *Builder {
	b.displayCurrentSpan = display
	return b
}

// WithSpanList sets whether the JSON preset includes the root-to-leaf span
// list. Default on.
func (b *Builder) WithSpanList(display bool) *Builder {
	b.displaySpanList = display
	return b
}

// Build validates the configuration and returns the Subscriber.
func (b *Builder) Build() (*Subscriber, error) {
	if len(b.presets) > 1 {
		return nil, fmt.Errorf("output presets are mutually exclusive, got %s",
			strings.Join(b.presets, " and "))
	}
	preset := ""
	if len(b.presets) == 1 {
		preset = b.presets[0]
	}

	timer := b.timer
	if !b.timerSet {
		timer = SystemTime{Clock: b.clock}
	}

	ansi := b.ansi
	fmtFields := b.fmtFields
	var fmtEvent FormatEvent

	switch preset {
	case "json":
		ansi = false
		if fmtFields == nil {
			fmtFields = JSONFields{}
		}
		fmtEvent = &JSONFormat{
			timer:              timer,
			displayLevel:       b.displayLevel,
			displayTarget:      b.displayTarget,
			displayFile:        b.displayFile,
			displayLine:        b.displayLine,
			flattenEvent:       b.flattenEvent,
			displayCurrentSpan: b.displayCurrentSpan,
			displaySpanList:    b.displaySpanList,
		}
	case "pretty":
		if fmtFields == nil {
			fmtFields = PrettyFields{}
		}
		fmtEvent = &PrettyFormat{
			timer:        timer,
			displayLevel: b.displayLevel,
			displayFile:  b.displayFile,
			displayLine:  b.displayLine,
		}
	default:
		kind := formatFull
		if preset == "compact" {
			kind = formatCompact
		}
		if fmtFields == nil {
			fmtFields = DefaultFields{}
		}
		fmtEvent = &Format{
			kind:          kind,
			timer:         timer,
			displayTarget: b.displayTarget,
			displayLevel:  b.displayLevel,
			displayFile:   b.displayFile,
			displayLine:   b.displayLine,
			displayGID:    b.displayGID,
		}
	}

	if b.fmtEvent != nil {
		fmtEvent = b.fmtEvent
	}

	return &Subscriber{
		fmtFields:         fmtFields,
		fmtEvent:          fmtEvent,
		makeWriter:        b.makeWriter,
		errOut:            b.errOut,
		spanEvents:        b.spanEvents,
		timing:            timer != nil,
		ansi:              ansi,
		logInternalErrors: b.logInternalErrors,
		clock:             b.clock,
		fieldsKey:         extensionKey{kind: fmt.Sprintf("%T", fmtFields)},
	}, nil
}
