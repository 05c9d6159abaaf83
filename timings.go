package tracefmt

import (
	"strconv"
	"time"
)

// timings accumulates how long a span has been entered (busy) versus alive
// but not entered (idle). One instance lives in the span's extension map,
// created lazily when close events need timing. All mutation happens inside
// enter/exit hooks for the owning span, under the registry's per-span
// exclusivity.
type timings struct {
	idle         time.Duration
	busy         time.Duration
	last         time.Time
	enteredDepth uint64
}

var timingsKey = extensionKey{kind: "tracefmt.timings"}

func newTimings(now time.Time) *timings {
	return &timings{last: now}
}

// enter records an enter transition. Only the 0→1 transition moves the
// clock: time since the last transition was idle.
func (t *timings) enter(now time.Time) {
	if t.enteredDepth == 0 {
		t.idle += now.Sub(t.last)
		t.last = now
	}
	t.enteredDepth++
}

// exit records an exit transition. Only the 1→0 transition moves the
// clock: time since the last transition was busy.
func (t *timings) exit(now time.Time) {
	t.enteredDepth--
	if t.enteredDepth == 0 {
		t.busy += now.Sub(t.last)
		t.last = now
	}
}

// finalIdle returns the idle total as of now without mutating the stored
// state; the span is about to be destroyed when this is read.
func (t *timings) finalIdle(now time.Time) time.Duration {
	return t.idle + now.Sub(t.last)
}

// formatTiming renders a duration with an adaptive unit: seconds from 1s,
// milliseconds from 1ms, microseconds from 1µs, nanoseconds below that.
// At most six significant digits.
func formatTiming(d time.Duration) string {
	n := float64(d.Nanoseconds())
	switch {
	case d >= time.Second:
		return sigDigits(n/1e9) + "s"
	case d >= time.Millisecond:
		return sigDigits(n/1e6) + "ms"
	case d >= time.Microsecond:
		return sigDigits(n/1e3) + "µs"
	default:
		return sigDigits(n) + "ns"
	}
}

func sigDigits(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
