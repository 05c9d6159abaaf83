package tracefmt

import (
	"fmt"
	"strings"
)

// Level is the verbosity level of a span or event.
type Level uint8

const (
	LevelTrace Level = iota + 1
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "unknown"
	}
}

// padded returns the level name right-aligned to five columns, so that
// messages line up across levels in formatted output.
func (l Level) padded() string {
	s := l.String()
	if len(s) < 5 {
		return strings.Repeat(" ", 5-len(s)) + s
	}
	return s
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid level: %q (expected: trace|debug|info|warn|error)", s)
	}
}
