package log_service

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	WarnLevel  = "WARN"
	ErrorLevel = "ERROR"
)

const (
	DebugLevelValue = iota
	InfoLevelValue
	WarnLevelValue
	ErrorLevelValue
)

type LogEvent struct {
	Timestamp time.Time
	NodeID    string
	Message   string
	Metadata  map[string]any
}

type LogService interface {
	Debug(event LogEvent)
	Info(event LogEvent)
	Warn(event LogEvent)
	Error(event LogEvent)
}

// ParseLevel maps a level name, in any case, to its ordinal.
func ParseLevel(level string) (int, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case DebugLevel:
		return DebugLevelValue, true
	case InfoLevel:
		return InfoLevelValue, true
	case WarnLevel:
		return WarnLevelValue, true
	case ErrorLevel:
		return ErrorLevelValue, true
	default:
		return 0, false
	}
}

// GetLevelValue is ParseLevel with unknown names falling back to INFO.
func GetLevelValue(level string) int {
	if v, ok := ParseLevel(level); ok {
		return v
	}
	return InfoLevelValue
}

// FormatLog renders one line. Metadata keys are sorted so lines are stable.
func FormatLog(level string, event LogEvent) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var meta strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&meta, " %s=%v", k, event.Metadata[k])
	}

	return fmt.Sprintf("%s [%s] %s: %s%s\n", ts.Format(time.RFC3339), event.NodeID, level, event.Message, meta.String())
}
