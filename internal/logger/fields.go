package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Standard field keys. Use them consistently so log lines can be queried
// across the refresh, population and API paths.
const (
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	KeyTask      = "task"
	KeyStep      = "step"
	KeyState     = "state"
	KeyRequestID = "request_id"
	KeyClientIP  = "client_ip"

	// Item store
	KeyItem    = "item"    // item path
	KeyHandle  = "handle"  // item handle
	KeyType    = "type"    // canonical data type
	KeyQuality = "quality" // value quality
	KeyCount   = "count"

	// Condition model
	KeyCondition    = "condition"
	KeySubCondition = "sub_condition"
	KeyCategory     = "category"
	KeySource       = "source"
	KeyArea         = "area"
	KeySeverity     = "severity"
	KeyActive       = "active"

	// Refresh engine
	KeySignal   = "signal"
	KeyScenario = "scenario"
	KeyTick     = "tick"

	KeySink       = "sink"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

func Task(name string) slog.Attr { return slog.String(KeyTask, name) }

func Step(name string) slog.Attr { return slog.String(KeyStep, name) }

func Item(path string) slog.Attr { return slog.String(KeyItem, path) }

// Handle formats an item handle as hex so generation and slot stay readable.
func Handle(h uint64) slog.Attr { return slog.String(KeyHandle, fmt.Sprintf("0x%016x", h)) }

func Condition(id uint32) slog.Attr { return slog.String(KeyCondition, fmt.Sprintf("0x%x", id)) }

func SubCondition(id uint32) slog.Attr {
	return slog.String(KeySubCondition, fmt.Sprintf("0x%x", id))
}

func Source(id uint32) slog.Attr { return slog.String(KeySource, fmt.Sprintf("0x%x", id)) }

func Signal(name string) slog.Attr { return slog.String(KeySignal, name) }

func Scenario(name string) slog.Attr { return slog.String(KeyScenario, name) }

func Tick(n uint64) slog.Attr { return slog.Uint64(KeyTick, n) }

func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }

func Sink(name string) slog.Attr { return slog.String(KeySink, name) }

func DurationMs(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(d.Microseconds())/1000.0)
}

// Err returns an error attribute; a nil error yields an empty attr the handlers skip.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }
