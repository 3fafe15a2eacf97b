package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldBackend    = "backend"
	FieldTool       = "tool"
	FieldQueryID    = "query_id"
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldLogSource  = "log_source"
	FieldStream     = "stream"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventConnectAttempt  = "connect_attempt"
	EventConnectSuccess  = "connect_success"
	EventConnectFailure  = "connect_failure"
	EventConnectMock     = "connect_mock"
	EventRefreshSuccess  = "refresh_success"
	EventDiscoverSuccess = "discover_success"
	EventDiscoverSkipped = "discover_skipped"
	EventExecuteSuccess  = "execute_success"
	EventExecuteFailure  = "execute_failure"
	EventSearchComplete  = "search_complete"
	EventGateComplete    = "gate_complete"
	EventDisconnect      = "disconnect"
	EventRegistryReload  = "registry_reload"
	EventAdvisorFallback = "advisor_fallback"
)

const (
	LogSourceCore       = "core"
	LogSourceDownstream = "downstream"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func BackendField(backend string) zap.Field {
	return zap.String(FieldBackend, backend)
}

func ToolField(tool string) zap.Field {
	return zap.String(FieldTool, tool)
}

func QueryIDField(id string) zap.Field {
	return zap.String(FieldQueryID, id)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func CountField(count int) zap.Field {
	return zap.Int(FieldCount, count)
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}

func TraceIDField(value string) zap.Field {
	return zap.String(FieldTraceID, value)
}

func SpanIDField(value string) zap.Field {
	return zap.String(FieldSpanID, value)
}
