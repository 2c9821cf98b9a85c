package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent      = "event"
	FieldEndpoint   = "endpoint"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMs = "duration_ms"
	FieldLogSource  = "log_source"
	FieldLoggerName = "logger_name"
	FieldLevel      = "level"
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
)

const (
	EventDumpStart     = "dump_start"
	EventDumpSuccess   = "dump_success"
	EventDumpFailure   = "dump_failure"
	EventLevelChange   = "level_change"
	EventLevelRejected = "level_rejected"
	EventConfigReload  = "config_reload"
)

const (
	LogSourceCore    = "core"
	LogSourceService = "service"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func EndpointField(endpoint string) zap.Field {
	return zap.String(FieldEndpoint, endpoint)
}

func MethodField(method string) zap.Field {
	return zap.String(FieldMethod, method)
}

func PathField(path string) zap.Field {
	return zap.String(FieldPath, path)
}

func StatusField(status int) zap.Field {
	return zap.Int(FieldStatus, status)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func LoggerNameField(name string) zap.Field {
	return zap.String(FieldLoggerName, name)
}

func LevelField(level string) zap.Field {
	return zap.String(FieldLevel, level)
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
