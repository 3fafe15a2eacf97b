package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestMetaKey struct{}

// RequestMeta identifies one inbound request across log lines.
type RequestMeta struct {
	RequestID string
	TraceID   string
	SpanID    string
}

func (m RequestMeta) IsZero() bool {
	return m.RequestID == "" && m.TraceID == "" && m.SpanID == ""
}

// NewRequestID returns a fresh request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// EnsureRequestMeta stamps the context with request metadata, generating a
// request ID when none is present and pulling trace/span IDs from any active
// span.
func EnsureRequestMeta(ctx context.Context) (context.Context, RequestMeta) {
	if existing, ok := requestMetaFrom(ctx); ok {
		return ctx, existing
	}

	meta := RequestMeta{RequestID: NewRequestID()}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		meta.TraceID = spanCtx.TraceID().String()
		meta.SpanID = spanCtx.SpanID().String()
	}
	return context.WithValue(ctx, requestMetaKey{}, meta), meta
}

func requestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok && !meta.IsZero()
}

// LoggerWithRequest attaches request metadata fields from the context.
func LoggerWithRequest(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, ok := requestMetaFrom(ctx)
	if !ok {
		return logger
	}
	fields := make([]zap.Field, 0, 3)
	if meta.RequestID != "" {
		fields = append(fields, RequestIDField(meta.RequestID))
	}
	if meta.TraceID != "" {
		fields = append(fields, TraceIDField(meta.TraceID))
	}
	if meta.SpanID != "" {
		fields = append(fields, SpanIDField(meta.SpanID))
	}
	return logger.With(fields...)
}
