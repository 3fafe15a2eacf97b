package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnsureRequestMeta_GeneratesRequestID(t *testing.T) {
	ctx, meta := EnsureRequestMeta(context.Background())

	require.NotEmpty(t, meta.RequestID)
	assert.Empty(t, meta.TraceID)

	again, metaAgain := EnsureRequestMeta(ctx)
	assert.Equal(t, meta, metaAgain, "stamped context should be reused")
	assert.Equal(t, ctx, again)
}

func TestEnsureRequestMeta_DistinctPerRequest(t *testing.T) {
	_, first := EnsureRequestMeta(context.Background())
	_, second := EnsureRequestMeta(context.Background())

	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestLoggerWithRequest_AppendsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx, meta := EnsureRequestMeta(context.Background())
	LoggerWithRequest(ctx, logger).Info("handled")

	entries := logs.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, meta.RequestID, fields[FieldRequestID])
	_, hasTrace := fields[FieldTraceID]
	assert.False(t, hasTrace, "no active span, trace id should be absent")
}

func TestLoggerWithRequest_NilLogger(t *testing.T) {
	ctx, _ := EnsureRequestMeta(context.Background())
	logger := LoggerWithRequest(ctx, nil)
	require.NotNil(t, logger)
	logger.Info("must not panic")
}

func TestLoggerWithRequest_UnstampedContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	LoggerWithRequest(context.Background(), logger).Info("plain")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Context)
}
