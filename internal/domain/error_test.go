package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op code message",
			err:  E(CodeConnection, "sessions.connect", "dial failed", nil),
			want: "sessions.connect: CONNECTION: dial failed",
		},
		{
			name: "message from cause",
			err:  E(CodeExecution, "router.execute", "", errors.New("boom")),
			want: "router.execute: EXECUTION: boom",
		},
		{
			name: "no op",
			err:  E(CodeValidation, "", "limit out of range", nil),
			want: "VALIDATION: limit out of range",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap_KeepsExistingError(t *testing.T) {
	inner := E(CodeNotFound, "catalog.get", "no such tool", nil)
	wrapped := Wrap(CodeExecution, "router.execute", fmt.Errorf("resolve: %w", inner))

	assert.Equal(t, CodeNotFound, wrapped.Code)
	assert.Equal(t, "catalog.get", wrapped.Op)
}

func TestWrap_FillsOpWhenMissing(t *testing.T) {
	inner := E(CodeConnection, "", "unreachable", nil)
	wrapped := Wrap(CodeExecution, "sessions.execute", inner)

	assert.Equal(t, CodeConnection, wrapped.Code)
	assert.Equal(t, "sessions.execute", wrapped.Op)
}

func TestCodeFrom_Sentinels(t *testing.T) {
	code, ok := CodeFrom(fmt.Errorf("execute: %w", ErrNotConnected))
	require.True(t, ok)
	assert.Equal(t, CodeConnection, code)

	code, ok = CodeFrom(ErrToolNotFound)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, code)

	_, ok = CodeFrom(errors.New("unclassified"))
	assert.False(t, ok)

	assert.True(t, IsCode(E(CodePartialDiscovery, "router.discover", "bad descriptor", nil), CodePartialDiscovery))
}
