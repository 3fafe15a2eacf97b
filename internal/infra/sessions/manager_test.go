package sessions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolgate/internal/domain"
)

// memoryLauncher hosts in-process MCP servers keyed by backend name, so the
// manager exercises the full connect/handshake/list path without spawning
// subprocesses.
type memoryLauncher struct {
	servers map[string]*mcp.Server
	failFor map[string]error
	calls   map[string]int
}

func newMemoryLauncher() *memoryLauncher {
	return &memoryLauncher{
		servers: make(map[string]*mcp.Server),
		failFor: make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (l *memoryLauncher) Launch(name string, _ domain.BackendConfig) (mcp.Transport, error) {
	l.calls[name]++
	if err := l.failFor[name]; err != nil {
		return nil, err
	}
	server := l.servers[name]
	if server == nil {
		return nil, fmt.Errorf("no backend %q", name)
	}
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	if _, err := server.Connect(context.Background(), serverTransport, nil); err != nil {
		return nil, err
	}
	return clientTransport, nil
}

func newBackendServer(tools ...string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "backend", Version: "0.1.0"}, &mcp.ServerOptions{HasTools: true})
	for _, name := range tools {
		addEchoTool(server, name)
	}
	return server
}

func addEchoTool(server *mcp.Server, name string) {
	server.AddTool(&mcp.Tool{
		Name:        name,
		Description: "echo " + name,
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "ok:" + name}},
		}, nil
	})
}

func newTestManager(launcher Launcher) *Manager {
	return NewManager(ManagerOptions{
		Launcher:       launcher,
		Logger:         zap.NewNop(),
		ConnectTimeout: 5 * time.Second,
		ExecuteTimeout: 5 * time.Second,
	})
}

func TestManager_ConnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	launcher.servers["echo"] = newBackendServer("ping")
	manager := newTestManager(launcher)
	defer manager.DisconnectAll(ctx)

	cfg := domain.BackendConfig{Command: "echo-server"}
	require.NoError(t, manager.Connect(ctx, "echo", cfg))
	require.NoError(t, manager.Connect(ctx, "echo", cfg))

	assert.Equal(t, 1, launcher.calls["echo"], "second connect must not redial")
	assert.True(t, manager.IsConnected("echo"))

	tools := manager.CachedTools("echo")
	require.Len(t, tools, 1)
	assert.Equal(t, "ping", tools[0].Name)
}

func TestManager_FailedConnectLeavesNoSession(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	launcher.failFor["flaky"] = fmt.Errorf("spawn refused")
	manager := newTestManager(launcher)
	defer manager.DisconnectAll(ctx)

	err := manager.Connect(ctx, "flaky", domain.BackendConfig{Command: "bad"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConnection))
	assert.False(t, manager.IsConnected("flaky"))

	statuses := manager.Statuses()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Connected)
	assert.Contains(t, statuses[0].LastError, "spawn refused")

	// A good config after a failed attempt connects cleanly.
	delete(launcher.failFor, "flaky")
	launcher.servers["flaky"] = newBackendServer("ping")
	require.NoError(t, manager.Connect(ctx, "flaky", domain.BackendConfig{Command: "good"}))
	assert.True(t, manager.IsConnected("flaky"))
}

func TestManager_MockModeSynthesizesStaticTools(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(ManagerOptions{
		Launcher: newMemoryLauncher(),
		Logger:   zap.NewNop(),
		MockMode: true,
	})

	require.NoError(t, manager.Connect(ctx, "context7", domain.BackendConfig{Command: "npx"}))
	assert.False(t, manager.IsConnected("context7"))

	tools := manager.CachedTools("context7")
	require.Len(t, tools, 2)
	assert.Equal(t, "resolve-library-id", tools[0].Name)
	assert.Equal(t, "get-library-docs", tools[1].Name)

	require.NoError(t, manager.Connect(ctx, "unknown", domain.BackendConfig{Command: "npx"}))
	assert.Empty(t, manager.CachedTools("unknown"))

	statuses := manager.Statuses()
	require.Len(t, statuses, 2)
	assert.Contains(t, statuses[0].LastError, "mock mode")
}

func TestManager_RefreshReplacesCachedListWholesale(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	server := newBackendServer("first")
	launcher.servers["echo"] = server
	manager := newTestManager(launcher)
	defer manager.DisconnectAll(ctx)

	require.NoError(t, manager.Connect(ctx, "echo", domain.BackendConfig{Command: "echo-server"}))
	require.Len(t, manager.CachedTools("echo"), 1)

	addEchoTool(server, "second")

	tools, err := manager.Refresh(ctx, "echo")
	require.NoError(t, err)
	assert.Len(t, tools, 2)
	assert.Len(t, manager.CachedTools("echo"), 2)
}

func TestManager_RefreshRequiresLiveSession(t *testing.T) {
	manager := newTestManager(newMemoryLauncher())

	_, err := manager.Refresh(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.True(t, domain.IsCode(err, domain.CodeConnection))
}

func TestManager_ExecuteForwardsCall(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	launcher.servers["echo"] = newBackendServer("ping")
	manager := newTestManager(launcher)
	defer manager.DisconnectAll(ctx)

	require.NoError(t, manager.Connect(ctx, "echo", domain.BackendConfig{Command: "echo-server"}))

	result, err := manager.Execute(ctx, "echo", "ping", map[string]any{})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "ok:ping", text.Text)
}

func TestManager_ExecuteReconnectsWithStoredConfig(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	launcher.servers["echo"] = newBackendServer("ping")
	manager := newTestManager(launcher)
	defer manager.DisconnectAll(ctx)

	require.NoError(t, manager.Connect(ctx, "echo", domain.BackendConfig{Command: "echo-server"}))
	require.NoError(t, manager.Disconnect(ctx, "echo"))
	assert.False(t, manager.IsConnected("echo"))

	result, err := manager.Execute(ctx, "echo", "ping", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, launcher.calls["echo"], "execute must reconnect once from stored config")
	assert.True(t, manager.IsConnected("echo"))
}

func TestManager_ExecuteUnknownBackend(t *testing.T) {
	manager := newTestManager(newMemoryLauncher())

	_, err := manager.Execute(context.Background(), "ghost", "ping", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
	assert.True(t, domain.IsCode(err, domain.CodeNotFound))
}

func TestManager_ExecuteReconnectFailurePropagates(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	launcher.servers["echo"] = newBackendServer("ping")
	manager := newTestManager(launcher)

	require.NoError(t, manager.Connect(ctx, "echo", domain.BackendConfig{Command: "echo-server"}))
	require.NoError(t, manager.Disconnect(ctx, "echo"))

	launcher.failFor["echo"] = fmt.Errorf("spawn refused")
	_, err := manager.Execute(ctx, "echo", "ping", nil)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeConnection))
}

func TestManager_DisconnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	launcher.servers["a"] = newBackendServer("one")
	launcher.servers["b"] = newBackendServer("two")
	manager := newTestManager(launcher)

	require.NoError(t, manager.Connect(ctx, "a", domain.BackendConfig{Command: "a"}))
	require.NoError(t, manager.Connect(ctx, "b", domain.BackendConfig{Command: "b"}))

	require.NoError(t, manager.DisconnectAll(ctx))
	assert.False(t, manager.IsConnected("a"))
	assert.False(t, manager.IsConnected("b"))

	// Registrations survive teardown so backends can reconnect later.
	_, ok := manager.Registration("a")
	assert.True(t, ok)

	require.NoError(t, manager.DisconnectAll(ctx))
	require.NoError(t, manager.Disconnect(ctx, "never-registered"))
}

func TestManager_ExecuteHonorsTimeout(t *testing.T) {
	ctx := context.Background()
	launcher := newMemoryLauncher()
	server := mcp.NewServer(&mcp.Implementation{Name: "backend", Version: "0.1.0"}, &mcp.ServerOptions{HasTools: true})
	server.AddTool(&mcp.Tool{
		Name:        "stall",
		Description: "never answers in time",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		select {
		case <-time.After(5 * time.Second):
			return &mcp.CallToolResult{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	launcher.servers["slow"] = server

	manager := NewManager(ManagerOptions{
		Launcher:       launcher,
		Logger:         zap.NewNop(),
		ConnectTimeout: 5 * time.Second,
		ExecuteTimeout: 100 * time.Millisecond,
	})
	defer manager.DisconnectAll(ctx)

	require.NoError(t, manager.Connect(ctx, "slow", domain.BackendConfig{Command: "slow"}))

	started := time.Now()
	_, err := manager.Execute(ctx, "slow", "stall", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(started), 3*time.Second)
	assert.True(t, domain.IsCode(err, domain.CodeExecution))
}

func TestCommandLauncher_RequiresCommand(t *testing.T) {
	_, err := CommandLauncher{}.Launch("empty", domain.BackendConfig{})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}
