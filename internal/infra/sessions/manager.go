package sessions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

type backendState struct {
	config  domain.BackendConfig
	session *mcp.ClientSession
	tools   []*mcp.Tool
	lastErr string
	mock    bool
}

type ManagerOptions struct {
	Launcher       Launcher
	Logger         *zap.Logger
	Metrics        domain.Metrics
	ClientName     string
	ClientVersion  string
	ConnectTimeout time.Duration
	ExecuteTimeout time.Duration

	// MockMode disables the transport entirely: connects never fail, and
	// well-known backends get a static tool list. Used for offline
	// operation and test environments.
	MockMode bool
}

// Manager owns one protocol session per backend: open, hold, refresh, and
// close. Session handles never leave the manager.
type Manager struct {
	launcher       Launcher
	logger         *zap.Logger
	metrics        domain.Metrics
	clientName     string
	clientVersion  string
	connectTimeout time.Duration
	executeTimeout time.Duration
	mockMode       bool

	// connectMu serializes every connect attempt across all backends, so
	// two concurrent attempts cannot race to create duplicate sessions.
	// Coarse on purpose: connects are rare, correctness is cheap.
	connectMu sync.Mutex

	mu     sync.RWMutex
	states map[string]*backendState
}

func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = CommandLauncher{}
	}
	clientName := opts.ClientName
	if clientName == "" {
		clientName = "toolgate"
	}
	clientVersion := opts.ClientVersion
	if clientVersion == "" {
		clientVersion = "dev"
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = domain.DefaultConnectTimeoutSeconds * time.Second
	}
	executeTimeout := opts.ExecuteTimeout
	if executeTimeout <= 0 {
		executeTimeout = domain.DefaultExecuteTimeoutSeconds * time.Second
	}
	return &Manager{
		launcher:       launcher,
		logger:         logger.Named("sessions"),
		metrics:        metrics,
		clientName:     clientName,
		clientVersion:  clientVersion,
		connectTimeout: connectTimeout,
		executeTimeout: executeTimeout,
		mockMode:       opts.MockMode,
		states:         make(map[string]*backendState),
	}
}

// Connect opens a session for name, lists its tools, and caches both.
// Idempotent: a live session short-circuits without reconnecting. On failure
// every partially acquired resource is released, the reason is recorded, and
// no session is registered; the config survives for later reconnection.
func (m *Manager) Connect(ctx context.Context, name string, config domain.BackendConfig) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if m.sessionFor(name) != nil {
		return nil
	}

	state := m.ensureState(name, config)

	if m.mockMode {
		tools := mockTools(name)
		m.mu.Lock()
		state.tools = tools
		state.mock = true
		state.lastErr = mockModeReason
		m.mu.Unlock()

		m.logger.Warn("transport disabled, serving static tools",
			telemetry.EventField(telemetry.EventConnectMock),
			telemetry.BackendField(name),
			telemetry.CountField(len(tools)),
		)
		m.metrics.ObserveConnect(name, 0, domain.ConnectOutcomeMock)
		return nil
	}

	m.logger.Debug("connecting backend",
		telemetry.EventField(telemetry.EventConnectAttempt),
		telemetry.BackendField(name),
	)

	started := time.Now()
	session, tools, err := m.open(ctx, name, config)
	if err != nil {
		m.mu.Lock()
		state.tools = nil
		state.lastErr = err.Error()
		m.mu.Unlock()

		m.metrics.ObserveConnect(name, time.Since(started), domain.ConnectOutcomeFailure)
		m.logger.Error("backend connect failed",
			telemetry.EventField(telemetry.EventConnectFailure),
			telemetry.BackendField(name),
			zap.Error(err),
		)
		return domain.E(domain.CodeConnection, "sessions.connect",
			fmt.Sprintf("connect backend %q", name), err)
	}

	m.mu.Lock()
	state.session = session
	state.tools = tools
	state.mock = false
	live := m.liveCountLocked()
	m.mu.Unlock()

	m.metrics.ObserveConnect(name, time.Since(started), domain.ConnectOutcomeSuccess)
	m.metrics.SetLiveSessions(live)
	m.logger.Info("backend connected",
		telemetry.EventField(telemetry.EventConnectSuccess),
		telemetry.BackendField(name),
		telemetry.CountField(len(tools)),
		telemetry.DurationField(time.Since(started)),
	)
	return nil
}

// open dials the backend and lists its tools within the connect budget. Any
// resource acquired before a failure is released before returning, so a
// half-open connect leaves nothing behind.
func (m *Manager) open(ctx context.Context, name string, config domain.BackendConfig) (*mcp.ClientSession, []*mcp.Tool, error) {
	transport, err := m.launcher.Launch(name, config)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: m.clientName, Version: m.clientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("open transport: %w", err)
	}

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		_ = session.Close()
		return nil, nil, fmt.Errorf("list tools: %w", err)
	}
	return session, listed.Tools, nil
}

// Refresh re-lists tools on a live session and replaces the cached list
// wholesale.
func (m *Manager) Refresh(ctx context.Context, name string) ([]*mcp.Tool, error) {
	session := m.sessionFor(name)
	if session == nil {
		return nil, domain.E(domain.CodeConnection, "sessions.refresh", "",
			fmt.Errorf("backend %q: %w", name, domain.ErrNotConnected))
	}

	ctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, domain.E(domain.CodeConnection, "sessions.refresh",
			fmt.Sprintf("list tools for %q", name), err)
	}

	m.mu.Lock()
	if state := m.states[name]; state != nil {
		state.tools = listed.Tools
	}
	m.mu.Unlock()

	m.logger.Debug("tool list refreshed",
		telemetry.EventField(telemetry.EventRefreshSuccess),
		telemetry.BackendField(name),
		telemetry.CountField(len(listed.Tools)),
	)
	return listed.Tools, nil
}

// Execute forwards one tool call through the live session for name. When the
// session is gone but the backend was registered before, a single reconnect
// with the stored config is attempted first; reconnect failures propagate
// unchanged.
func (m *Manager) Execute(ctx context.Context, name, tool string, args map[string]any) (*mcp.CallToolResult, error) {
	session := m.sessionFor(name)
	if session == nil {
		config, registered := m.Registration(name)
		if !registered {
			return nil, domain.E(domain.CodeNotFound, "sessions.execute", "",
				fmt.Errorf("backend %q: %w", name, domain.ErrUnknownBackend))
		}
		if err := m.Connect(ctx, name, config); err != nil {
			return nil, err
		}
		session = m.sessionFor(name)
		if session == nil {
			return nil, domain.E(domain.CodeConnection, "sessions.execute",
				fmt.Sprintf("backend %q is unavailable", name), domain.ErrNotConnected)
		}
	}

	if args == nil {
		args = map[string]any{}
	}

	callCtx, cancel := context.WithTimeout(ctx, m.executeTimeout)
	defer cancel()

	started := time.Now()
	result, err := session.CallTool(callCtx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		m.metrics.ObserveExecute(name, time.Since(started), domain.ExecuteStatusError)
		m.logger.Warn("tool call failed",
			telemetry.EventField(telemetry.EventExecuteFailure),
			telemetry.BackendField(name),
			telemetry.ToolField(tool),
			zap.Error(err),
		)
		return nil, domain.E(domain.CodeExecution, "sessions.execute",
			fmt.Sprintf("call %q on backend %q", tool, name), err)
	}

	m.metrics.ObserveExecute(name, time.Since(started), domain.ExecuteStatusSuccess)
	m.logger.Debug("tool call forwarded",
		telemetry.EventField(telemetry.EventExecuteSuccess),
		telemetry.BackendField(name),
		telemetry.ToolField(tool),
		telemetry.DurationField(time.Since(started)),
	)
	return result, nil
}

// Disconnect tears down the session for name. The registration and its
// config survive so a later connect can reuse them. Safe to call for unknown
// or already disconnected backends.
func (m *Manager) Disconnect(ctx context.Context, name string) error {
	m.mu.Lock()
	state := m.states[name]
	if state == nil {
		m.mu.Unlock()
		return nil
	}
	session := state.session
	state.session = nil
	state.tools = nil
	state.mock = false
	live := m.liveCountLocked()
	m.mu.Unlock()

	if session == nil {
		return nil
	}

	m.metrics.SetLiveSessions(live)
	m.logger.Info("backend disconnected",
		telemetry.EventField(telemetry.EventDisconnect),
		telemetry.BackendField(name),
	)
	return m.closeSession(ctx, session)
}

// DisconnectAll tears down every known backend. Each teardown is attempted
// regardless of earlier failures; errors are joined, never short-circuited.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	var errs []error
	for _, name := range m.Backends() {
		if err := m.Disconnect(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) closeSession(ctx context.Context, session *mcp.ClientSession) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Close()
	}()
	select {
	case err := <-done:
		if err != nil {
			m.logger.Warn("session close reported error", zap.Error(err))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CachedTools returns the raw descriptors captured at connect or refresh
// time. The slice is a copy; the descriptors themselves are shared and must
// be treated as read-only.
func (m *Manager) CachedTools(name string) []*mcp.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := m.states[name]
	if state == nil || len(state.tools) == 0 {
		return nil
	}
	out := make([]*mcp.Tool, len(state.tools))
	copy(out, state.tools)
	return out
}

// Backends returns every registered backend name in sorted order, connected
// or not.
func (m *Manager) Backends() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) IsConnected(name string) bool {
	return m.sessionFor(name) != nil
}

// Registration returns the stored transport config for name.
func (m *Manager) Registration(name string) (domain.BackendConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := m.states[name]
	if state == nil {
		return domain.BackendConfig{}, false
	}
	return state.config, true
}

// Statuses reports every known backend in name order.
func (m *Manager) Statuses() []domain.BackendStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.BackendStatus, 0, len(names))
	for _, name := range names {
		state := m.states[name]
		out = append(out, domain.BackendStatus{
			Name:      name,
			Connected: state.session != nil,
			ToolCount: len(state.tools),
			LastError: state.lastErr,
		})
	}
	return out
}

func (m *Manager) sessionFor(name string) *mcp.ClientSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if state := m.states[name]; state != nil {
		return state.session
	}
	return nil
}

func (m *Manager) ensureState(name string, config domain.BackendConfig) *backendState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.states[name]
	if state == nil {
		state = &backendState{}
		m.states[name] = state
	}
	state.config = config
	state.lastErr = ""
	return state
}

func (m *Manager) liveCountLocked() int {
	count := 0
	for _, state := range m.states {
		if state.session != nil {
			count++
		}
	}
	return count
}
