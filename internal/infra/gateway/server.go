package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/discovery"
	"toolgate/internal/infra/gating"
	"toolgate/internal/infra/router"
	"toolgate/internal/infra/sessions"
	"toolgate/internal/infra/telemetry"
)

const (
	defaultServerName    = "toolgate"
	defaultServerVersion = "0.0.0-dev"
)

// Registrar persists backend registrations added at runtime. A nil Registrar
// disables persistence; add_backend still connects and discovers.
type Registrar interface {
	Put(reg domain.Registration) error
}

// ServerOptions configures a gateway Server.
type ServerOptions struct {
	Sessions  *sessions.Manager
	Router    *router.Router
	Discovery *discovery.Engine
	Gating    *gating.Engine
	Registrar Registrar
	Logger    *zap.Logger
	Name      string
	Version   string
}

// Server is the MCP face of the gateway: one stdio server whose meta-tools
// wrap discovery, gating, execution, and backend management, so the agent
// talks to this single endpoint instead of to every backend directly.
type Server struct {
	sessions  *sessions.Manager
	router    *router.Router
	discovery *discovery.Engine
	gating    *gating.Engine
	registrar Registrar
	logger    *zap.Logger
	server    *mcp.Server
}

// NewServer assembles the meta-tool surface over the given components.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.Name
	if name == "" {
		name = defaultServerName
	}
	version := opts.Version
	if version == "" {
		version = defaultServerVersion
	}

	s := &Server{
		sessions:  opts.Sessions,
		router:    opts.Router,
		discovery: opts.Discovery,
		gating:    opts.Gating,
		registrar: opts.Registrar,
		logger:    logger.Named("gateway"),
	}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, &mcp.ServerOptions{
		HasTools: true,
	})
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	bindings := []struct {
		tool    mcp.Tool
		handler mcp.ToolHandler
	}{
		{DiscoverTool(), s.handleDiscover},
		{ProvisionTool(), s.handleProvision},
		{ExecuteTool(), s.handleExecute},
		{RegisterTool(), s.handleRegister},
		{AddBackendTool(), s.handleAddBackend},
		{ListBackendsTool(), s.handleListBackends},
		{ClearCatalogTool(), s.handleClearCatalog},
	}
	for _, binding := range bindings {
		tool := binding.tool
		s.server.AddTool(&tool, stampRequest(binding.handler))
	}
}

// stampRequest tags each tool call with request metadata so every log line
// a handler emits carries the same request id.
func stampRequest(handler mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, _ = telemetry.EnsureRequestMeta(ctx)
		return handler(ctx, req)
	}
}

// Run serves the gateway over stdio until ctx is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("gateway starting (stdio transport)")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect binds the gateway to a single transport and returns the session.
// Run is the usual entry point; Connect serves in-process clients.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
