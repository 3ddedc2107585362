package mcp

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/hookroute/internal/admission"
	"github.com/ppiankov/hookroute/internal/denylist"
	"github.com/ppiankov/hookroute/internal/dispatch"
	"github.com/ppiankov/hookroute/internal/intent"
	"github.com/ppiankov/hookroute/internal/ledger"
	"github.com/ppiankov/hookroute/internal/logging"
	"github.com/ppiankov/hookroute/internal/model"
	"github.com/ppiankov/hookroute/internal/priority"
)

// Registry is the handler lookup the server needs. *registry.Registry
// satisfies it.
type Registry interface {
	Resolve(name string) (model.HandlerDescriptor, error)
	List() []model.HandlerDescriptor
}

// Snapshotter reads the usage ledger without charging it.
type Snapshotter interface {
	Snapshot(ctx context.Context) (ledger.State, error)
}

// Config holds the components the MCP tools run against.
type Config struct {
	Dispatcher *dispatch.Dispatcher
	Classifier *intent.Classifier
	Registry   Registry
	Ledger     Snapshotter
	Bands      admission.Bands
	Ceilings   priority.Ceilings
	Denylist   *denylist.Denylist // nil uses the built-in patterns
	Version    string
	Logger     *zap.Logger
}

// Server wraps the MCP SDK server with the hookroute dispatcher.
type Server struct {
	mcpServer  *mcpsdk.Server
	dispatcher *dispatch.Dispatcher
	classifier *intent.Classifier
	registry   Registry
	ledger     Snapshotter
	bands      admission.Bands
	ceilings   priority.Ceilings
	dl         *denylist.Denylist
	logger     *zap.Logger
}

// New creates an MCP server and registers its tools.
func New(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil || cfg.Classifier == nil || cfg.Registry == nil || cfg.Ledger == nil {
		return nil, errors.New("mcp: dispatcher, classifier, registry and ledger are required")
	}
	if err := cfg.Bands.Validate(); err != nil {
		return nil, err
	}
	dl := cfg.Denylist
	if dl == nil {
		dl = denylist.NewDefault()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		dispatcher: cfg.Dispatcher,
		classifier: cfg.Classifier,
		registry:   cfg.Registry,
		ledger:     cfg.Ledger,
		bands:      cfg.Bands,
		ceilings:   cfg.Ceilings,
		dl:         dl,
		logger:     logging.OrNop(cfg.Logger).Named("mcp"),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "hookroute",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all hookroute tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hookroute_dispatch",
		Description: "Route an operation to a handler through admission control. Derives the handler from the description or prompt when no name is given. Blocked security work and rejected delegations are returned as errors.",
	}, s.handleDispatch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hookroute_classify",
		Description: "Dry run: show which handler, priority and admission verdict a request would get. Charges nothing and writes no audit record.",
	}, s.handleClassify)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hookroute_status",
		Description: "Report resource usage, the current admission band and recent operations.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "hookroute_guard",
		Description: "Check a tool call (command, file path or URL) against the denylist.",
	}, s.handleGuard)
}
