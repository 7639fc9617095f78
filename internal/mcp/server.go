// Package mcp exposes the ranking engine as a Model Context Protocol server
package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	ServerName    = "ddx-ranking-engine"
	ServerVersion = "v1.0.0"

	uriScheme = "ddx://"
)

// ErrMissingRanker is returned when the server is built without an engine
var ErrMissingRanker = errors.New("ranking engine is required")

// Server represents the differential diagnosis MCP server
type Server struct {
	ranker    domain.DiagnosisRanker
	audit     domain.AuditStore
	logger    *logrus.Logger
	mcpServer *mcp.Server
}

// NewServer creates a new MCP server. A nil audit store leaves the audit
// resource unregistered.
func NewServer(ranker domain.DiagnosisRanker, audit domain.AuditStore, logger *logrus.Logger) (*Server, error) {
	if ranker == nil {
		return nil, ErrMissingRanker
	}
	if logger == nil {
		logger = logrus.New()
	}

	serverInfo := &mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}

	s := &Server{
		ranker:    ranker,
		audit:     audit,
		logger:    logger,
		mcpServer: mcp.NewServer(serverInfo, nil),
	}

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	logger.WithField("audit_enabled", audit != nil).Info("MCP server initialized")
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting MCP server on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over the given transport
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}
