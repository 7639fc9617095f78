package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	defaultAuditResourceLimit = 20
	auditPrefix               = uriScheme + "audit/"
)

// registerResources registers the sources listing and, when auditing is
// enabled, the audit run resources
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Evidence sources and their availability",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	if s.audit == nil {
		return
	}

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         uriScheme + "audit",
		Name:        "audit-runs",
		Description: "Most recent ranking runs",
		MIMEType:    "application/json",
	}, s.handleAuditListResource)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "audit/{runId}",
		Name:        "audit-run",
		Description: "A recorded ranking run with its excluded candidates and reasons",
		MIMEType:    "application/json",
	}, s.handleAuditRunResource)
}

func (s *Server) handleSourcesResource(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ranker.Sources())
}

func (s *Server) handleAuditListResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	runs, err := s.audit.List(ctx, defaultAuditResourceLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("listing audit runs: %w", err)
	}
	if runs == nil {
		runs = []*domain.AuditRecord{}
	}
	return jsonResource(req.Params.URI, runs)
}

func (s *Server) handleAuditRunResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	runID := extractRunID(req.Params.URI)
	if runID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	rec, err := s.audit.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("reading audit run: %w", err)
	}
	return jsonResource(req.Params.URI, rec)
}

// extractRunID returns the run ID of a ddx://audit/{runId} URI, or ""
func extractRunID(uri string) string {
	if !strings.HasPrefix(uri, auditPrefix) {
		return ""
	}
	id := strings.TrimPrefix(uri, auditPrefix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
