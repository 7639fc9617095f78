package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const PromptDifferentialReview = "differential_review"

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        PromptDifferentialReview,
		Description: "Review a ranked differential against the patient presentation",
		Arguments: []*mcp.PromptArgument{
			{Name: "symptoms", Description: "comma-separated presenting symptoms", Required: true},
			{Name: "negations", Description: "comma-separated denied symptoms"},
			{Name: "context", Description: "age, gender, labs or other notes"},
		},
	}, s.handleDifferentialReviewPrompt)
}

func (s *Server) handleDifferentialReviewPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	symptoms := strings.TrimSpace(args["symptoms"])
	if symptoms == "" {
		return nil, fmt.Errorf("symptoms argument is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A patient presents with: %s.\n", symptoms)
	if negations := strings.TrimSpace(args["negations"]); negations != "" {
		fmt.Fprintf(&b, "The patient denies: %s.\n", negations)
	}
	if extra := strings.TrimSpace(args["context"]); extra != "" {
		fmt.Fprintf(&b, "Additional context: %s.\n", extra)
	}
	fmt.Fprintf(&b, "\nCall the %s tool with these findings. Then review the ranked candidates: "+
		"state which are best supported, which excluded candidates deserve a second look, "+
		"and address every red flag before anything else.", ToolRankDifferential)

	return &mcp.GetPromptResult{
		Description: "Differential diagnosis review",
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: b.String()},
		}},
	}, nil
}
