package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
)

const (
	ToolRankDifferential = "rank_differential"
	ToolJustify          = "justify_diagnosis"
	ToolListSources      = "list_sources"
)

// RankInput is the input schema for the rank_differential tool
type RankInput struct {
	Symptoms     []string          `json:"symptoms" jsonschema:"presenting symptoms in plain language"`
	Negations    []string          `json:"negations,omitempty" jsonschema:"symptoms the patient denies"`
	Gender       string            `json:"gender,omitempty" jsonschema:"patient gender, male or female"`
	Age          *int              `json:"age,omitempty" jsonschema:"patient age in years"`
	Labs         map[string]string `json:"labs,omitempty" jsonschema:"lab results and vitals keyed by test name, e.g. troponin: normal or spo2: 88"`
	ClinicalText string            `json:"clinical_text,omitempty" jsonschema:"free-text clinical note used for justifications"`
	TopK         int               `json:"top_k,omitempty" jsonschema:"number of diagnoses to return (default 5)"`
}

// RankOutput is the output schema for the rank_differential tool
type RankOutput struct {
	RunID      string                       `json:"run_id"`
	Candidates []*domain.DiagnosisCandidate `json:"candidates"`
	Excluded   []*domain.DiagnosisCandidate `json:"excluded"`
	RedFlags   []domain.RedFlag             `json:"red_flags"`
	Sources    []domain.SourceStat          `json:"sources"`
	Cached     bool                         `json:"cached"`
}

// JustifyInput is the input schema for the justify_diagnosis tool
type JustifyInput struct {
	ClinicalText string   `json:"clinical_text" jsonschema:"clinical note to search"`
	Terms        []string `json:"terms,omitempty" jsonschema:"symptom terms supporting the diagnosis"`
}

// JustifyOutput is the output schema for the justify_diagnosis tool
type JustifyOutput struct {
	Justification string `json:"justification"`
}

// ListSourcesInput is the (empty) input schema for the list_sources tool
type ListSourcesInput struct{}

// ListSourcesOutput is the output schema for the list_sources tool
type ListSourcesOutput struct {
	Sources []domain.SourceStat `json:"sources"`
}

// registerTools registers all tool handlers with the MCP server
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolRankDifferential,
		Description: "Rank a differential diagnosis for a patient from symptoms, negations, demographics, labs and an optional clinical note",
	}, s.handleRank)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolJustify,
		Description: "Extract the sentences of a clinical note that support a diagnosis",
	}, s.handleJustify)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolListSources,
		Description: "List the evidence sources and whether their corpora loaded",
	}, s.handleListSources)
}

// Profile converts tool input to a patient profile
func (in RankInput) Profile() *domain.PatientProfile {
	profile := &domain.PatientProfile{
		Symptoms:     in.Symptoms,
		Negations:    in.Negations,
		Labs:         in.Labs,
		ClinicalText: in.ClinicalText,
	}
	if in.Gender != "" || in.Age != nil {
		profile.Demographics = &domain.Demographics{Gender: in.Gender, Age: in.Age}
	}
	return profile
}

func (s *Server) handleRank(ctx context.Context, _ *mcp.CallToolRequest, input RankInput) (*mcp.CallToolResult, RankOutput, error) {
	result, err := s.ranker.RankDetailed(ctx, input.Profile(), input.TopK)
	if err != nil {
		s.logger.WithError(err).Warn("rank_differential failed")
		return nil, RankOutput{}, fmt.Errorf("ranking failed: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tool":       ToolRankDifferential,
		"run_id":     result.RunID,
		"candidates": len(result.Candidates),
	}).Debug("Tool call served")

	return nil, RankOutput{
		RunID:      result.RunID,
		Candidates: nonNil(result.Candidates),
		Excluded:   nonNil(result.Excluded),
		RedFlags:   append([]domain.RedFlag{}, result.RedFlags...),
		Sources:    append([]domain.SourceStat{}, result.Sources...),
		Cached:     result.Cached,
	}, nil
}

func (s *Server) handleJustify(_ context.Context, _ *mcp.CallToolRequest, input JustifyInput) (*mcp.CallToolResult, JustifyOutput, error) {
	return nil, JustifyOutput{Justification: s.ranker.Justify(input.ClinicalText, input.Terms)}, nil
}

func (s *Server) handleListSources(_ context.Context, _ *mcp.CallToolRequest, _ ListSourcesInput) (*mcp.CallToolResult, ListSourcesOutput, error) {
	return nil, ListSourcesOutput{Sources: append([]domain.SourceStat{}, s.ranker.Sources()...)}, nil
}

func nonNil(in []*domain.DiagnosisCandidate) []*domain.DiagnosisCandidate {
	if in == nil {
		return []*domain.DiagnosisCandidate{}
	}
	return in
}
