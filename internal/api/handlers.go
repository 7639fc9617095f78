package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/domain"
	"github.com/ddx-ranking-engine/internal/middleware"
)

const (
	defaultAuditPage = 20
	maxAuditPage     = 100
)

// RankRequest is the body of POST /api/v1/rank
type RankRequest struct {
	Profile *domain.PatientProfile `json:"profile" binding:"required"`
	TopK    int                    `json:"top_k"`
}

// JustifyRequest is the body of POST /api/v1/justify
type JustifyRequest struct {
	ClinicalText string   `json:"clinical_text"`
	Terms        []string `json:"terms"`
}

// AuditPage is the response of GET /api/v1/audit
type AuditPage struct {
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Runs   []*domain.AuditRecord `json:"runs"`
}

func (s *Server) handleSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.ranker.Sources()})
}

func (s *Server) handleRank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, domain.ErrMalformedProfile, "request body must carry a profile", err)
		return
	}

	result, err := s.ranker.RankDetailed(c.Request.Context(), req.Profile, req.TopK)
	if err != nil {
		var validation *domain.ValidationError
		switch {
		case errors.As(err, &validation), errors.Is(err, domain.ErrProfileRequired):
			s.abort(c, http.StatusBadRequest, domain.ErrMalformedProfile, "invalid patient profile", err)
		case errors.Is(err, context.DeadlineExceeded):
			s.abort(c, http.StatusGatewayTimeout, domain.ErrTimeout, "ranking timed out", err)
		case errors.Is(err, context.Canceled):
			s.abort(c, http.StatusServiceUnavailable, domain.ErrTimeout, "request cancelled", err)
		default:
			s.logger.WithError(err).WithField("correlation_id", middleware.GetCorrelationID(c)).Error("Ranking failed")
			s.abort(c, http.StatusInternalServerError, domain.ErrInternalServer, "ranking failed", err)
		}
		return
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": middleware.GetCorrelationID(c),
		"run_id":         result.RunID,
		"cached":         result.Cached,
	}).Debug("Ranking served")
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleJustify(c *gin.Context) {
	var req JustifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "malformed justify request", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"justification": s.ranker.Justify(req.ClinicalText, req.Terms)})
}

func (s *Server) handleListAudit(c *gin.Context) {
	if s.audit == nil {
		s.abort(c, http.StatusServiceUnavailable, domain.ErrAuditDisabled, "audit trail is disabled", nil)
		return
	}
	limit, err := queryInt(c, "limit", defaultAuditPage)
	if err != nil || limit <= 0 {
		s.abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "limit must be a positive integer", err)
		return
	}
	if limit > maxAuditPage {
		limit = maxAuditPage
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.abort(c, http.StatusBadRequest, domain.ErrInvalidInput, "offset must be a non-negative integer", err)
		return
	}

	ctx := c.Request.Context()
	runs, err := s.audit.List(ctx, limit, offset)
	if err != nil {
		s.abort(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to list audit runs", err)
		return
	}
	total, err := s.audit.Count(ctx)
	if err != nil {
		s.abort(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to count audit runs", err)
		return
	}
	if runs == nil {
		runs = []*domain.AuditRecord{}
	}
	c.JSON(http.StatusOK, AuditPage{Total: total, Limit: limit, Offset: offset, Runs: runs})
}

func (s *Server) handleGetAudit(c *gin.Context) {
	if s.audit == nil {
		s.abort(c, http.StatusServiceUnavailable, domain.ErrAuditDisabled, "audit trail is disabled", nil)
		return
	}
	rec, err := s.audit.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.abort(c, http.StatusNotFound, domain.ErrRunNotFound, "audit run not found", nil)
			return
		}
		s.abort(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to read audit run", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
