package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seo-engine/backend/competitor"
	"github.com/seo-engine/backend/middleware"
	"github.com/seo-engine/backend/store"
)

type urlRequest struct {
	URL string `json:"url" binding:"required,url"`
}

type metricsRequest struct {
	From string            `json:"from" binding:"required"`
	To   string            `json:"to" binding:"required"`
	Rows []store.MetricRow `json:"rows" binding:"dive"`
}

type ga4Request struct {
	From string         `json:"from" binding:"required"`
	To   string         `json:"to" binding:"required"`
	Rows []store.GA4Row `json:"rows" binding:"dive"`
}

func (s *Server) health(c *gin.Context) {
	database := "ok"
	if err := s.deps.Repository.Ping(c.Request.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("database ping failed")
		database = "unavailable"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"database":          database,
		"search_configured": s.deps.SearchConfigured,
		"cache":             s.deps.CacheBackend,
	})
}

func (s *Server) statistics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"requests":   s.deps.Requests.Snapshot(s.deps.DevMode),
		"extraction": s.deps.Usage.GetCurrentStats(),
	})
}

func (s *Server) features(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL provided"})
		return
	}
	c.Set(middleware.PageURLKey, req.URL)

	features := s.deps.Extractor.ExtractPageFeatures(c.Request.Context(), req.URL)
	if features == nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not fetch or parse the page"})
		return
	}
	c.JSON(http.StatusOK, features)
}

func (s *Server) replaceMetrics(c *gin.Context) {
	siteID, ok := siteParam(c)
	if !ok {
		return
	}
	var req metricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Repository.ReplaceMetricRows(c.Request.Context(), siteID, req.From, req.To, req.Rows); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replaced": len(req.Rows), "from": req.From, "to": req.To})
}

func (s *Server) replaceGA4(c *gin.Context) {
	siteID, ok := siteParam(c)
	if !ok {
		return
	}
	var req ga4Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Repository.ReplaceGA4Rows(c.Request.Context(), siteID, req.From, req.To, req.Rows); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replaced": len(req.Rows), "from": req.From, "to": req.To})
}

func (s *Server) evaluate(c *gin.Context) {
	siteID, ok := siteParam(c)
	if !ok {
		return
	}
	issues, err := s.deps.Diagnostics.EvaluateSite(c.Request.Context(), siteID, c.Query("by") == "query")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(issues), "issues": issues})
}

func (s *Server) competitors(c *gin.Context) {
	siteID, ok := siteParam(c)
	if !ok {
		return
	}
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL provided"})
		return
	}
	c.Set(middleware.PageURLKey, req.URL)

	analysis, err := s.deps.Diagnostics.AnalyzeCompetitors(c.Request.Context(), siteID, req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) deepAnalysis(c *gin.Context) {
	siteID, ok := siteParam(c)
	if !ok {
		return
	}
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL provided"})
		return
	}
	c.Set(middleware.PageURLKey, req.URL)

	analysis, err := s.deps.Diagnostics.DeepAnalysis(c.Request.Context(), siteID, req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) listIssues(c *gin.Context) {
	siteID, ok := siteParam(c)
	if !ok {
		return
	}
	var limit uint64
	if raw := c.Query("limit"); raw != "" {
		var err error
		if limit, err = strconv.ParseUint(raw, 10, 32); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
	}
	issues, err := s.deps.Repository.ListIssues(c.Request.Context(), siteID, uint(limit))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(issues), "issues": issues})
}

func siteParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "site id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// fail maps pipeline errors to responses. A missing prerequisite is an
// expected outcome and is answered with a status, not logged as an error.
func (s *Server) fail(c *gin.Context, err error) {
	if cannot, ok := competitor.AsCannotAnalyze(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "cannot_analyze", "reason": cannot.Reason})
		return
	}
	if errors.Is(err, store.ErrInvalidWindow) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred"})
}
