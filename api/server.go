// Package api exposes the analysis pipelines over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/seo-engine/backend/analyzer"
	"github.com/seo-engine/backend/diagnostics"
	"github.com/seo-engine/backend/logging"
	"github.com/seo-engine/backend/middleware"
	"github.com/seo-engine/backend/rules"
	"github.com/seo-engine/backend/stats"
	"github.com/seo-engine/backend/store"
)

type Extractor interface {
	ExtractPageFeatures(ctx context.Context, pageURL string) *analyzer.PageFeatures
}

type Diagnostics interface {
	EvaluateSite(ctx context.Context, siteID int64, byQuery bool) ([]rules.Issue, error)
	AnalyzeCompetitors(ctx context.Context, siteID int64, pageURL string) (*diagnostics.Analysis, error)
	DeepAnalysis(ctx context.Context, siteID int64, pageURL string) (*diagnostics.Analysis, error)
}

// Repository is the write side of the store plus issue listing
type Repository interface {
	ReplaceMetricRows(ctx context.Context, siteID int64, from, to string, rows []store.MetricRow) error
	ReplaceGA4Rows(ctx context.Context, siteID int64, from, to string, rows []store.GA4Row) error
	ListIssues(ctx context.Context, siteID int64, limit uint) ([]rules.Issue, error)
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the Server. Usage may be nil.
type Deps struct {
	Extractor        Extractor
	Diagnostics      Diagnostics
	Repository       Repository
	Requests         *logging.Statistics
	Usage            *stats.Storage
	Limiter          *middleware.RateLimiter
	Logger           zerolog.Logger
	DevMode          bool
	SearchConfigured bool
	CacheBackend     string
}

type Server struct {
	deps   Deps
	logger zerolog.Logger
	engine *gin.Engine
}

func NewServer(deps Deps) *Server {
	if deps.Requests == nil {
		deps.Requests = logging.NewStatistics()
	}
	s := &Server{deps: deps, logger: deps.Logger, engine: gin.New()}

	s.engine.Use(middleware.ErrorHandler(s.logger))
	s.engine.Use(middleware.Stats(deps.Requests, s.logger))
	if deps.Limiter != nil {
		s.engine.Use(deps.Limiter.RateLimit())
	}
	s.engine.Use(cors())

	s.routes()
	return s
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/statistics", s.statistics)
		api.POST("/features", s.features)

		sites := api.Group("/sites/:id")
		sites.POST("/metrics", s.replaceMetrics)
		sites.POST("/ga4", s.replaceGA4)
		sites.POST("/evaluate", s.evaluate)
		sites.POST("/competitors", s.competitors)
		sites.POST("/deep-analysis", s.deepAnalysis)
		sites.GET("/issues", s.listIssues)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
