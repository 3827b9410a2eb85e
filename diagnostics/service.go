// Package diagnostics runs the analysis pipelines: rule evaluation over
// stored metrics, competitor gap analysis and deep analysis of a single page.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seo-engine/backend/analyzer"
	"github.com/seo-engine/backend/competitor"
	"github.com/seo-engine/backend/rules"
	"github.com/seo-engine/backend/search"
	"github.com/seo-engine/backend/store"
)

// FeatureExtractor fetches a page and extracts its features; nil means unavailable.
// ExtractFreshPageFeatures skips any cached record.
type FeatureExtractor interface {
	ExtractPageFeatures(ctx context.Context, pageURL string) *analyzer.PageFeatures
	ExtractFreshPageFeatures(ctx context.Context, pageURL string) *analyzer.PageFeatures
}

// Searcher returns organic results for a query; an empty list on failure
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) []search.Result
}

// MetricsReader is the read model over stored search and analytics data
type MetricsReader interface {
	AggregatedMetrics(ctx context.Context, siteID int64) ([]rules.PageMetric, error)
	AggregatedQueryMetrics(ctx context.Context, siteID int64) ([]rules.PageMetric, error)
	MetricsForPage(ctx context.Context, siteID int64, pageURL string) ([]rules.PageMetric, error)
	GA4ForPage(ctx context.Context, siteID int64, path string) (*store.GA4Summary, error)
}

// IssueSink persists issues
type IssueSink interface {
	InsertIssue(ctx context.Context, issue *rules.Issue) (string, error)
}

// Config bounds the pipelines
type Config struct {
	MaxCompetitors  int
	Concurrency     int
	AnalysisTimeout time.Duration
}

// Service wires the extractor, search, read model and issue sink together
type Service struct {
	extractor FeatureExtractor
	searcher  Searcher
	metrics   MetricsReader
	issues    IssueSink
	engine    *rules.Engine
	cfg       Config
	logger    zerolog.Logger
}

// NewService creates a Service; zero Config fields fall back to defaults
func NewService(extractor FeatureExtractor, searcher Searcher, metrics MetricsReader, issues IssueSink, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MaxCompetitors <= 0 {
		cfg.MaxCompetitors = 5
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = cfg.MaxCompetitors
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 60 * time.Second
	}
	return &Service{
		extractor: extractor,
		searcher:  searcher,
		metrics:   metrics,
		issues:    issues,
		engine:    rules.NewEngine(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Analysis is the result of a competitor or deep analysis run
type Analysis struct {
	IssueID        string                  `json:"issue_id"`
	PageURL        string                  `json:"page_url"`
	Report         *competitor.Report      `json:"report"`
	Own            *analyzer.PageFeatures  `json:"own"`
	Competitors    []analyzer.PageFeatures `json:"competitors"`
	CompetitorURLs []string                `json:"competitor_urls"`
}

// EvaluateSite runs the metric rules over the site's aggregated metrics and
// persists every issue that fires. byQuery selects URL x query aggregation.
func (s *Service) EvaluateSite(ctx context.Context, siteID int64, byQuery bool) ([]rules.Issue, error) {
	var (
		metrics []rules.PageMetric
		err     error
	)
	if byQuery {
		metrics, err = s.metrics.AggregatedQueryMetrics(ctx, siteID)
	} else {
		metrics, err = s.metrics.AggregatedMetrics(ctx, siteID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}
	if len(metrics) == 0 {
		return nil, &competitor.CannotAnalyzeError{Reason: "no search metrics stored for this site"}
	}

	issues := s.engine.Evaluate(siteID, metrics)
	for i := range issues {
		if _, err := s.issues.InsertIssue(ctx, &issues[i]); err != nil {
			return nil, fmt.Errorf("failed to persist issue: %w", err)
		}
	}

	s.logger.Info().Int64("site_id", siteID).Int("pages", len(metrics)).Int("issues", len(issues)).Msg("site evaluated")
	return issues, nil
}

// AnalyzeCompetitors compares pageURL with the pages ranking for its top query
// and persists a competitor_analysis issue.
func (s *Service) AnalyzeCompetitors(ctx context.Context, siteID int64, pageURL string) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	top, err := s.topQuery(ctx, siteID, pageURL)
	if err != nil {
		return nil, err
	}
	if top == nil {
		return nil, &competitor.CannotAnalyzeError{Reason: "no search queries recorded for this page"}
	}

	urls := s.competitorURLs(ctx, top.Query, pageURL)
	if len(urls) == 0 {
		return nil, &competitor.CannotAnalyzeError{Reason: fmt.Sprintf("no competitor pages found for %q", top.Query)}
	}

	own, competitors := s.fetchPages(ctx, pageURL, urls)
	report, err := competitor.AnalyzeGap(ownOrStandIn(own, pageURL), competitors, performanceOf(*top))
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Competitor analysis for %q: %d gaps against %d competing pages", top.Query, len(report.Gaps), len(competitors))
	if len(report.Gaps) == 0 {
		description = fmt.Sprintf("Competitor analysis for %q: page is competitive against %d competing pages", top.Query, len(competitors))
	}
	issueID, err := s.persist(ctx, siteID, rules.IssueCompetitorAnalysis, pageURL, top.Query, description, report)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		IssueID:        issueID,
		PageURL:        pageURL,
		Report:         report,
		Own:            own,
		Competitors:    competitors,
		CompetitorURLs: urls,
	}, nil
}

// DeepAnalysis folds search performance, analytics behavior and competitor
// gaps for pageURL into one report and persists a deep_analysis issue.
// Missing analytics data narrows the report; the competitor comparison, and
// so a top query to search for, is required.
func (s *Service) DeepAnalysis(ctx context.Context, siteID int64, pageURL string) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	top, err := s.topQuery(ctx, siteID, pageURL)
	if err != nil {
		return nil, err
	}
	if top == nil {
		return nil, &competitor.CannotAnalyzeError{Reason: "no search queries recorded for this page"}
	}

	ga4, err := s.metrics.GA4ForPage(ctx, siteID, pagePath(pageURL))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load analytics: %w", err)
	}

	urls := s.competitorURLs(ctx, top.Query, pageURL)
	if len(urls) == 0 {
		return nil, &competitor.CannotAnalyzeError{Reason: fmt.Sprintf("no competitor pages found for %q", top.Query)}
	}

	perf := performanceOf(*top)
	in := competitor.DeepInput{GSC: &perf, Query: top.Query}
	if ga4 != nil {
		in.GA4 = &competitor.Behavior{
			Sessions:           ga4.Sessions,
			Pageviews:          ga4.Pageviews,
			AvgSessionDuration: ga4.AvgSessionDuration,
			BounceRate:         ga4.BounceRate,
			Conversions:        ga4.Conversions,
		}
	}

	own, competitors := s.fetchPages(ctx, pageURL, urls)
	in.Own = ownOrStandIn(own, pageURL)
	in.Competitors = competitors

	report, err := competitor.RunDeepAnalysis(in)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Deep analysis of %s: %d sections", pageURL, len(report.Sections))
	issueID, err := s.persist(ctx, siteID, rules.IssueDeepAnalysis, pageURL, in.Query, description, report)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		IssueID:        issueID,
		PageURL:        pageURL,
		Report:         report,
		Own:            own,
		Competitors:    competitors,
		CompetitorURLs: urls,
	}, nil
}

// topQuery returns the page's query with the most impressions, or nil when none is stored
func (s *Service) topQuery(ctx context.Context, siteID int64, pageURL string) (*rules.PageMetric, error) {
	queries, err := s.metrics.MetricsForPage(ctx, siteID, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load page metrics: %w", err)
	}
	for i := range queries {
		if queries[i].Query != "" {
			return &queries[i], nil
		}
	}
	return nil, nil
}

// competitorURLs searches the query and keeps up to MaxCompetitors result
// links, skipping the analyzed site's own pages and duplicates.
func (s *Service) competitorURLs(ctx context.Context, query, pageURL string) []string {
	results := s.searcher.Search(ctx, query, s.cfg.MaxCompetitors+2)
	ownHost := hostOf(pageURL)

	urls := make([]string, 0, s.cfg.MaxCompetitors)
	seen := make(map[string]bool)
	for _, r := range results {
		host := hostOf(r.Link)
		if host == "" || sameSite(host, ownHost) || seen[r.Link] {
			continue
		}
		seen[r.Link] = true
		urls = append(urls, r.Link)
		if len(urls) == s.cfg.MaxCompetitors {
			break
		}
	}
	return urls
}

// fetchPages extracts the analyzed page and every competitor concurrently.
// The analyzed page is always fetched fresh; competitors may come from the
// cache. A failed competitor is dropped; the survivors keep search-result order.
func (s *Service) fetchPages(ctx context.Context, pageURL string, urls []string) (*analyzer.PageFeatures, []analyzer.PageFeatures) {
	var own *analyzer.PageFeatures
	slots := make([]*analyzer.PageFeatures, len(urls))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency + 1)
	g.Go(func() error {
		own = s.extractor.ExtractFreshPageFeatures(ctx, pageURL)
		return nil
	})
	for i, u := range urls {
		g.Go(func() error {
			slots[i] = s.extractor.ExtractPageFeatures(ctx, u)
			return nil
		})
	}
	g.Wait()

	competitors := make([]analyzer.PageFeatures, 0, len(urls))
	for i, features := range slots {
		if features == nil {
			s.logger.Debug().Str("url", urls[i]).Msg("competitor excluded")
			continue
		}
		competitors = append(competitors, *features)
	}
	if own == nil {
		s.logger.Warn().Str("url", pageURL).Msg("analyzed page could not be fetched")
	}
	s.logger.Info().Str("url", pageURL).Int("requested", len(urls)).Int("fetched", len(competitors)).Msg("competitor pages fetched")
	return own, competitors
}

func (s *Service) persist(ctx context.Context, siteID int64, issueType rules.IssueType, pageURL, query, description string, report *competitor.Report) (string, error) {
	issue := &rules.Issue{
		SiteID:          siteID,
		Type:            issueType,
		Severity:        report.Severity,
		URL:             pageURL,
		Query:           query,
		Description:     description,
		SuggestedAction: report.SuggestedAction(),
		Status:          rules.StatusOpen,
	}
	id, err := s.issues.InsertIssue(ctx, issue)
	if err != nil {
		return "", fmt.Errorf("failed to persist issue: %w", err)
	}
	return id, nil
}

func performanceOf(m rules.PageMetric) competitor.SearchPerformance {
	return competitor.SearchPerformance{
		Query:       m.Query,
		Position:    m.Position,
		CTR:         m.CTR,
		Impressions: m.Impressions,
		Clicks:      m.Clicks,
	}
}

// ownOrStandIn substitutes a zero-valued record when the analyzed page could not be fetched
func ownOrStandIn(own *analyzer.PageFeatures, pageURL string) analyzer.PageFeatures {
	if own != nil {
		return *own
	}
	return analyzer.PageFeatures{URL: pageURL}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// sameSite applies the internal-link rule: a host belongs to the analyzed
// site when it contains the site's host, so subdomains count as the site.
func sameSite(host, ownHost string) bool {
	return ownHost != "" && strings.Contains(host, ownHost)
}

func pagePath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
