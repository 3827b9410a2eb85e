package diagnostics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-engine/backend/analyzer"
	"github.com/seo-engine/backend/competitor"
	"github.com/seo-engine/backend/rules"
	"github.com/seo-engine/backend/search"
	"github.com/seo-engine/backend/store"
)

type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string]*analyzer.PageFeatures
	calls []string
	fresh []string
}

func (f *fakeExtractor) ExtractPageFeatures(_ context.Context, pageURL string) *analyzer.PageFeatures {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pageURL)
	return f.pages[pageURL]
}

func (f *fakeExtractor) ExtractFreshPageFeatures(_ context.Context, pageURL string) *analyzer.PageFeatures {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fresh = append(f.fresh, pageURL)
	return f.pages[pageURL]
}

type fakeSearcher struct {
	results []search.Result
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) []search.Result {
	f.queries = append(f.queries, query)
	return f.results
}

type fakeMetrics struct {
	site    []rules.PageMetric
	byQuery []rules.PageMetric
	page    []rules.PageMetric
	ga4     *store.GA4Summary
	err     error
}

func (f *fakeMetrics) AggregatedMetrics(context.Context, int64) ([]rules.PageMetric, error) {
	return f.site, f.err
}

func (f *fakeMetrics) AggregatedQueryMetrics(context.Context, int64) ([]rules.PageMetric, error) {
	return f.byQuery, f.err
}

func (f *fakeMetrics) MetricsForPage(context.Context, int64, string) ([]rules.PageMetric, error) {
	return f.page, f.err
}

func (f *fakeMetrics) GA4ForPage(context.Context, int64, string) (*store.GA4Summary, error) {
	if f.ga4 == nil {
		return nil, store.ErrNotFound
	}
	return f.ga4, nil
}

type fakeSink struct {
	issues []rules.Issue
	err    error
}

func (f *fakeSink) InsertIssue(_ context.Context, issue *rules.Issue) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	issue.ID = "issue-" + string(rune('a'+len(f.issues)))
	f.issues = append(f.issues, *issue)
	return issue.ID, nil
}

func competitorPage(url string, words, h2 int) *analyzer.PageFeatures {
	return &analyzer.PageFeatures{URL: url, Title: "A title of reasonable length for tests", TitleLength: 38, WordCount: words, H2Count: h2}
}

func newService(ex *fakeExtractor, se *fakeSearcher, m *fakeMetrics, sink *fakeSink) *Service {
	return NewService(ex, se, m, sink, Config{MaxCompetitors: 3}, zerolog.Nop())
}

func TestEvaluateSite_PersistsIssues(t *testing.T) {
	m := &fakeMetrics{site: []rules.PageMetric{
		{URL: "https://example.com/a", Impressions: 600, Clicks: 0, Position: 7},
		{URL: "https://example.com/b", Impressions: 10, Clicks: 1, Position: 2},
	}}
	sink := &fakeSink{}
	s := newService(&fakeExtractor{}, &fakeSearcher{}, m, sink)

	issues, err := s.EvaluateSite(context.Background(), 1, false)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, rules.IssueLowCTR, issues[0].Type)
	assert.Equal(t, rules.IssueZeroClicks, issues[1].Type)
	assert.Len(t, sink.issues, 2)
	assert.NotEmpty(t, issues[0].ID)
}

func TestEvaluateSite_NoMetrics(t *testing.T) {
	s := newService(&fakeExtractor{}, &fakeSearcher{}, &fakeMetrics{}, &fakeSink{})
	_, err := s.EvaluateSite(context.Background(), 1, true)
	_, ok := competitor.AsCannotAnalyze(err)
	assert.True(t, ok)
}

func TestEvaluateSite_StoreError(t *testing.T) {
	s := newService(&fakeExtractor{}, &fakeSearcher{}, &fakeMetrics{err: errors.New("boom")}, &fakeSink{})
	_, err := s.EvaluateSite(context.Background(), 1, false)
	require.Error(t, err)
	_, ok := competitor.AsCannotAnalyze(err)
	assert.False(t, ok)
}

func TestAnalyzeCompetitors(t *testing.T) {
	own := "https://www.example.com/guide"
	ex := &fakeExtractor{pages: map[string]*analyzer.PageFeatures{
		own:                      competitorPage(own, 300, 1),
		"https://one.com/x":      competitorPage("https://one.com/x", 1500, 6),
		"https://three.com/x":    competitorPage("https://three.com/x", 1500, 6),
		"https://example.com/xx": competitorPage("https://example.com/xx", 9000, 40),
	}}
	se := &fakeSearcher{results: []search.Result{
		{Link: "https://example.com/xx"},
		{Link: "https://blog.example.com/post"},
		{Link: "https://one.com/x"},
		{Link: "https://two.com/x"},
		{Link: "https://one.com/x"},
		{Link: "https://three.com/x"},
		{Link: "https://four.com/x"},
	}}
	m := &fakeMetrics{page: []rules.PageMetric{
		{URL: own, Query: "seo guide", Impressions: 800, Clicks: 8, CTR: 0.01, Position: 5},
		{URL: own, Query: "minor", Impressions: 20},
	}}
	sink := &fakeSink{}
	s := newService(ex, se, m, sink)

	analysis, err := s.AnalyzeCompetitors(context.Background(), 1, own)
	require.NoError(t, err)

	assert.Equal(t, []string{"seo guide"}, se.queries)
	// own site and its subdomains skipped, duplicates dropped, capped at MaxCompetitors
	assert.Equal(t, []string{"https://one.com/x", "https://two.com/x", "https://three.com/x"}, analysis.CompetitorURLs)
	// the analyzed page bypasses the cache, competitors do not
	assert.Equal(t, []string{own}, ex.fresh)
	assert.NotContains(t, ex.calls, own)
	assert.ElementsMatch(t, analysis.CompetitorURLs, ex.calls)
	// two.com failed to fetch and is excluded, order preserved
	require.Len(t, analysis.Competitors, 2)
	assert.Equal(t, "https://one.com/x", analysis.Competitors[0].URL)
	assert.Equal(t, "https://three.com/x", analysis.Competitors[1].URL)

	assert.Equal(t, rules.SeverityHigh, analysis.Report.Severity)
	assert.Contains(t, analysis.Report.Gaps, competitor.GapContentLength)

	require.Len(t, sink.issues, 1)
	issue := sink.issues[0]
	assert.Equal(t, rules.IssueCompetitorAnalysis, issue.Type)
	assert.Equal(t, "seo guide", issue.Query)
	assert.Equal(t, own, issue.URL)
	assert.Equal(t, analysis.Report.SuggestedAction(), issue.SuggestedAction)
	assert.Equal(t, issue.ID, analysis.IssueID)
}

func TestAnalyzeCompetitors_CannotAnalyze(t *testing.T) {
	own := "https://example.com/guide"

	t.Run("no queries", func(t *testing.T) {
		s := newService(&fakeExtractor{}, &fakeSearcher{}, &fakeMetrics{}, &fakeSink{})
		_, err := s.AnalyzeCompetitors(context.Background(), 1, own)
		_, ok := competitor.AsCannotAnalyze(err)
		assert.True(t, ok)
	})

	t.Run("no search results", func(t *testing.T) {
		m := &fakeMetrics{page: []rules.PageMetric{{URL: own, Query: "q", Impressions: 10}}}
		sink := &fakeSink{}
		s := newService(&fakeExtractor{}, &fakeSearcher{}, m, sink)
		_, err := s.AnalyzeCompetitors(context.Background(), 1, own)
		_, ok := competitor.AsCannotAnalyze(err)
		assert.True(t, ok)
		assert.Empty(t, sink.issues)
	})

	t.Run("every competitor fails", func(t *testing.T) {
		m := &fakeMetrics{page: []rules.PageMetric{{URL: own, Query: "q", Impressions: 10}}}
		se := &fakeSearcher{results: []search.Result{{Link: "https://one.com/"}}}
		sink := &fakeSink{}
		s := newService(&fakeExtractor{}, se, m, sink)
		_, err := s.AnalyzeCompetitors(context.Background(), 1, own)
		_, ok := competitor.AsCannotAnalyze(err)
		assert.True(t, ok)
		assert.Empty(t, sink.issues)
	})
}

func TestDeepAnalysis_RequiresCompetitors(t *testing.T) {
	own := "https://example.com/guide?ref=x"
	ga4 := &store.GA4Summary{Sessions: 400, Pageviews: 500, AvgSessionDuration: 20, BounceRate: 0.8}

	t.Run("analytics only", func(t *testing.T) {
		se := &fakeSearcher{}
		sink := &fakeSink{}
		s := newService(&fakeExtractor{}, se, &fakeMetrics{ga4: ga4}, sink)

		_, err := s.DeepAnalysis(context.Background(), 1, own)
		_, ok := competitor.AsCannotAnalyze(err)
		assert.True(t, ok)
		assert.Empty(t, se.queries)
		assert.Empty(t, sink.issues)
	})

	t.Run("every competitor fails", func(t *testing.T) {
		m := &fakeMetrics{
			page: []rules.PageMetric{{URL: own, Query: "q", Impressions: 2000, Clicks: 5, CTR: 0.0025, Position: 4}},
			ga4:  ga4,
		}
		se := &fakeSearcher{results: []search.Result{{Link: "https://one.com/"}, {Link: "https://two.com/"}}}
		sink := &fakeSink{}
		s := newService(&fakeExtractor{}, se, m, sink)

		_, err := s.DeepAnalysis(context.Background(), 1, own)
		cannot, ok := competitor.AsCannotAnalyze(err)
		require.True(t, ok)
		assert.Equal(t, "no competitor pages could be analyzed", cannot.Reason)
		assert.Empty(t, sink.issues)
	})
}

func TestDeepAnalysis_Full(t *testing.T) {
	own := "https://example.com/guide"
	ex := &fakeExtractor{pages: map[string]*analyzer.PageFeatures{
		own:                 competitorPage(own, 1400, 6),
		"https://one.com/x": competitorPage("https://one.com/x", 1500, 6),
	}}
	se := &fakeSearcher{results: []search.Result{{Link: "https://one.com/x"}}}
	m := &fakeMetrics{
		page: []rules.PageMetric{{URL: own, Query: "seo guide", Impressions: 2000, Clicks: 10, CTR: 0.005, Position: 4}},
		ga4:  &store.GA4Summary{Sessions: 50, Pageviews: 60, AvgSessionDuration: 120, BounceRate: 0.3, Conversions: 2},
	}
	sink := &fakeSink{}
	s := newService(ex, se, m, sink)

	analysis, err := s.DeepAnalysis(context.Background(), 1, own)
	require.NoError(t, err)
	// performance, visibility, behavior, competitive
	require.Len(t, analysis.Report.Sections, 4)
	assert.Contains(t, analysis.Report.Sections[1], "Visibility crisis")
	assert.Equal(t, rules.SeverityCritical, analysis.Report.Severity)
	assert.Equal(t, "seo guide", sink.issues[0].Query)
}

func TestDeepAnalysis_NothingAvailable(t *testing.T) {
	s := newService(&fakeExtractor{}, &fakeSearcher{}, &fakeMetrics{}, &fakeSink{})
	_, err := s.DeepAnalysis(context.Background(), 1, "https://example.com/")
	_, ok := competitor.AsCannotAnalyze(err)
	assert.True(t, ok)
}

func TestPersistFailure(t *testing.T) {
	m := &fakeMetrics{site: []rules.PageMetric{{URL: "u", Impressions: 600, Position: 7}}}
	s := newService(&fakeExtractor{}, &fakeSearcher{}, m, &fakeSink{err: errors.New("db down")})
	_, err := s.EvaluateSite(context.Background(), 1, false)
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://WWW.Example.com/a"))
	assert.Equal(t, "", hostOf("mailto:x@example.com"))
	assert.True(t, sameSite("blog.example.com", "example.com"))
	assert.True(t, sameSite("example.com", "example.com"))
	assert.False(t, sameSite("example.org", "example.com"))
	assert.False(t, sameSite("example.org", ""))
	assert.Equal(t, "/guide", pagePath("https://example.com/guide?x=1"))
	assert.Equal(t, "/", pagePath("https://example.com"))
}
