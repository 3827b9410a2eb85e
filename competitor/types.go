package competitor

import (
	"errors"
	"strings"

	"github.com/seo-engine/backend/rules"
)

// SearchPerformance is the search-console view of the analyzed page for its top query
type SearchPerformance struct {
	Query       string  `json:"query"`
	Position    float64 `json:"position"`
	CTR         float64 `json:"ctr"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
}

// Behavior is the analytics view of the analyzed page. BounceRate is a
// fraction and AvgSessionDuration is in seconds.
type Behavior struct {
	Sessions           int64   `json:"sessions"`
	Pageviews          int64   `json:"pageviews"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	BounceRate         float64 `json:"bounce_rate"`
	Conversions        int64   `json:"conversions"`
}

// GapKind names a content gap between the analyzed page and its competitors
type GapKind string

const (
	GapContentLength GapKind = "content_length"
	GapHeadings      GapKind = "headings"
	GapSchema        GapKind = "schema"
	GapFAQ           GapKind = "faq"
	GapImages        GapKind = "images"
	GapAltText       GapKind = "alt_text"
	GapInternalLinks GapKind = "internal_links"
	GapTitleLength   GapKind = "title_length"
)

// Report is the outcome of a competitor or deep analysis. Sections are
// ordered and never empty; SuggestedAction joins them for persistence.
type Report struct {
	Query    string         `json:"query"`
	Summary  string         `json:"summary"`
	Sections []string       `json:"sections"`
	Gaps     []GapKind      `json:"gaps"`
	Averages Averages       `json:"averages"`
	Severity rules.Severity `json:"severity"`
}

// SuggestedAction renders the report as the text blob stored on an Issue
func (r *Report) SuggestedAction() string {
	parts := make([]string, 0, len(r.Sections)+1)
	if r.Summary != "" {
		parts = append(parts, r.Summary)
	}
	parts = append(parts, r.Sections...)
	return strings.Join(parts, "\n\n")
}

// CannotAnalyzeError reports a missing prerequisite, such as no competitor
// page being available. It is an expected outcome, not a failure.
type CannotAnalyzeError struct {
	Reason string
}

func (e *CannotAnalyzeError) Error() string {
	return "cannot analyze: " + e.Reason
}

// AsCannotAnalyze extracts a CannotAnalyzeError from err's chain
func AsCannotAnalyze(err error) (*CannotAnalyzeError, bool) {
	var target *CannotAnalyzeError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
