package rules

import "time"

// IssueType identifies the diagnostic that produced an Issue
type IssueType string

const (
	IssueLowCTR             IssueType = "low_ctr"
	IssueZeroClicks         IssueType = "zero_clicks"
	IssuePoorRanking        IssueType = "poor_ranking"
	IssueCompetitorAnalysis IssueType = "competitor_analysis"
	IssueDeepAnalysis       IssueType = "deep_analysis"
)

// Severity of an Issue. Ordering is critical > high > medium > anything else.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities for display, lower is more severe
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	default:
		return 4
	}
}

// StatusOpen is the status every new issue is created with
const StatusOpen = "open"

// Issue is a persisted diagnostic record. Issues are never mutated once written.
type Issue struct {
	ID              string    `json:"id"`
	SiteID          int64     `json:"site_id"`
	Type            IssueType `json:"issue_type"`
	Severity        Severity  `json:"severity"`
	URL             string    `json:"url"`
	Query           string    `json:"query,omitempty"`
	Description     string    `json:"description"`
	SuggestedAction string    `json:"suggested_action"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// PageMetric is an aggregated search-performance row for a URL, or for a
// URL and query pair when Query is set. CTR is a fraction, not a percentage.
type PageMetric struct {
	URL         string  `json:"url"`
	Query       string  `json:"query,omitempty"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}
