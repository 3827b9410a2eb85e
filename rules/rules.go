package rules

import (
	"fmt"
	"strings"
	"time"
)

// Rule is one independent threshold check over a PageMetric. Every rule that
// matches a page fires; rules never look at each other's outcome.
type Rule struct {
	Type     IssueType
	Severity Severity
	Matches  func(m PageMetric) bool
	Describe func(m PageMetric) (description, action string)
}

// LowCTRRule fires for pages with visibility but few clicks in the 3-15 position band
func LowCTRRule() Rule {
	return Rule{
		Type:     IssueLowCTR,
		Severity: SeverityHigh,
		Matches: func(m PageMetric) bool {
			return m.Impressions >= 100 && m.CTR < 0.02 && m.Position >= 3 && m.Position <= 15
		},
		Describe: func(m PageMetric) (string, string) {
			description := fmt.Sprintf("Low CTR of %s at position %.1f for %s", percent(m.CTR), m.Position, subject(m))
			action := pageSummary(m) + `

How to improve click-through rate:
- Rewrite the title tag to lead with the main keyword and a clear benefit
- Write a meta description of 120-160 characters with a call to action
- Add structured data (FAQ, Review, HowTo) to qualify for rich results
- Match the search intent of the query in the first paragraph`
			return description, action
		},
	}
}

// ZeroClicksRule fires for pages seen often in search results but never clicked
func ZeroClicksRule() Rule {
	return Rule{
		Type:     IssueZeroClicks,
		Severity: SeverityCritical,
		Matches: func(m PageMetric) bool {
			return m.Impressions >= 500 && m.Clicks == 0
		},
		Describe: func(m PageMetric) (string, string) {
			description := fmt.Sprintf("%d impressions and zero clicks for %s", m.Impressions, subject(m))
			action := pageSummary(m) + `

How to earn the first clicks:
- Check that the title and snippet actually answer the query being searched
- Replace generic titles with specific, descriptive ones
- Make sure the page is not shown for irrelevant queries; refocus the content if it is
- Add a compelling meta description, as search engines may be generating a poor snippet`
			return description, action
		},
	}
}

// PoorRankingRule fires for pages with impressions that rank beyond the second results page
func PoorRankingRule() Rule {
	return Rule{
		Type:     IssuePoorRanking,
		Severity: SeverityMedium,
		Matches: func(m PageMetric) bool {
			return m.Impressions >= 50 && m.Position > 20
		},
		Describe: func(m PageMetric) (string, string) {
			description := fmt.Sprintf("Poor ranking (average position %.1f) for %s", m.Position, subject(m))
			action := pageSummary(m) + `

How to improve ranking:
- Expand the content to cover the topic more completely than the current top results
- Add internal links from related, well-ranking pages
- Improve heading structure with H2/H3 sections that target related queries
- Earn backlinks from relevant, authoritative sites`
			return description, action
		},
	}
}

// DefaultRules returns the standard rule set
func DefaultRules() []Rule {
	return []Rule{LowCTRRule(), ZeroClicksRule(), PoorRankingRule()}
}

// Engine evaluates aggregated page metrics against a rule list
type Engine struct {
	rules []Rule
	now   func() time.Time
}

// NewEngine creates an engine with the given rules, or DefaultRules when none are passed
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules, now: time.Now}
}

// Evaluate runs every rule against every metric row and returns the issues
// that fired, in input order and rule order. Issues are not deduplicated.
func (e *Engine) Evaluate(siteID int64, metrics []PageMetric) []Issue {
	issues := make([]Issue, 0)
	createdAt := e.now().UTC()
	for _, m := range metrics {
		for _, rule := range e.rules {
			if !rule.Matches(m) {
				continue
			}
			description, action := rule.Describe(m)
			issues = append(issues, Issue{
				SiteID:          siteID,
				Type:            rule.Type,
				Severity:        rule.Severity,
				URL:             m.URL,
				Query:           m.Query,
				Description:     description,
				SuggestedAction: action,
				Status:          StatusOpen,
				CreatedAt:       createdAt,
			})
		}
	}
	return issues
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}

func subject(m PageMetric) string {
	if m.Query != "" {
		return fmt.Sprintf("%s (query %q)", m.URL, m.Query)
	}
	return m.URL
}

func pageSummary(m PageMetric) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page: %s\n", m.URL)
	if m.Query != "" {
		fmt.Fprintf(&b, "Query: %s\n", m.Query)
	}
	fmt.Fprintf(&b, "Impressions: %d | Clicks: %d | CTR: %s | Average position: %.1f",
		m.Impressions, m.Clicks, percent(m.CTR), m.Position)
	return b.String()
}
