package competitor

import (
	"fmt"
	"math"
	"strings"

	"github.com/seo-engine/backend/analyzer"
	"github.com/seo-engine/backend/rules"
)

const (
	crisisImpressions = 1000
	crisisClicks      = 20

	bounceCritical   = 0.70
	bounceModerate   = 0.50
	durationCritical = 30.0
	durationModerate = 60.0
	idleSessionFloor = 100
)

// AnalyzeGap compares the analyzed page against its competitors and returns
// one section per gap found, or a single affirmative section when there is
// none. An empty competitor list is reported as a CannotAnalyzeError.
func AnalyzeGap(own analyzer.PageFeatures, competitors []analyzer.PageFeatures, perf SearchPerformance) (*Report, error) {
	if len(competitors) == 0 {
		return nil, &CannotAnalyzeError{Reason: "no competitor pages could be analyzed"}
	}

	avg := Aggregate(competitors)
	kinds, sections := findGaps(gapInput{own: &own, competitors: competitors, avg: avg, th: shallowThresholds})

	report := &Report{
		Query:    perf.Query,
		Averages: avg,
		Gaps:     kinds,
		Severity: rules.SeverityLow,
		Summary: fmt.Sprintf("Competitor analysis for %q: average position %.1f, CTR %s, compared against %d competing pages.",
			perf.Query, perf.Position, formatPercent(perf.CTR), avg.Competitors),
	}
	if len(sections) == 0 {
		report.Sections = []string{competitiveSection(perf.Query, avg.Competitors)}
		return report, nil
	}
	report.Sections = sections
	report.Severity = rules.SeverityHigh
	return report, nil
}

// DeepInput carries everything the deep analysis looks at. GSC and GA4 are
// nil when no data is stored for the page.
type DeepInput struct {
	Own         analyzer.PageFeatures
	Competitors []analyzer.PageFeatures
	Query       string
	GSC         *SearchPerformance
	GA4         *Behavior
}

// RunDeepAnalysis builds the multi-section report: a search-performance
// narrative, an optional visibility warning, an analytics narrative and the
// competitor gaps. The narratives are optional; the competitor comparison is
// not, so an empty competitor list is a CannotAnalyzeError.
func RunDeepAnalysis(in DeepInput) (*Report, error) {
	if len(in.Competitors) == 0 {
		return nil, &CannotAnalyzeError{Reason: "no competitor pages could be analyzed"}
	}

	report := &Report{
		Query:    in.Query,
		Averages: Aggregate(in.Competitors),
		Gaps:     make([]GapKind, 0),
		Sections: make([]string, 0),
		Severity: rules.SeverityLow,
		Summary:  fmt.Sprintf("Deep analysis of %s for %q.", in.Own.URL, in.Query),
	}
	raise := func(s rules.Severity) {
		if s.Rank() < report.Severity.Rank() {
			report.Severity = s
		}
	}

	if in.GSC != nil {
		section, underperforming := performanceSection(*in.GSC)
		report.Sections = append(report.Sections, section)
		if underperforming {
			raise(rules.SeverityMedium)
		}
		if section := visibilitySection(*in.GSC); section != "" {
			report.Sections = append(report.Sections, section)
			raise(rules.SeverityCritical)
		}
	}

	if in.GA4 != nil {
		section, severity := behaviorSection(*in.GA4)
		report.Sections = append(report.Sections, section)
		raise(severity)
	}

	kinds, sections := findGaps(gapInput{own: &in.Own, competitors: in.Competitors, avg: report.Averages, th: deepThresholds})
	if len(sections) == 0 {
		report.Sections = append(report.Sections, competitiveSection(in.Query, report.Averages.Competitors))
		return report, nil
	}
	report.Gaps = kinds
	report.Sections = append(report.Sections, sections...)
	raise(rules.SeverityHigh)
	return report, nil
}

func competitiveSection(query string, competitors int) string {
	return fmt.Sprintf("Your page is competitive for %q: no content gaps were found against %d competing pages. "+
		"Keep the content fresh and monitor rankings.", query, competitors)
}

// performanceSection compares the actual CTR with the expected CTR at the
// observed position. The flag reports whether the page gets fewer clicks than expected.
func performanceSection(perf SearchPerformance) (string, bool) {
	expected := rules.ExpectedCTR(perf.Position)

	var b strings.Builder
	fmt.Fprintf(&b, "Search performance for %q: average position %.1f (%s), %d impressions, %d clicks.",
		perf.Query, perf.Position, positionBand(perf.Position), perf.Impressions, perf.Clicks)
	fmt.Fprintf(&b, "\nActual CTR is %s against an expected %s at this position.",
		formatPercent(perf.CTR), formatPercent(expected))

	if perf.CTR >= expected {
		b.WriteString("\nClick-through meets the expectation for this position; ranking higher is the main lever.")
		return b.String(), false
	}

	shortfall := (expected - perf.CTR) / expected * 100
	missed := int64(math.Round(float64(perf.Impressions) * (expected - perf.CTR)))
	fmt.Fprintf(&b, "\nThe page gets %.0f%% fewer clicks than expected, about %d clicks missed. "+
		"Rewrite the title and meta description to match the query intent.", shortfall, missed)
	return b.String(), true
}

func positionBand(position float64) string {
	switch {
	case position < 4:
		return "top 3"
	case position < 11:
		return "first page"
	case position < 21:
		return "second page"
	default:
		return "beyond the second page"
	}
}

func visibilitySection(perf SearchPerformance) string {
	if perf.Impressions <= crisisImpressions || perf.Clicks >= crisisClicks {
		return ""
	}
	return fmt.Sprintf("Visibility crisis: the page was shown %d times but clicked only %d times. "+
		"Searchers see it and skip it; the snippet does not convince them.", perf.Impressions, perf.Clicks)
}

// behaviorSection narrates analytics data and returns the worst severity it flagged.
func behaviorSection(ga4 Behavior) (string, rules.Severity) {
	severity := rules.SeverityLow
	var b strings.Builder
	fmt.Fprintf(&b, "User behavior (%d sessions, %d pageviews):", ga4.Sessions, ga4.Pageviews)
	flagged := false

	switch {
	case ga4.BounceRate > bounceCritical:
		fmt.Fprintf(&b, "\n- Critical: bounce rate is %s. Most visitors leave immediately; check that the opening matches the search intent.",
			formatPercent(ga4.BounceRate))
		severity = rules.SeverityCritical
		flagged = true
	case ga4.BounceRate > bounceModerate:
		fmt.Fprintf(&b, "\n- Moderate: bounce rate is %s. Add clearer next steps and related links above the fold.",
			formatPercent(ga4.BounceRate))
		severity = worse(severity, rules.SeverityMedium)
		flagged = true
	}

	switch {
	case ga4.AvgSessionDuration < durationCritical:
		fmt.Fprintf(&b, "\n- Critical: average session lasts %.0f seconds. Visitors are not reading the content.",
			ga4.AvgSessionDuration)
		severity = rules.SeverityCritical
		flagged = true
	case ga4.AvgSessionDuration < durationModerate:
		fmt.Fprintf(&b, "\n- Moderate: average session lasts %.0f seconds. Break up the text and answer the main question earlier.",
			ga4.AvgSessionDuration)
		severity = worse(severity, rules.SeverityMedium)
		flagged = true
	}

	if ga4.Conversions == 0 && ga4.Sessions > idleSessionFloor {
		fmt.Fprintf(&b, "\n- No conversions from %d sessions. Add a visible call to action.", ga4.Sessions)
		severity = worse(severity, rules.SeverityHigh)
		flagged = true
	}

	if !flagged {
		fmt.Fprintf(&b, "\n- Engagement looks healthy: bounce rate %s, average session %.0f seconds, %d conversions.",
			formatPercent(ga4.BounceRate), ga4.AvgSessionDuration, ga4.Conversions)
	}
	return b.String(), severity
}

func worse(a, b rules.Severity) rules.Severity {
	if b.Rank() < a.Rank() {
		return b
	}
	return a
}

func formatPercent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}
