package competitor

import (
	"fmt"
	"math"
	"strings"

	"github.com/seo-engine/backend/analyzer"
)

const (
	minTitleLength   = 30
	maxTitleLength   = 60
	maxHeadingIdeas  = 5
	minAltCoverage   = 0.8
	internalLinkRate = 0.5
)

// thresholds selects how sensitive each gap check is. The shallow and deep
// paths share the checks but not the cutoffs.
type thresholds struct {
	contentRatio  float64
	faqMin        int
	imageRatio    float64
	altText       bool
	internalLinks bool
}

var (
	shallowThresholds = thresholds{contentRatio: 0.8, faqMin: 2, imageRatio: 0.7}
	deepThresholds    = thresholds{contentRatio: 0.7, faqMin: 3, imageRatio: 0.6, altText: true, internalLinks: true}
)

type gapInput struct {
	own         *analyzer.PageFeatures
	competitors []analyzer.PageFeatures
	avg         Averages
	th          thresholds
}

// gapCheck returns the section text for one gap, or "" when the gap is absent.
type gapCheck struct {
	kind  GapKind
	check func(in gapInput) string
}

var gapChecks = []gapCheck{
	{GapContentLength, contentLengthGap},
	{GapHeadings, headingGap},
	{GapSchema, schemaGap},
	{GapFAQ, faqGap},
	{GapImages, imageGap},
	{GapAltText, altTextGap},
	{GapInternalLinks, internalLinkGap},
	{GapTitleLength, titleLengthGap},
}

// findGaps runs every check and returns the kinds and sections of the gaps found
func findGaps(in gapInput) ([]GapKind, []string) {
	kinds := make([]GapKind, 0)
	sections := make([]string, 0)
	for _, g := range gapChecks {
		if section := g.check(in); section != "" {
			kinds = append(kinds, g.kind)
			sections = append(sections, section)
		}
	}
	return kinds, sections
}

func contentLengthGap(in gapInput) string {
	if float64(in.own.WordCount) >= in.th.contentRatio*in.avg.WordCount {
		return ""
	}
	deficit := int(math.Round(in.avg.WordCount - float64(in.own.WordCount)))
	return fmt.Sprintf("Content length: your page has %d words while competitors average %.0f words. "+
		"Add roughly %d words to close the gap, covering the subtopics the competing pages address.",
		in.own.WordCount, in.avg.WordCount, deficit)
}

func headingGap(in gapInput) string {
	if float64(in.own.H2Count) >= in.avg.H2Count {
		return ""
	}
	deficit := int(math.Ceil(in.avg.H2Count - float64(in.own.H2Count)))
	var b strings.Builder
	fmt.Fprintf(&b, "Heading structure: your page has %d H2 headings while competitors average %.1f. "+
		"Add about %d more H2 sections.", in.own.H2Count, in.avg.H2Count, deficit)
	if ideas := headingIdeas(in.competitors, maxHeadingIdeas); len(ideas) > 0 {
		b.WriteString(" Ideas from competing pages:")
		for _, idea := range ideas {
			b.WriteString("\n- ")
			b.WriteString(idea)
		}
	}
	return b.String()
}

// headingIdeas collects up to limit distinct competitor H2 texts in competitor order
func headingIdeas(competitors []analyzer.PageFeatures, limit int) []string {
	ideas := make([]string, 0, limit)
	seen := make(map[string]bool)
	for _, c := range competitors {
		for _, h2 := range c.H2Samples {
			key := strings.ToLower(h2)
			if h2 == "" || seen[key] {
				continue
			}
			seen[key] = true
			ideas = append(ideas, h2)
			if len(ideas) == limit {
				return ideas
			}
		}
	}
	return ideas
}

func schemaGap(in gapInput) string {
	if in.own.HasSchema() || len(in.avg.SchemaTypes) == 0 {
		return ""
	}
	return fmt.Sprintf("Structured data: your page has no schema markup while competitors use %s. "+
		"Add JSON-LD markup for these types to qualify for rich results.",
		strings.Join(in.avg.SchemaTypes, ", "))
}

func faqGap(in gapInput) string {
	if in.own.HasFAQ || in.avg.FAQCount < in.th.faqMin {
		return ""
	}
	return fmt.Sprintf("FAQ section: %d of %d competing pages include an FAQ and yours does not. "+
		"Add an FAQ answering common questions about the topic, marked up as FAQPage.",
		in.avg.FAQCount, in.avg.Competitors)
}

func imageGap(in gapInput) string {
	if float64(in.own.ImagesTotal) >= in.th.imageRatio*in.avg.ImagesTotal {
		return ""
	}
	return fmt.Sprintf("Visual content: your page has %d images while competitors average %.1f. "+
		"Add diagrams or screenshots that support the text.",
		in.own.ImagesTotal, in.avg.ImagesTotal)
}

func altTextGap(in gapInput) string {
	if !in.th.altText || in.own.ImagesTotal == 0 || in.own.AltTextCoverage() >= minAltCoverage {
		return ""
	}
	missing := in.own.ImagesTotal - in.own.ImagesWithAlt
	return fmt.Sprintf("Image alt text: %d of %d images are missing alt text (%.0f%% coverage). "+
		"Describe every meaningful image; alt text helps accessibility and image search.",
		missing, in.own.ImagesTotal, in.own.AltTextCoverage()*100)
}

func internalLinkGap(in gapInput) string {
	if !in.th.internalLinks || float64(in.own.InternalLinkCount) >= internalLinkRate*in.avg.InternalLinkCount {
		return ""
	}
	return fmt.Sprintf("Internal linking: your page has %d internal links while competitors average %.1f. "+
		"Link to related pages on your site to spread authority and help crawlers.",
		in.own.InternalLinkCount, in.avg.InternalLinkCount)
}

func titleLengthGap(in gapInput) string {
	switch {
	case in.own.TitleLength < minTitleLength:
		return fmt.Sprintf("Title length: your title is %d characters, which is too short. "+
			"Aim for %d-%d characters and include the main keyword.", in.own.TitleLength, minTitleLength, maxTitleLength)
	case in.own.TitleLength > maxTitleLength:
		return fmt.Sprintf("Title length: your title is %d characters, which is too long and will be truncated. "+
			"Aim for %d-%d characters.", in.own.TitleLength, minTitleLength, maxTitleLength)
	}
	return ""
}
