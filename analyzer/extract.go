package analyzer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// ParseFeatures parses a raw HTML body fetched from pageURL into a PageFeatures record
func ParseFeatures(pageURL string, body []byte) (*PageFeatures, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	features := ExtractFeatures(pageURL, doc)
	return &features, nil
}

// ExtractFeatures walks an already parsed document and collects its SEO signals.
// The result depends only on pageURL and the document, so the same HTML always
// yields the same record.
func ExtractFeatures(pageURL string, doc *goquery.Document) PageFeatures {
	features := PageFeatures{URL: pageURL}

	features.Title = normalizeSpace(doc.Find("title").First().Text())
	features.TitleLength = utf8.RuneCountInString(features.Title)

	features.MetaDescription = metaDescription(doc)
	features.MetaDescriptionLength = utf8.RuneCountInString(features.MetaDescription)

	features.H1 = headingTexts(doc, "h1", -1, true)
	features.H1Count = len(features.H1)
	features.H2Count = doc.Find("h2").Length()
	features.H2Samples = headingTexts(doc, "h2", maxH2Samples, false)
	features.H3Count = doc.Find("h3").Length()
	features.H3Samples = headingTexts(doc, "h3", maxH3Samples, false)

	// Text extraction keeps whatever goquery yields for the body, script and
	// style contents included. Word counts are an approximation of visible text.
	text := doc.Find("body").Text()
	features.WordCount = len(strings.Fields(text))
	features.ParagraphCount = doc.Find("p").Length()

	features.ImagesTotal, features.ImagesWithAlt = countImages(doc)
	features.InternalLinkCount, features.ExternalLinkCount = countLinks(doc, pageURL)

	features.SchemaTypes = collectSchemaTypes(doc)
	features.HasFAQ = hasFAQMarkup(doc) || containsType(features.SchemaTypes, "FAQPage")
	features.HasBreadcrumb = containsType(features.SchemaTypes, "BreadcrumbList")
	features.HasArticleSchema = containsType(features.SchemaTypes, "Article", "BlogPosting")
	features.HasReviewSchema = containsType(features.SchemaTypes, "Review", "AggregateRating")

	features.TopKeywords = topKeywords(text, maxTopKeyword)

	return features
}

func metaDescription(doc *goquery.Document) string {
	var description string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(name), "description") {
			return true
		}
		description, _ = s.Attr("content")
		return false
	})
	return strings.TrimSpace(description)
}

// headingTexts returns the normalized text of every matching heading, at most
// limit entries when limit >= 0. Empty headings are skipped unless keepEmpty is set.
func headingTexts(doc *goquery.Document, tag string, limit int, keepEmpty bool) []string {
	texts := make([]string, 0)
	doc.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if limit >= 0 && len(texts) >= limit {
			return false
		}
		text := normalizeSpace(s.Text())
		if text == "" && !keepEmpty {
			return true
		}
		texts = append(texts, text)
		return true
	})
	return texts
}

func countImages(doc *goquery.Document) (total, withAlt int) {
	images := doc.Find("img")
	total = images.Length()
	images.Each(func(_ int, s *goquery.Selection) {
		if alt, exists := s.Attr("alt"); exists && strings.TrimSpace(alt) != "" {
			withAlt++
		}
	})
	return total, withAlt
}

type linkKind int

const (
	linkSkipped linkKind = iota
	linkInternal
	linkExternal
)

func countLinks(doc *goquery.Document, pageURL string) (internal, external int) {
	host := sourceHost(pageURL)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		switch classifyLink(href, host) {
		case linkInternal:
			internal++
		case linkExternal:
			external++
		}
	})
	return internal, external
}

// sourceHost returns the lowercased host of pageURL without a leading "www.".
func sourceHost(pageURL string) string {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// classifyLink sorts an href into internal or external by host substring match.
// Only absolute http(s) links are classified; relative links are skipped.
func classifyLink(href, host string) linkKind {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" {
		return linkSkipped
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return linkSkipped
	}
	if host != "" && strings.Contains(strings.ToLower(u.Hostname()), host) {
		return linkInternal
	}
	return linkExternal
}

// collectSchemaTypes gathers the distinct @type values of every JSON-LD block,
// in order of first appearance. Blocks that are not valid JSON are skipped.
func collectSchemaTypes(doc *goquery.Document) []string {
	types := make([]string, 0)
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		types = append(types, t)
	}

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scriptType, _ := s.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(scriptType), "application/ld+json") {
			return
		}
		var data interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return
		}
		walkSchema(data, add)
	})
	return types
}

func walkSchema(node interface{}, add func(string)) {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			walkSchema(item, add)
		}
	case map[string]interface{}:
		switch t := v["@type"].(type) {
		case string:
			add(t)
		case []interface{}:
			for _, item := range t {
				if name, ok := item.(string); ok {
					add(name)
				}
			}
		}
		if graph, ok := v["@graph"].([]interface{}); ok {
			walkSchema(graph, add)
		}
	}
}

// hasFAQMarkup reports whether any element carries "faq" in its class attribute.
func hasFAQMarkup(doc *goquery.Document) bool {
	found := false
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), "faq") {
			found = true
			return false
		}
		return true
	})
	return found
}

func containsType(types []string, wanted ...string) bool {
	for _, t := range types {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
