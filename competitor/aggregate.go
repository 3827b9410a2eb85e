package competitor

import "github.com/seo-engine/backend/analyzer"

// Averages summarizes a set of competitor feature records
type Averages struct {
	Competitors       int      `json:"competitors"`
	WordCount         float64  `json:"word_count"`
	H2Count           float64  `json:"h2_count"`
	ImagesTotal       float64  `json:"images_total"`
	InternalLinkCount float64  `json:"internal_link_count"`
	SchemaTypes       []string `json:"schema_types"`
	FAQCount          int      `json:"faq_count"`
}

// Aggregate computes arithmetic means over the competitors, the union of
// their schema types in order of first appearance, and how many have an FAQ.
func Aggregate(competitors []analyzer.PageFeatures) Averages {
	avg := Averages{Competitors: len(competitors), SchemaTypes: make([]string, 0)}
	if len(competitors) == 0 {
		return avg
	}

	var words, h2, images, internal int
	seen := make(map[string]bool)
	for _, c := range competitors {
		words += c.WordCount
		h2 += c.H2Count
		images += c.ImagesTotal
		internal += c.InternalLinkCount
		if c.HasFAQ {
			avg.FAQCount++
		}
		for _, t := range c.SchemaTypes {
			if !seen[t] {
				seen[t] = true
				avg.SchemaTypes = append(avg.SchemaTypes, t)
			}
		}
	}

	n := float64(len(competitors))
	avg.WordCount = float64(words) / n
	avg.H2Count = float64(h2) / n
	avg.ImagesTotal = float64(images) / n
	avg.InternalLinkCount = float64(internal) / n
	return avg
}
