package analyzer

// Sample caps for the heading lists exposed on a PageFeatures record.
const (
	maxH2Samples  = 15
	maxH3Samples  = 10
	maxTopKeyword = 20
)

// PageFeatures is the structured set of SEO signals extracted from one HTML document
type PageFeatures struct {
	URL                   string `json:"url" yaml:"url"`
	Title                 string `json:"title" yaml:"title"`
	TitleLength           int    `json:"title_length" yaml:"title_length"`
	MetaDescription       string `json:"meta_description" yaml:"meta_description"`
	MetaDescriptionLength int    `json:"meta_description_length" yaml:"meta_description_length"`
	WordCount             int    `json:"word_count" yaml:"word_count"`
	ParagraphCount        int    `json:"paragraph_count" yaml:"paragraph_count"`

	H1        []string `json:"h1" yaml:"h1"`
	H1Count   int      `json:"h1_count" yaml:"h1_count"`
	H2Count   int      `json:"h2_count" yaml:"h2_count"`
	H2Samples []string `json:"h2_samples" yaml:"h2_samples"`
	H3Count   int      `json:"h3_count" yaml:"h3_count"`
	H3Samples []string `json:"h3_samples" yaml:"h3_samples"`

	ImagesTotal       int `json:"images_total" yaml:"images_total"`
	ImagesWithAlt     int `json:"images_with_alt" yaml:"images_with_alt"`
	InternalLinkCount int `json:"internal_link_count" yaml:"internal_link_count"`
	ExternalLinkCount int `json:"external_link_count" yaml:"external_link_count"`

	SchemaTypes      []string `json:"schema_types" yaml:"schema_types"`
	HasFAQ           bool     `json:"has_faq" yaml:"has_faq"`
	HasBreadcrumb    bool     `json:"has_breadcrumb" yaml:"has_breadcrumb"`
	HasArticleSchema bool     `json:"has_article_schema" yaml:"has_article_schema"`
	HasReviewSchema  bool     `json:"has_review_schema" yaml:"has_review_schema"`

	TopKeywords []KeywordCount `json:"top_keywords" yaml:"top_keywords"`
}

// KeywordCount is one entry of the ranked keyword frequency list
type KeywordCount struct {
	Keyword string `json:"keyword" yaml:"keyword"`
	Count   int    `json:"count" yaml:"count"`
}

// HasSchema reports whether any structured data type was found on the page.
func (p *PageFeatures) HasSchema() bool {
	return len(p.SchemaTypes) > 0
}

// AltTextCoverage returns the share of images carrying alt text, or 1 when the page has no images.
func (p *PageFeatures) AltTextCoverage() float64 {
	if p.ImagesTotal == 0 {
		return 1
	}
	return float64(p.ImagesWithAlt) / float64(p.ImagesTotal)
}
