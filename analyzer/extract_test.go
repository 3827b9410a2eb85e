package analyzer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guidePage = `<html>
<head>
<title>  Complete Guide to   Widgets </title>
<meta name="Description" content=" All about widgets. ">
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[{"@type":"Article"},{"@type":["BreadcrumbList","Article"]}]}</script>
<script type=" Application/LD+JSON ">[{"@type":"FAQPage"}]</script>
<script type="application/ld+json">{not json</script>
</head>
<body>
<h1>Widgets</h1>
<h1></h1>
<h2>Intro</h2>
<h2> </h2>
<h2>Setup</h2>
<h3>Step one</h3>
<p>Widgets widgets widgets gadgets gadgets tools.</p>
<p>Another paragraph with the word widgets.</p>
<img src="a.png" alt="diagram">
<img src="b.png" alt=" ">
<img src="c.png">
<a href="https://example.com/other">in</a>
<a href="https://blog.example.com/post">in sub</a>
<a href="https://external.org/">out</a>
<a href="/relative">rel</a>
<a href="mailto:x@example.com">mail</a>
</body>
</html>`

func TestParseFeatures(t *testing.T) {
	f, err := ParseFeatures("https://www.example.com/guide", []byte(guidePage))
	require.NoError(t, err)

	assert.Equal(t, "https://www.example.com/guide", f.URL)
	assert.Equal(t, "Complete Guide to Widgets", f.Title)
	assert.Equal(t, 25, f.TitleLength)
	assert.Equal(t, "All about widgets.", f.MetaDescription)
	assert.Equal(t, 18, f.MetaDescriptionLength)

	assert.Equal(t, []string{"Widgets", ""}, f.H1)
	assert.Equal(t, 2, f.H1Count)
	assert.Equal(t, 3, f.H2Count)
	assert.Equal(t, []string{"Intro", "Setup"}, f.H2Samples)
	assert.Equal(t, 1, f.H3Count)
	assert.Equal(t, []string{"Step one"}, f.H3Samples)

	assert.Equal(t, 23, f.WordCount)
	assert.Equal(t, 2, f.ParagraphCount)

	assert.Equal(t, 3, f.ImagesTotal)
	assert.Equal(t, 1, f.ImagesWithAlt)

	assert.Equal(t, 2, f.InternalLinkCount)
	assert.Equal(t, 1, f.ExternalLinkCount)

	assert.Equal(t, []string{"Article", "BreadcrumbList", "FAQPage"}, f.SchemaTypes)
	assert.True(t, f.HasFAQ)
	assert.True(t, f.HasBreadcrumb)
	assert.True(t, f.HasArticleSchema)
	assert.False(t, f.HasReviewSchema)

	require.GreaterOrEqual(t, len(f.TopKeywords), 3)
	assert.Equal(t, KeywordCount{Keyword: "widgets", Count: 5}, f.TopKeywords[0])
	assert.Equal(t, KeywordCount{Keyword: "gadgets", Count: 2}, f.TopKeywords[1])
	assert.Equal(t, KeywordCount{Keyword: "intro", Count: 1}, f.TopKeywords[2])
}

func TestParseFeatures_Deterministic(t *testing.T) {
	a, err := ParseFeatures("https://example.com/", []byte(guidePage))
	require.NoError(t, err)
	b, err := ParseFeatures("https://example.com/", []byte(guidePage))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseFeatures_EmptyDocument(t *testing.T) {
	f, err := ParseFeatures("https://example.com/", []byte(""))
	require.NoError(t, err)

	assert.Empty(t, f.Title)
	assert.Zero(t, f.WordCount)
	assert.Empty(t, f.H1)
	assert.NotNil(t, f.SchemaTypes)
	assert.NotNil(t, f.TopKeywords)
	assert.Equal(t, 1.0, f.AltTextCoverage())
	assert.False(t, f.HasSchema())
}

func TestParseFeatures_HeadingSampleCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "<h2>Section %d</h2><h3>Detail %d</h3>", i, i)
	}
	b.WriteString("</body></html>")

	f, err := ParseFeatures("https://example.com/", []byte(b.String()))
	require.NoError(t, err)
	assert.Equal(t, 20, f.H2Count)
	assert.Len(t, f.H2Samples, maxH2Samples)
	assert.Equal(t, "Section 0", f.H2Samples[0])
	assert.Equal(t, 20, f.H3Count)
	assert.Len(t, f.H3Samples, maxH3Samples)
}

func TestParseFeatures_FAQByClass(t *testing.T) {
	f, err := ParseFeatures("https://example.com/", []byte(`<html><body><div class="section FAQ-block">Q</div></body></html>`))
	require.NoError(t, err)
	assert.True(t, f.HasFAQ)
	assert.Empty(t, f.SchemaTypes)
}

func TestParseFeatures_ReviewSchema(t *testing.T) {
	page := `<html><head><script type="application/ld+json">{"@type":"Product","aggregateRating":{"@type":"AggregateRating"}}</script></head></html>`
	f, err := ParseFeatures("https://example.com/", []byte(page))
	require.NoError(t, err)
	// nested objects other than @graph are not walked
	assert.Equal(t, []string{"Product"}, f.SchemaTypes)
	assert.False(t, f.HasReviewSchema)
}

func TestClassifyLink(t *testing.T) {
	tests := []struct {
		href string
		want linkKind
	}{
		{"https://example.com/a", linkInternal},
		{"http://WWW.EXAMPLE.com/a", linkInternal},
		{"https://shop.example.com/", linkInternal},
		{"https://other.org/", linkExternal},
		{"/relative/path", linkSkipped},
		{"#top", linkSkipped},
		{"javascript:void(0)", linkSkipped},
		{"ftp://example.com/file", linkSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyLink(tt.href, "example.com"))
		})
	}
}

func TestTopKeywords(t *testing.T) {
	text := "Beta alpha beta gamma ALPHA delta this with cat dogs"
	got := topKeywords(text, 3)
	assert.Equal(t, []KeywordCount{
		{Keyword: "beta", Count: 2},
		{Keyword: "alpha", Count: 2},
		{Keyword: "gamma", Count: 1},
	}, got)

	assert.Empty(t, topKeywords("a an the of", 5))
	assert.NotNil(t, topKeywords("", 5))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"seo", "tips", "2026", "café"}, tokenize("SEO-tips, 2026: café!"))
}

func FuzzParseFeatures(f *testing.F) {
	f.Add(guidePage)
	f.Add("")
	f.Add(`<img alt="a"><img><img alt=""><p><img alt="b"></p><a href="https://example.com/x">x</a><a href="https://other.org/">o</a>`)
	f.Add(`<html><body><h1></h1><h2>a<h2>b</h2></h2><img alt=`)

	f.Fuzz(func(t *testing.T, html string) {
		got, err := ParseFeatures("https://example.com/", []byte(html))
		require.NoError(t, err)

		assert.GreaterOrEqual(t, got.ImagesWithAlt, 0)
		assert.LessOrEqual(t, got.ImagesWithAlt, got.ImagesTotal)
		assert.GreaterOrEqual(t, got.InternalLinkCount, 0)
		assert.GreaterOrEqual(t, got.ExternalLinkCount, 0)
		assert.GreaterOrEqual(t, got.WordCount, 0)
		assert.GreaterOrEqual(t, got.ParagraphCount, 0)
		assert.Equal(t, len(got.H1), got.H1Count)
		assert.LessOrEqual(t, len(got.H2Samples), maxH2Samples)
		assert.LessOrEqual(t, len(got.H3Samples), maxH3Samples)
		assert.LessOrEqual(t, len(got.TopKeywords), maxTopKeyword)

		again, err := ParseFeatures("https://example.com/", []byte(html))
		require.NoError(t, err)
		assert.Equal(t, got, again)
	})
}
