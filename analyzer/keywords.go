package analyzer

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minKeywordLength = 4

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "been": true, "before": true,
	"being": true, "both": true, "could": true, "does": true, "each": true,
	"from": true, "have": true, "here": true, "into": true, "just": true,
	"like": true, "made": true, "make": true, "more": true, "most": true,
	"much": true, "only": true, "other": true, "over": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "very": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "will": true,
	"with": true, "would": true, "your": true,
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isKeyword(token string) bool {
	return utf8.RuneCountInString(token) >= minKeywordLength && !stopwords[token]
}

// topKeywords returns the n most frequent keywords of text. Ties keep the
// order in which the keywords first appeared.
func topKeywords(text string, n int) []KeywordCount {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, token := range tokenize(text) {
		if !isKeyword(token) {
			continue
		}
		if counts[token] == 0 {
			order = append(order, token)
		}
		counts[token]++
	}

	ranked := make([]KeywordCount, len(order))
	for i, word := range order {
		ranked[i] = KeywordCount{Keyword: word, Count: counts[word]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
