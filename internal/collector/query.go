package collector

import (
	"strconv"
	"strings"
)

// denominationSearchTerms maps canonical denomination slugs to the term
// used in provider search queries.
var denominationSearchTerms = map[string]string{
	"penny":       "1 cent",
	"nickel":      "5 cent",
	"dime":        "10 cent",
	"quarter":     "25 cent",
	"half_dollar": "half dollar",
	"dollar":      "dollar",
}

// titleStopWords are dropped when extracting keywords from a free-form
// attribution title.
var titleStopWords = map[string]bool{
	"coin":     true,
	"us":       true,
	"united":   true,
	"states":   true,
	"american": true,
}

const maxTitleKeywords = 3

const maxIncludeKeywords = 3

// BuildSearchQuery assembles the provider keyword string from the
// attribution fields: denomination, year, mintmark, series, up to three
// keywords from the title, and up to three operator include keywords.
// "US coin" is prepended when nothing else anchors the country.
func BuildSearchQuery(q Query) string {
	var parts []string

	if q.Denomination != nil {
		if term, ok := denominationSearchTerms[*q.Denomination]; ok {
			parts = append(parts, term)
		}
	}
	if q.Year != nil {
		parts = append(parts, strconv.Itoa(*q.Year))
	}
	if q.Mintmark != nil && *q.Mintmark != "" {
		parts = append(parts, *q.Mintmark)
	}
	if q.Series != nil && *q.Series != "" {
		parts = append(parts, *q.Series)
	}
	if q.Title != nil {
		parts = append(parts, titleKeywords(*q.Title)...)
	}

	added := 0
	for _, kw := range q.KeywordsInclude {
		if added >= maxIncludeKeywords {
			break
		}
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		parts = append(parts, kw)
		added++
	}

	if !strings.Contains(strings.ToUpper(strings.Join(parts, " ")), "US") {
		parts = append([]string{"US coin"}, parts...)
	}

	return strings.Join(parts, " ")
}

// titleKeywords extracts up to maxTitleKeywords search terms from a
// free-form title, skipping stop words and very short tokens.
func titleKeywords(title string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if titleStopWords[w] || len(w) <= 2 {
			continue
		}
		words = append(words, w)
		if len(words) == maxTitleKeywords {
			break
		}
	}
	return words
}
