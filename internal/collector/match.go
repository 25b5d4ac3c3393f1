package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// denominationMatchTokens maps canonical denomination slugs to the
// synonyms accepted in a listing title.
var denominationMatchTokens = map[string][]string{
	"penny":       {"penny", "cent", "1 cent"},
	"nickel":      {"nickel", "5 cent"},
	"dime":        {"dime", "10 cent"},
	"quarter":     {"quarter", "25 cent"},
	"half_dollar": {"half dollar", "half", "50 cent"},
	"dollar":      {"dollar", "1 dollar"},
}

// MatchStrength scores how well a listing title matches the queried
// attribution, as the fraction of attribution tokens found in the title.
// Year, mintmark, and denomination each count as one token; each series
// word longer than three characters counts as one. With no tokens to
// check the score is a neutral 0.5.
func MatchStrength(q Query, listingTitle string) float64 {
	titleLower := strings.ToLower(listingTitle)

	matched := 0
	total := 0

	if q.Year != nil {
		total++
		if strings.Contains(titleLower, strconv.Itoa(*q.Year)) {
			matched++
		}
	}

	if q.Mintmark != nil && *q.Mintmark != "" {
		total++
		if strings.Contains(strings.ToUpper(titleLower), strings.ToUpper(*q.Mintmark)) {
			matched++
		}
	}

	if q.Denomination != nil {
		if tokens, ok := denominationMatchTokens[*q.Denomination]; ok {
			total++
			for _, token := range tokens {
				if strings.Contains(titleLower, token) {
					matched++
					break
				}
			}
		}
	}

	if q.Series != nil {
		for _, word := range strings.Fields(strings.ToLower(*q.Series)) {
			if len(word) <= 3 {
				continue
			}
			total++
			if strings.Contains(titleLower, word) {
				matched++
			}
		}
	}

	if total == 0 {
		return 0.5
	}

	return float64(matched) / float64(total)
}

// DedupeKey produces the deterministic identity for a price point.
// Listings with a provider item ID use it directly; everything else
// hashes the normalized URL, title, price, observation day, and price
// type, so re-collecting the same listing on the same day is idempotent.
func DedupeKey(l Listing) string {
	if l.ExternalID != "" {
		return "ext_" + l.ExternalID
	}

	dateBucket := "unknown"
	if l.EndedAt != nil {
		dateBucket = l.EndedAt.UTC().Format("2006-01-02")
	}

	input := fmt.Sprintf("%s|%s|%d|%s|%s",
		normalizeURL(l.URL),
		normalizeTitle(l.Title),
		l.PriceCents,
		dateBucket,
		l.PriceType,
	)

	sum := sha256.Sum256([]byte(input))
	return "hash_" + hex.EncodeToString(sum[:])[:16]
}

// normalizeURL strips the query string and fragment and lowercases.
func normalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u := rawURL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return strings.ToLower(strings.TrimSpace(u))
}

// normalizeTitle lowercases and collapses whitespace.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
