package collector

import "strings"

// FilterExcluded drops listings whose title contains any exclude
// keyword. Keywords are matched case-insensitively as substrings.
// Returns the surviving listings and the number dropped.
func FilterExcluded(listings []Listing, excludeKeywords []string) ([]Listing, int) {
	normalized := make([]string, 0, len(excludeKeywords))
	for _, k := range excludeKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalized = append(normalized, k)
		}
	}
	if len(normalized) == 0 {
		return listings, 0
	}

	kept := make([]Listing, 0, len(listings))
	dropped := 0
	for _, l := range listings {
		title := strings.ToLower(l.Title)
		excluded := false
		for _, k := range normalized {
			if strings.Contains(title, k) {
				excluded = true
				break
			}
		}
		if excluded {
			dropped++
			continue
		}
		kept = append(kept, l)
	}

	return kept, dropped
}
