// Package collector turns coin attributions into normalized price
// points by querying external listing providers.
package collector

import (
	"time"

	"github.com/mintmarkhq/mintmark/internal/domain"
)

// Listing is one raw provider result before normalization.
type Listing struct {
	ExternalID string
	Title      string
	URL        string
	PriceCents int64
	Currency   string
	PriceType  string
	EndedAt    *time.Time
	RawPayload domain.JSONBMap
}

// Query carries everything a provider needs to search for comps.
type Query struct {
	IntakeID        string
	SourceID        string
	JobID           string
	Year            *int
	Mintmark        *string
	Denomination    *string
	Series          *string
	Title           *string
	KeywordsInclude []string
}

// QueryFromAttribution builds a provider query from a coin attribution.
func QueryFromAttribution(a *domain.Attribution, sourceID, jobID string) Query {
	return Query{
		IntakeID:        a.IntakeID,
		SourceID:        sourceID,
		JobID:           jobID,
		Year:            a.Year,
		Mintmark:        a.Mintmark,
		Denomination:    a.Denomination,
		Series:          a.Series,
		Title:           a.Title,
		KeywordsInclude: a.KeywordsInclude,
	}
}
