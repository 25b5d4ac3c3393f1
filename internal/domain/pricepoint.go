package domain

import (
	"time"
)

// Price kinds for a price point observation.
const (
	PriceTypeSold = "sold"
	PriceTypeAsk  = "ask"
)

// PricePoint is one normalized external observation of an asking or sold
// price for an intake. Identity is (intake_id, source_id, dedupe_key).
type PricePoint struct {
	ID            string     `db:"id" json:"id"`
	IntakeID      string     `db:"intake_id" json:"intake_id"`
	SourceID      string     `db:"source_id" json:"source_id"`
	JobID         *string    `db:"job_id" json:"job_id,omitempty"`
	DedupeKey     string     `db:"dedupe_key" json:"dedupe_key"`
	PriceCents    int64      `db:"price_cents" json:"price_cents"`
	PriceType     string     `db:"price_type" json:"price_type"`
	ListingURL    string     `db:"listing_url" json:"listing_url"`
	ListingTitle  string     `db:"listing_title" json:"listing_title"`
	ListingDate   *time.Time `db:"listing_date" json:"listing_date,omitempty"`
	ObservedAt    *time.Time `db:"observed_at" json:"observed_at,omitempty"`
	MatchStrength float64    `db:"match_strength" json:"match_strength"`
	ExternalID    *string    `db:"external_id" json:"external_id,omitempty"`
	RawPayload    JSONBMap   `db:"raw_payload" json:"raw_payload,omitempty"`
	FilteredOut   bool       `db:"filtered_out" json:"filtered_out"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	// SourceReputation is populated by joined reads, not stored on the row.
	SourceReputation float64 `db:"source_reputation" json:"-"`
}

// Attribution describes what a coin intake is believed to be. Its fields
// drive provider query construction and match scoring.
type Attribution struct {
	ID              string    `db:"id" json:"id"`
	IntakeID        string    `db:"intake_id" json:"intake_id"`
	Year            *int      `db:"year" json:"year,omitempty"`
	Mintmark        *string   `db:"mintmark" json:"mintmark,omitempty"`
	Denomination    *string   `db:"denomination" json:"denomination,omitempty"`
	Series          *string   `db:"series" json:"series,omitempty"`
	Title           *string   `db:"title" json:"title,omitempty"`
	KeywordsInclude StringArr `db:"keywords_include" json:"keywords_include,omitempty"`
	KeywordsExclude StringArr `db:"keywords_exclude" json:"keywords_exclude,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CoinMedia is an uploaded image of an intake (obverse, reverse, edge).
type CoinMedia struct {
	ID          string    `db:"id" json:"id"`
	IntakeID    string    `db:"intake_id" json:"intake_id"`
	Kind        string    `db:"kind" json:"kind"`
	StoragePath string    `db:"storage_path" json:"storage_path"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Media kinds considered primary for grading.
const (
	MediaKindObverse = "obverse"
	MediaKindReverse = "reverse"
	MediaKindEdge    = "edge"
)
