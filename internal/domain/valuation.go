package domain

import (
	"time"
)

// Valuation is the statistical summary of an intake's market value
// derived from its price points. One row per intake.
type Valuation struct {
	ID               string    `db:"id" json:"id"`
	IntakeID         string    `db:"intake_id" json:"intake_id"`
	PriceCentsP10    *int64    `db:"price_cents_p10" json:"price_cents_p10,omitempty"`
	PriceCentsP20    *int64    `db:"price_cents_p20" json:"price_cents_p20,omitempty"`
	PriceCentsP40    *int64    `db:"price_cents_p40" json:"price_cents_p40,omitempty"`
	PriceCentsMedian *int64    `db:"price_cents_median" json:"price_cents_median,omitempty"`
	PriceCentsP60    *int64    `db:"price_cents_p60" json:"price_cents_p60,omitempty"`
	PriceCentsP80    *int64    `db:"price_cents_p80" json:"price_cents_p80,omitempty"`
	PriceCentsP90    *int64    `db:"price_cents_p90" json:"price_cents_p90,omitempty"`
	PriceCentsMean   *int64    `db:"price_cents_mean" json:"price_cents_mean,omitempty"`
	ConfidenceScore  int       `db:"confidence_score" json:"confidence_score"`
	Explanation      string    `db:"explanation" json:"explanation"`
	CompCount        int       `db:"comp_count" json:"comp_count"`
	CompSourcesCount int       `db:"comp_sources_count" json:"comp_sources_count"`
	SoldCount        int       `db:"sold_count" json:"sold_count"`
	AskCount         int       `db:"ask_count" json:"ask_count"`
	Metadata         JSONBMap  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
