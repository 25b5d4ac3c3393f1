package domain

import (
	"time"
)

// Grade buckets ordered from most worn to mint state.
var GradeBuckets = []string{"AG", "G", "VG", "F", "VF", "XF", "AU", "MS"}

// GradeEstimate is the output of an image-based grade model for an
// intake. Identity is (intake_id, model_version).
type GradeEstimate struct {
	ID                string    `db:"id" json:"id"`
	IntakeID          string    `db:"intake_id" json:"intake_id"`
	ModelVersion      string    `db:"model_version" json:"model_version"`
	GradeBucket       string    `db:"grade_bucket" json:"grade_bucket"`
	GradeDistribution JSONBMap  `db:"grade_distribution" json:"grade_distribution"`
	DetailsRisk       JSONBMap  `db:"details_risk" json:"details_risk"`
	Confidence        float64   `db:"confidence" json:"confidence"`
	Notes             string    `db:"notes" json:"notes"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// GradingService is a third-party grading company's fee schedule.
type GradingService struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Enabled            bool      `db:"enabled" json:"enabled"`
	BaseFeeCents       int64     `db:"base_fee_cents" json:"base_fee_cents"`
	PerCoinFeeCents    int64     `db:"per_coin_fee_cents" json:"per_coin_fee_cents"`
	RequiresMembership bool      `db:"requires_membership" json:"requires_membership"`
	MembershipFeeCents int64     `db:"membership_fee_cents" json:"membership_fee_cents"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// ShipPolicy captures shipping and insurance costs for a grading round trip.
type ShipPolicy struct {
	ID                    string    `db:"id" json:"id"`
	Name                  string    `db:"name" json:"name"`
	IsDefault             bool      `db:"is_default" json:"is_default"`
	OutboundShippingCents int64     `db:"outbound_shipping_cents" json:"outbound_shipping_cents"`
	ReturnShippingCents   int64     `db:"return_shipping_cents" json:"return_shipping_cents"`
	InsuranceRateBps      int       `db:"insurance_rate_bps" json:"insurance_rate_bps"`
	HandlingCents         int64     `db:"handling_cents" json:"handling_cents"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// Recommendation outcomes produced by the ROI engine.
const (
	RecommendationSubmit           = "submit_for_grading"
	RecommendationSellRaw          = "sell_raw"
	RecommendationNeedsPhotos      = "needs_better_photos"
	RecommendationHighDetailsRisk  = "high_details_risk"
)

// GradingRecommendation is the ROI verdict for one grading service.
// Identity is (intake_id, service_id).
type GradingRecommendation struct {
	ID                       string    `db:"id" json:"id"`
	IntakeID                 string    `db:"intake_id" json:"intake_id"`
	ServiceID                string    `db:"service_id" json:"service_id"`
	ShipPolicyID             *string   `db:"ship_policy_id" json:"ship_policy_id,omitempty"`
	ExpectedRawValueCents    int64     `db:"expected_raw_value_cents" json:"expected_raw_value_cents"`
	ExpectedGradedValueCents int64     `db:"expected_graded_value_cents" json:"expected_graded_value_cents"`
	TotalCostCents           int64     `db:"total_cost_cents" json:"total_cost_cents"`
	ExpectedProfitCents      int64     `db:"expected_profit_cents" json:"expected_profit_cents"`
	Recommendation           string    `db:"recommendation" json:"recommendation"`
	Breakdown                JSONBMap  `db:"breakdown" json:"breakdown,omitempty"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
}

// CertifiedComp is a price point observed for an already-graded coin,
// joined with its certification details.
type CertifiedComp struct {
	PricePointID string  `db:"price_point_id" json:"price_point_id"`
	PriceCents   int64   `db:"price_cents" json:"price_cents"`
	GradePrefix  *string `db:"grade_prefix" json:"grade_prefix,omitempty"`
	GradeNumeric *int    `db:"grade_numeric" json:"grade_numeric,omitempty"`
	DetailsFlag  bool    `db:"details_flag" json:"details_flag"`
}

// JobEvent is a structured per-job log row for operator visibility.
type JobEvent struct {
	ID        string    `db:"id" json:"id"`
	JobID     string    `db:"job_id" json:"job_id"`
	Level     string    `db:"log_level" json:"log_level"`
	Message   string    `db:"message" json:"message"`
	Metadata  JSONBMap  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
