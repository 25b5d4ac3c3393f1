package grading_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/grading"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

func i64Ptr(v int64) *int64   { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func baseInput() grading.RecommendationInput {
	return grading.RecommendationInput{
		IntakeID: "intake-1",
		Estimate: &domain.GradeEstimate{
			IntakeID:     "intake-1",
			ModelVersion: "baseline_v1",
			GradeBucket:  "MS",
			GradeDistribution: domain.JSONBMap{
				"AU": 0.4,
				"MS": 0.6,
			},
			DetailsRisk: domain.JSONBMap{"cleaned": 0.1},
			Confidence:  0.7,
		},
		Valuation: &domain.Valuation{
			IntakeID:         "intake-1",
			PriceCentsMedian: i64Ptr(10000),
		},
		Services: []*domain.GradingService{{
			ID:              "svc-1",
			Name:            "Example Grading Co",
			Enabled:         true,
			BaseFeeCents:    2000,
			PerCoinFeeCents: 1500,
		}},
		ShipPolicy: &domain.ShipPolicy{
			ID:                    "ship-1",
			OutboundShippingCents: 800,
			ReturnShippingCents:   1200,
			InsuranceRateBps:      100, // 1%
			HandlingCents:         300,
		},
		Multipliers: map[string]float64{"AU": 1.5, "MS": 3.0},
	}
}

func TestRecommendation_MultipliersPath(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	recs, err := e.Compute(baseInput())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	// Graded value: 10000 * (1.5*0.4 + 3.0*0.6) = 24000.
	assert.Equal(t, int64(24000), rec.ExpectedGradedValueCents)
	// Cost: 2000 + 1500 + 800 + 1200 + 300 + 1% of 10000 = 5900.
	assert.Equal(t, int64(5900), rec.TotalCostCents)
	// Profit: 24000 - 5900 - 10000 = 8100.
	assert.Equal(t, int64(8100), rec.ExpectedProfitCents)
	assert.Equal(t, domain.RecommendationSubmit, rec.Recommendation)
	assert.Equal(t, "multipliers", rec.Breakdown["method_used"])
}

func TestRecommendation_AssignsRowIDs(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	recs, err := e.Compute(baseInput())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].ID)

	// The rejection branch builds its rows separately and needs ids too.
	in := baseInput()
	in.Estimate.DetailsRisk = domain.JSONBMap{"cleaned": 0.8}
	rejected, err := e.Compute(in)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.NotEmpty(t, rejected[0].ID)
	assert.NotEqual(t, recs[0].ID, rejected[0].ID)
}

func TestRecommendation_CertifiedCompsOverride(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	in := baseInput()
	in.Comps = make([]*domain.CertifiedComp, 0, 12)
	// Six MS comps around 40000 and six AU comps around 16000.
	for i := 0; i < 6; i++ {
		in.Comps = append(in.Comps, &domain.CertifiedComp{
			PriceCents: 40000, GradePrefix: strPtr("MS"),
		})
		in.Comps = append(in.Comps, &domain.CertifiedComp{
			PriceCents: 16000, GradePrefix: strPtr("AU"),
		})
	}

	recs, err := e.Compute(in)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	// Graded value: 16000*0.4 + 40000*0.6 = 30400.
	assert.Equal(t, int64(30400), rec.ExpectedGradedValueCents)
	assert.Equal(t, "certified_comps_with_fallback", rec.Breakdown["method_used"])
}

func TestRecommendation_DetailsCompsExcluded(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	in := baseInput()
	// Ten comps but every one is a details coin, so bucket medians are
	// unusable and multipliers take over per bucket.
	for i := 0; i < 10; i++ {
		in.Comps = append(in.Comps, &domain.CertifiedComp{
			PriceCents: 500, GradePrefix: strPtr("MS"), DetailsFlag: true,
		})
	}

	recs, err := e.Compute(in)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, int64(24000), recs[0].ExpectedGradedValueCents)
}

func TestRecommendation_NumericMintStateBuckets(t *testing.T) {
	assert.Equal(t, "MS65", gradingGradeToBucketForTest(strPtr("MS"), intPtr(65)))
}

// gradingGradeToBucketForTest exercises bucket mapping through comps.
func gradingGradeToBucketForTest(prefix *string, numeric *int) string {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	in := baseInput()
	in.Estimate.GradeDistribution = domain.JSONBMap{"MS65": 1.0}
	for i := 0; i < 10; i++ {
		in.Comps = append(in.Comps, &domain.CertifiedComp{
			PriceCents: 77700, GradePrefix: prefix, GradeNumeric: numeric,
		})
	}

	recs, err := e.Compute(in)
	if err != nil || len(recs) != 1 {
		return ""
	}
	if recs[0].ExpectedGradedValueCents == 77700 {
		return "MS65"
	}
	return ""
}

func TestRecommendation_HighDetailsRisk(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	in := baseInput()
	in.Estimate.DetailsRisk = domain.JSONBMap{"cleaned": 0.6}

	recs, err := e.Compute(in)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, domain.RecommendationHighDetailsRisk, rec.Recommendation)
	assert.Equal(t, rec.ExpectedRawValueCents, rec.ExpectedGradedValueCents,
		"no grading premium is assumed for a probable details coin")
	assert.Equal(t, -rec.TotalCostCents, rec.ExpectedProfitCents)
}

func TestRecommendation_LowConfidenceNeedsPhotos(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	in := baseInput()
	in.Estimate.Confidence = 0.3

	recs, err := e.Compute(in)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RecommendationNeedsPhotos, recs[0].Recommendation)
}

func TestRecommendation_UnprofitableSellRaw(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	in := baseInput()
	// Multipliers that give no premium make grading a pure cost.
	in.Multipliers = map[string]float64{"AU": 1.0, "MS": 1.0}

	recs, err := e.Compute(in)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.RecommendationSellRaw, recs[0].Recommendation)
	assert.Negative(t, recs[0].ExpectedProfitCents)
}

func TestRecommendation_NoRawValue(t *testing.T) {
	e := grading.NewRecommendationEngine(logger.NewNoOp())

	in := baseInput()
	in.Valuation = nil

	_, err := e.Compute(in)
	assert.Error(t, err)
}
