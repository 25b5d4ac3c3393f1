package valuation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
	"github.com/mintmarkhq/mintmark/internal/valuation"
)

func soldPoint(source string, cents int64) *domain.PricePoint {
	return &domain.PricePoint{
		SourceID:         source,
		PriceCents:       cents,
		PriceType:        domain.PriceTypeSold,
		SourceReputation: 1.0,
	}
}

func askPoint(source string, cents int64) *domain.PricePoint {
	p := soldPoint(source, cents)
	p.PriceType = domain.PriceTypeAsk
	return p
}

func TestEngine_Compute_Empty(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	v := e.Compute("intake-1", nil)

	assert.Equal(t, 0, v.CompCount)
	assert.Equal(t, 1, v.ConfidenceScore)
	assert.Nil(t, v.PriceCentsMedian)
	assert.Contains(t, v.Explanation, "No valid comparable listings")
}

func TestEngine_Compute_AssignsRowID(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	// Both the populated and the no-comps valuation get a fresh row id,
	// the upsert binds it verbatim.
	v := e.Compute("intake-1", []*domain.PricePoint{soldPoint("s1", 5000)})
	assert.NotEmpty(t, v.ID)

	empty := e.Compute("intake-2", nil)
	assert.NotEmpty(t, empty.ID)
	assert.NotEqual(t, v.ID, empty.ID)
}

func TestEngine_Compute_IgnoresFilteredPoints(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	filtered := soldPoint("s1", 10000)
	filtered.FilteredOut = true

	v := e.Compute("intake-1", []*domain.PricePoint{filtered})

	assert.Equal(t, 0, v.CompCount)
	assert.Equal(t, 1, v.ConfidenceScore)
}

func TestEngine_Compute_PercentileLadder(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	points := make([]*domain.PricePoint, 0, 10)
	for i := int64(1); i <= 10; i++ {
		points = append(points, soldPoint("s1", i*1000))
	}

	v := e.Compute("intake-1", points)

	require.NotNil(t, v.PriceCentsMedian)
	require.NotNil(t, v.PriceCentsP10)
	require.NotNil(t, v.PriceCentsP90)

	// Indices are int(p * 9) over the sorted sample 1000..10000.
	assert.Equal(t, int64(1000), *v.PriceCentsP10)    // index 0
	assert.Equal(t, int64(5000), *v.PriceCentsMedian) // index 4
	assert.Equal(t, int64(9000), *v.PriceCentsP90)    // index 8
	assert.Equal(t, int64(5500), *v.PriceCentsMean)
	assert.Equal(t, 10, v.CompCount)
	assert.Equal(t, 10, v.SoldCount)
}

func TestEngine_Compute_OutlierRemoved(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	points := []*domain.PricePoint{
		soldPoint("s1", 10000),
		soldPoint("s1", 10500),
		soldPoint("s1", 11000),
		soldPoint("s1", 10200),
		soldPoint("s1", 9900),
		soldPoint("s1", 500000), // way outside the cluster
	}

	v := e.Compute("intake-1", points)

	assert.Equal(t, 5, v.CompCount, "the outlier should be dropped")
	require.NotNil(t, v.PriceCentsMedian)
	assert.Less(t, *v.PriceCentsMedian, int64(12000))
	assert.Equal(t, 6, v.Metadata["original_comp_count"])
	assert.Equal(t, 5, v.Metadata["filtered_comp_count"])
}

func TestEngine_Compute_AskHeavyConfidenceCapped(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	// Many tightly clustered ask prices from a reputable source would
	// otherwise score high.
	points := make([]*domain.PricePoint, 0, 25)
	for i := int64(0); i < 25; i++ {
		points = append(points, askPoint("s1", 10000+i*10))
	}

	v := e.Compute("intake-1", points)

	assert.LessOrEqual(t, v.ConfidenceScore, 7,
		"ask-dominated valuations must not exceed confidence 7")
	assert.Equal(t, 0, v.SoldCount)
	assert.Equal(t, 25, v.AskCount)
}

func TestEngine_Compute_StrongSoldDataScoresHigh(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	points := make([]*domain.PricePoint, 0, 25)
	for i := int64(0); i < 25; i++ {
		src := "s1"
		if i%2 == 0 {
			src = "s2"
		}
		points = append(points, soldPoint(src, 10000+i*20))
	}

	v := e.Compute("intake-1", points)

	assert.GreaterOrEqual(t, v.ConfidenceScore, 8)
	assert.Equal(t, 2, v.CompSourcesCount)
	assert.Contains(t, v.Explanation, "High confidence")
}

func TestEngine_Compute_ExplanationMentionsCounts(t *testing.T) {
	e := valuation.NewEngine(logger.NewNoOp())

	points := []*domain.PricePoint{
		soldPoint("s1", 10000),
		soldPoint("s2", 11000),
		askPoint("s1", 12000),
	}

	v := e.Compute("intake-1", points)

	assert.Contains(t, v.Explanation, "3 comparable listings")
	assert.Contains(t, v.Explanation, "from 2 sources")
	assert.Contains(t, v.Explanation, "(2 sold, 1 asking)")
	assert.Contains(t, v.Explanation, "Median: $")
}
