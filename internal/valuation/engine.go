// Package valuation computes market value summaries from collected
// price points.
package valuation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

// minPointsForOutlierFilter is the smallest sample the IQR filter runs
// on. Below it, every observation is kept.
const minPointsForOutlierFilter = 3

// Engine turns a set of price points into a valuation.
type Engine struct {
	logger logger.Interface
}

// NewEngine creates a valuation engine.
func NewEngine(log logger.Interface) *Engine {
	return &Engine{logger: log}
}

// Ladder holds the percentile ladder over the filtered prices.
type Ladder struct {
	P10    *int64
	P20    *int64
	P40    *int64
	Median *int64
	P60    *int64
	P80    *int64
	P90    *int64
	Mean   *int64
}

// Compute builds a valuation for an intake from its price points.
// Points already marked filtered_out are ignored; prices then pass
// through IQR outlier removal before the percentile ladder and
// confidence score are computed.
func (e *Engine) Compute(intakeID string, points []*domain.PricePoint) *domain.Valuation {
	valid := make([]*domain.PricePoint, 0, len(points))
	for _, p := range points {
		if !p.FilteredOut && p.PriceCents > 0 {
			valid = append(valid, p)
		}
	}

	if len(valid) == 0 {
		e.logger.Warn("No valid price points for valuation", "intake_id", intakeID)
		return &domain.Valuation{
			ID:              uuid.NewString(),
			IntakeID:        intakeID,
			ConfidenceScore: 1,
			Explanation:     "No valid comparable listings found.",
		}
	}

	prices := make([]int64, 0, len(valid))
	for _, p := range valid {
		prices = append(prices, p.PriceCents)
	}

	filtered := filterOutliersIQR(prices)
	ladder := computeLadder(filtered)

	compCount := len(filtered)
	soldCount, askCount := countByType(valid)
	sourcesCount := countSources(valid)

	confidence := confidenceScore(valid, ladder, compCount)
	explanation := buildExplanation(compCount, soldCount, askCount, sourcesCount, confidence, ladder)

	e.logger.Debug("Computed valuation",
		"intake_id", intakeID,
		"comp_count", compCount,
		"confidence", confidence)

	return &domain.Valuation{
		ID:               uuid.NewString(),
		IntakeID:         intakeID,
		PriceCentsP10:    ladder.P10,
		PriceCentsP20:    ladder.P20,
		PriceCentsP40:    ladder.P40,
		PriceCentsMedian: ladder.Median,
		PriceCentsP60:    ladder.P60,
		PriceCentsP80:    ladder.P80,
		PriceCentsP90:    ladder.P90,
		PriceCentsMean:   ladder.Mean,
		ConfidenceScore:  confidence,
		Explanation:      explanation,
		CompCount:        compCount,
		CompSourcesCount: sourcesCount,
		SoldCount:        soldCount,
		AskCount:         askCount,
		Metadata: domain.JSONBMap{
			"original_comp_count": len(prices),
			"filtered_comp_count": compCount,
		},
	}
}

// filterOutliersIQR drops prices outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR].
// Quartiles are taken at indices n/4 and 3n/4 of the sorted sample.
func filterOutliersIQR(prices []int64) []int64 {
	if len(prices) < minPointsForOutlierFilter {
		return prices
	}

	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	q1 := float64(sorted[len(sorted)/4])
	q3 := float64(sorted[(3*len(sorted))/4])
	iqr := q3 - q1

	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	filtered := make([]int64, 0, len(prices))
	for _, p := range prices {
		if float64(p) >= lower && float64(p) <= upper {
			filtered = append(filtered, p)
		}
	}

	return filtered
}

// computeLadder computes the percentile ladder. Each percentile is the
// sorted value at index int(p * (n-1)).
func computeLadder(prices []int64) Ladder {
	if len(prices) == 0 {
		return Ladder{}
	}

	sorted := make([]int64, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(p float64) *int64 {
		v := sorted[int(p*float64(len(sorted)-1))]
		return &v
	}

	var sum int64
	for _, p := range sorted {
		sum += p
	}
	mean := sum / int64(len(sorted))

	return Ladder{
		P10:    at(0.10),
		P20:    at(0.20),
		P40:    at(0.40),
		Median: at(0.50),
		P60:    at(0.60),
		P80:    at(0.80),
		P90:    at(0.90),
		Mean:   &mean,
	}
}

func countByType(points []*domain.PricePoint) (sold, ask int) {
	for _, p := range points {
		switch p.PriceType {
		case domain.PriceTypeSold:
			sold++
		case domain.PriceTypeAsk:
			ask++
		}
	}
	return sold, ask
}

func countSources(points []*domain.PricePoint) int {
	seen := make(map[string]bool)
	for _, p := range points {
		if p.SourceID != "" {
			seen[p.SourceID] = true
		}
	}
	return len(seen)
}

// confidenceScore rates the valuation from 1 to 10. Comp volume earns up
// to 3 points, average source reputation up to 2, the sold/ask mix up to
// 2 with an ask-heavy cap of 7, and spread tightness up to 3.
func confidenceScore(points []*domain.PricePoint, ladder Ladder, compCount int) int {
	score := 0

	switch {
	case compCount >= 20:
		score += 3
	case compCount >= 10:
		score += 2
	case compCount >= 5:
		score += 1
	}

	var repSum float64
	repCount := 0
	for _, p := range points {
		if p.SourceReputation > 0 {
			repSum += p.SourceReputation
			repCount++
		}
	}
	if repCount > 0 {
		score += int(repSum / float64(repCount) * 2)
	}

	if ladder.Median != nil && ladder.P10 != nil && ladder.P90 != nil && *ladder.Median > 0 {
		spread := float64(*ladder.P90-*ladder.P10) / float64(*ladder.Median)
		switch {
		case spread < 0.2:
			score += 3
		case spread < 0.4:
			score += 2
		case spread < 0.6:
			score++
		}
	}

	sold, ask := countByType(points)
	if total := sold + ask; total > 0 {
		ratio := float64(sold) / float64(total)
		switch {
		case ratio >= 0.8:
			score += 2
		case ratio >= 0.5:
			score++
		default:
			// Ask prices are aspirational, cap confidence when they dominate.
			if score > 7 {
				score = 7
			}
		}
	}

	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// buildExplanation writes the operator-facing summary of how the
// valuation was derived.
func buildExplanation(compCount, soldCount, askCount, sourcesCount, confidence int, ladder Ladder) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Valuation based on %d comparable listings", compCount))
	if sourcesCount > 1 {
		parts = append(parts, fmt.Sprintf("from %d sources", sourcesCount))
	}
	if soldCount > 0 {
		parts = append(parts, fmt.Sprintf("(%d sold, %d asking)", soldCount, askCount))
	}

	if ladder.Median != nil {
		parts = append(parts, fmt.Sprintf("\nMedian: $%.2f", float64(*ladder.Median)/100))
		if ladder.P10 != nil && ladder.P90 != nil {
			parts = append(parts, fmt.Sprintf("Range (10th-90th percentile): $%.2f - $%.2f",
				float64(*ladder.P10)/100, float64(*ladder.P90)/100))
		}
	}

	parts = append(parts, fmt.Sprintf("\nConfidence Score: %d/10", confidence))

	switch {
	case confidence >= 8:
		parts = append(parts, "(High confidence - strong comp data)")
	case confidence >= 5:
		parts = append(parts, "(Moderate confidence - reasonable comp data)")
	default:
		parts = append(parts, "(Low confidence - limited or mixed comp data)")
	}

	return strings.Join(parts, " ")
}
