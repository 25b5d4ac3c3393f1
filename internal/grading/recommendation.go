package grading

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

const (
	// minCertifiedComps is the sample size below which certified comps
	// are ignored in favor of grade multipliers.
	minCertifiedComps = 10
	// minCompsPerBucket is the per-bucket sample needed to trust the
	// bucket's own median.
	minCompsPerBucket = 3
	// lowConfidenceThreshold routes to needs_better_photos.
	lowConfidenceThreshold = 0.4
	// detailsRiskRejection routes straight to high_details_risk.
	detailsRiskRejection = 0.5
)

// bucketOrder lists grade buckets from most worn to finest, used for
// nearest-bucket fallback.
var bucketOrder = []string{
	"AG", "G", "VG", "F", "VF", "XF", "AU", "MS",
	"MS60", "MS61", "MS62", "MS63", "MS64", "MS65", "MS66", "MS67",
}

// RecommendationEngine computes grading ROI verdicts per service.
type RecommendationEngine struct {
	logger logger.Interface
}

// NewRecommendationEngine creates a recommendation engine.
func NewRecommendationEngine(log logger.Interface) *RecommendationEngine {
	return &RecommendationEngine{logger: log}
}

// RecommendationInput gathers everything one ROI computation needs.
type RecommendationInput struct {
	IntakeID    string
	Estimate    *domain.GradeEstimate
	Valuation   *domain.Valuation
	Services    []*domain.GradingService
	ShipPolicy  *domain.ShipPolicy
	Comps       []*domain.CertifiedComp
	Multipliers map[string]float64
}

// Compute produces one recommendation per enabled grading service.
// Expected graded value uses certified comps when at least ten exist,
// with per-bucket medians (falling back to the nearest graded bucket,
// then to multipliers); otherwise grade multipliers throughout.
func (e *RecommendationEngine) Compute(in RecommendationInput) ([]*domain.GradingRecommendation, error) {
	if len(in.Services) == 0 {
		e.logger.Warn("No enabled grading services", "intake_id", in.IntakeID)
		return []*domain.GradingRecommendation{}, nil
	}

	rawValue := int64(0)
	if in.Valuation != nil && in.Valuation.PriceCentsMedian != nil {
		rawValue = *in.Valuation.PriceCentsMedian
	}
	if rawValue <= 0 {
		return nil, fmt.Errorf("no raw value available for intake %s", in.IntakeID)
	}

	distribution := floatMap(in.Estimate.GradeDistribution)
	risks := floatMap(in.Estimate.DetailsRisk)

	maxRisk := 0.0
	for _, v := range risks {
		if v > maxRisk {
			maxRisk = v
		}
	}

	var policyID *string
	if in.ShipPolicy != nil {
		policyID = &in.ShipPolicy.ID
	}

	recs := make([]*domain.GradingRecommendation, 0, len(in.Services))

	if maxRisk > detailsRiskRejection {
		for _, svc := range in.Services {
			cost := totalCost(svc, in.ShipPolicy, rawValue)
			recs = append(recs, &domain.GradingRecommendation{
				ID:                       uuid.NewString(),
				IntakeID:                 in.IntakeID,
				ServiceID:                svc.ID,
				ShipPolicyID:             policyID,
				ExpectedRawValueCents:    rawValue,
				ExpectedGradedValueCents: rawValue,
				TotalCostCents:           cost,
				ExpectedProfitCents:      -cost,
				Recommendation:           domain.RecommendationHighDetailsRisk,
				Breakdown: domain.JSONBMap{
					"method_used":      "details_risk_rejection",
					"max_details_risk": maxRisk,
				},
			})
		}
		return recs, nil
	}

	gradedValue, breakdown := e.expectedGradedValue(rawValue, distribution, in.Comps, in.Multipliers)

	for _, svc := range in.Services {
		cost := totalCost(svc, in.ShipPolicy, rawValue)
		profit := gradedValue - cost - rawValue

		recs = append(recs, &domain.GradingRecommendation{
			ID:                       uuid.NewString(),
			IntakeID:                 in.IntakeID,
			ServiceID:                svc.ID,
			ShipPolicyID:             policyID,
			ExpectedRawValueCents:    rawValue,
			ExpectedGradedValueCents: gradedValue,
			TotalCostCents:           cost,
			ExpectedProfitCents:      profit,
			Recommendation:           verdict(profit, in.Estimate.Confidence),
			Breakdown:                breakdown,
		})
	}

	return recs, nil
}

// expectedGradedValue is the probability-weighted value across the grade
// distribution.
func (e *RecommendationEngine) expectedGradedValue(
	rawValue int64,
	distribution map[string]float64,
	comps []*domain.CertifiedComp,
	multipliers map[string]float64,
) (int64, domain.JSONBMap) {
	breakdown := domain.JSONBMap{"method_used": "multipliers"}

	valuesByBucket := make(map[string][]int64)
	for _, c := range comps {
		if c.PriceCents <= 0 || c.DetailsFlag {
			continue
		}
		bucket := gradeToBucket(c.GradePrefix, c.GradeNumeric)
		if bucket == "" {
			continue
		}
		valuesByBucket[bucket] = append(valuesByBucket[bucket], c.PriceCents)
	}

	useComps := len(comps) >= minCertifiedComps
	if useComps {
		breakdown["method_used"] = "certified_comps_with_fallback"
		breakdown["certified_comps_total"] = len(comps)
	}

	bucketMethods := make(map[string]string)

	var weightedValue, weight float64
	for bucket, probability := range distribution {
		if probability <= 0 {
			continue
		}

		var estimated float64
		method := "multipliers"

		if useComps {
			if vals := valuesByBucket[bucket]; len(vals) >= minCompsPerBucket {
				estimated = float64(medianInt64(vals))
				method = "certified_comps"
			} else if nearest := nearestBucketWithComps(bucket, valuesByBucket); nearest != "" {
				estimated = float64(medianInt64(valuesByBucket[nearest]))
				method = "certified_comps_nearest_" + nearest
			}
		}

		if method == "multipliers" {
			m, ok := multipliers[bucket]
			if !ok {
				m = 1.0
			}
			estimated = float64(rawValue) * m
		}

		bucketMethods[bucket] = method
		weightedValue += estimated * probability
		weight += probability
	}

	if useComps {
		breakdown["bucket_methods"] = bucketMethods
	}

	if weight == 0 {
		return rawValue, breakdown
	}

	return int64(weightedValue / weight), breakdown
}

// gradeToBucket maps a certification grade to a bucket. Numeric mint
// state grades 60-67 get their own buckets.
func gradeToBucket(prefix *string, numeric *int) string {
	if prefix == nil || *prefix == "" {
		return ""
	}

	p := *prefix
	if p == "MS" && numeric != nil && *numeric >= 60 && *numeric <= 67 {
		return fmt.Sprintf("MS%d", *numeric)
	}

	return p
}

// nearestBucketWithComps walks outward from bucket looking for one with
// a usable comp sample.
func nearestBucketWithComps(bucket string, valuesByBucket map[string][]int64) string {
	idx := -1
	for i, b := range bucketOrder {
		if b == bucket {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ""
	}

	for _, offset := range []int{1, -1, 2, -2, 3, -3} {
		j := idx + offset
		if j < 0 || j >= len(bucketOrder) {
			continue
		}
		if len(valuesByBucket[bucketOrder[j]]) >= minCompsPerBucket {
			return bucketOrder[j]
		}
	}

	return ""
}

// totalCost sums service fees, shipping, insurance on the declared
// value, and handling.
func totalCost(svc *domain.GradingService, policy *domain.ShipPolicy, declaredValue int64) int64 {
	total := svc.BaseFeeCents + svc.PerCoinFeeCents
	if svc.RequiresMembership {
		total += svc.MembershipFeeCents
	}

	if policy != nil {
		total += policy.OutboundShippingCents + policy.ReturnShippingCents + policy.HandlingCents
		if policy.InsuranceRateBps > 0 {
			total += declaredValue * int64(policy.InsuranceRateBps) / 10000
		}
	}

	return total
}

// verdict maps profit and estimate confidence to a recommendation.
func verdict(profit int64, confidence float64) string {
	if confidence < lowConfidenceThreshold {
		return domain.RecommendationNeedsPhotos
	}
	if profit > 0 {
		return domain.RecommendationSubmit
	}
	return domain.RecommendationSellRaw
}

func medianInt64(vals []int64) int64 {
	sorted := make([]int64, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// floatMap extracts float64 values from a JSONB map, tolerating the
// numeric types the JSON decoder produces.
func floatMap(m domain.JSONBMap) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		}
	}
	return out
}
