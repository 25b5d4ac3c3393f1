package grading

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mintmarkhq/mintmark/internal/domain"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

// ModelVersionBaselineV1 identifies the heuristic image-analysis model.
const ModelVersionBaselineV1 = "baseline_v1"

const (
	confidenceGoodImages     = 0.7
	confidenceDegradedImages = 0.5
	highRiskThreshold        = 0.3
)

// maxImagesAnalyzed caps how many photos feed one estimate. Obverse and
// reverse carry nearly all the grading signal.
const maxImagesAnalyzed = 2

// Estimator produces grade estimates from coin photos.
type Estimator struct {
	logger logger.Interface
}

// NewEstimator creates a baseline estimator.
func NewEstimator(log logger.Interface) *Estimator {
	return &Estimator{logger: log}
}

// Estimate analyzes up to two photos and returns a grade estimate: the
// most likely grade bucket, the full distribution, aggregated details
// risks, and a confidence reflecting photo quality. Returns an error
// when no image can be analyzed.
func (e *Estimator) Estimate(intakeID string, images [][]byte) (*domain.GradeEstimate, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images provided for intake %s", intakeID)
	}

	analyses := make([]*Analysis, 0, maxImagesAnalyzed)
	qualityStatus := "good"
	aggregatedRisks := make(map[string]float64, len(riskKinds))
	for _, kind := range riskKinds {
		aggregatedRisks[kind] = 0
	}

	for _, data := range images {
		if len(analyses) == maxImagesAnalyzed {
			break
		}

		a, err := AnalyzeImage(data)
		if err != nil {
			e.logger.Warn("Skipping unanalyzable image", "intake_id", intakeID, "error", err)
			continue
		}
		analyses = append(analyses, a)

		for kind, v := range a.Risks {
			if v > aggregatedRisks[kind] {
				aggregatedRisks[kind] = v
			}
		}

		if !a.Quality.Sufficient {
			qualityStatus = "low_resolution"
		} else if a.Quality.HasGlare {
			qualityStatus = "glare"
		}
	}

	if len(analyses) == 0 {
		return nil, fmt.Errorf("no analyzable images for intake %s", intakeID)
	}

	var edgeSum, wearSum, lusterSum float64
	for _, a := range analyses {
		edgeSum += a.Surface.EdgeDensity
		wearSum += a.Surface.WearIndicator
		lusterSum += a.Surface.LusterScore
	}
	n := float64(len(analyses))

	distribution := mapFeaturesToGrades(edgeSum/n, wearSum/n, lusterSum/n, aggregatedRisks)

	bucket := ""
	best := -1.0
	for _, b := range domain.GradeBuckets {
		if p := distribution[b]; p > best {
			best = p
			bucket = b
		}
	}

	confidence := confidenceGoodImages
	if qualityStatus != "good" {
		confidence = confidenceDegradedImages
	}

	return &domain.GradeEstimate{
		ID:                uuid.NewString(),
		IntakeID:          intakeID,
		ModelVersion:      ModelVersionBaselineV1,
		GradeBucket:       bucket,
		GradeDistribution: distributionToJSONB(distribution),
		DetailsRisk:       risksToJSONB(aggregatedRisks),
		Confidence:        confidence,
		Notes:             buildNotes(qualityStatus, aggregatedRisks),
	}, nil
}

// mapFeaturesToGrades converts averaged surface features into a grade
// probability distribution, normalized to sum to one.
func mapFeaturesToGrades(edgeDensity, wear, luster float64, risks map[string]float64) map[string]float64 {
	d := make(map[string]float64, len(domain.GradeBuckets))
	for _, b := range domain.GradeBuckets {
		d[b] = 0
	}

	maxRisk := 0.0
	for _, v := range risks {
		if v > maxRisk {
			maxRisk = v
		}
	}

	switch {
	case maxRisk > 0.5:
		// Probable details problem, mass sits in circulated grades.
		d["AG"], d["G"], d["VG"], d["F"] = 0.1, 0.15, 0.2, 0.2
		d["VF"], d["XF"], d["AU"], d["MS"] = 0.15, 0.1, 0.05, 0.05
	case wear > 0.7:
		d["AG"], d["G"], d["VG"], d["F"] = 0.05, 0.1, 0.15, 0.2
		d["VF"], d["XF"], d["AU"], d["MS"] = 0.2, 0.15, 0.1, 0.05
	case wear > 0.4:
		d["VF"], d["XF"], d["AU"], d["MS"] = 0.15, 0.25, 0.35, 0.25
	case luster > 0.6 && edgeDensity > 0.5:
		d["XF"], d["AU"], d["MS"] = 0.1, 0.2, 0.7
	default:
		d["XF"], d["AU"], d["MS"] = 0.1, 0.35, 0.55
	}

	var total float64
	for _, v := range d {
		total += v
	}
	if total > 0 {
		for b := range d {
			d[b] /= total
		}
	}

	return d
}

func buildNotes(qualityStatus string, risks map[string]float64) string {
	var parts []string

	if qualityStatus != "good" {
		parts = append(parts, "Quality status: "+qualityStatus)
	}

	var high []string
	for _, kind := range riskKinds {
		if risks[kind] > highRiskThreshold {
			high = append(high, kind)
		}
	}
	if len(high) > 0 {
		parts = append(parts, "High details risk detected: "+strings.Join(high, ", "))
	}

	if len(parts) == 0 {
		return "Baseline estimate based on image analysis"
	}

	return strings.Join(parts, "; ")
}

func distributionToJSONB(d map[string]float64) domain.JSONBMap {
	out := make(domain.JSONBMap, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func risksToJSONB(r map[string]float64) domain.JSONBMap {
	out := make(domain.JSONBMap, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
