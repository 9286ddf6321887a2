package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/gisaid-prep-pipeline/internal/domain"
)

// QualityEvaluator scores a sample's assignment records against the virus
// profile's thresholds. Evaluation is pure and deterministic: identical
// inputs always produce identical verdicts.
type QualityEvaluator struct {
	logger *logrus.Logger
}

// NewQualityEvaluator creates a quality evaluator.
func NewQualityEvaluator(logger *logrus.Logger) *QualityEvaluator {
	return &QualityEvaluator{logger: logger}
}

// Evaluate derives the per-segment and overall eligibility verdicts for one
// sample. Records are grouped by expected segment (profiles without
// segments form a single implicit whole-genome group); within each group
// the winner is the candidate with the highest coverage, ties broken by
// higher depth, then by lexically smaller assigned label.
func (e *QualityEvaluator) Evaluate(profile *domain.VirusProfile, limsID string, records []domain.AssignmentRecord) domain.SampleVerdict {
	verdict := domain.SampleVerdict{
		LimsID:    limsID,
		VirusID:   profile.ID,
		VirusType: profile.IsolateLabel,
		Control:   domain.IsControl(limsID),
	}

	grouped := make(map[string][]domain.AssignmentRecord)
	for _, rec := range records {
		grouped[rec.Segment] = append(grouped[rec.Segment], rec)
	}

	overall := true
	for _, spec := range profile.ExpectedSegments() {
		sv := domain.SegmentVerdict{
			Segment:     spec.Name,
			Slot:        spec.Slot,
			MinDepth:    spec.MinDepth,
			MinCoverage: spec.MinCoverage,
		}

		if candidates := grouped[spec.Name]; len(candidates) > 0 {
			winner := selectWinner(candidates)
			sv.Chosen = &winner
			sv.Eligible = domain.MeetsThresholds(winner.Depth, winner.Coverage, spec.MinDepth, spec.MinCoverage)
		} else {
			verdict.MissingSegments = append(verdict.MissingSegments, spec.Name)
		}

		if sv.Eligible {
			verdict.Informative = true
		} else {
			overall = false
		}
		verdict.Segments = append(verdict.Segments, sv)
	}
	verdict.OverallEligible = overall

	// Subtype and strain-level audit metrics come from the first chosen
	// record in canonical segment order.
	for _, sv := range verdict.Segments {
		if sv.Chosen == nil {
			continue
		}
		verdict.Subtype = sv.Chosen.Label
		verdict.Genome = domain.GenomeMetrics{
			TaxonomyName:  sv.Chosen.TaxonomyName,
			NumberOfReads: sv.Chosen.NumberOfReads,
			Depth:         sv.Chosen.StrainDepth,
			Coverage:      sv.Chosen.StrainCov,
			NTIdentity:    sv.Chosen.NTIdentity,
		}
		break
	}

	e.logger.WithFields(logrus.Fields{
		"lims_id":           limsID,
		"virus":             profile.ID,
		"overall_eligible":  verdict.OverallEligible,
		"eligible_segments": verdict.EligibleSegmentCount(),
		"missing_segments":  len(verdict.MissingSegments),
	}).Debug("Evaluated sample")

	return verdict
}

// selectWinner picks the best candidate deterministically: highest coverage,
// then highest depth, then lexically smallest label. NaN metrics always
// lose, so a numerically unstable candidate can never displace a sound one.
func selectWinner(candidates []domain.AssignmentRecord) domain.AssignmentRecord {
	winner := candidates[0]
	for _, c := range candidates[1:] {
		if beats(c, winner) {
			winner = c
		}
	}
	return winner
}

func beats(a, b domain.AssignmentRecord) bool {
	if c := compareMetric(a.Coverage, b.Coverage); c != 0 {
		return c > 0
	}
	if c := compareMetric(a.Depth, b.Depth); c != 0 {
		return c > 0
	}
	return a.Label < b.Label
}

// compareMetric orders two metric values with NaN ranked below every number.
func compareMetric(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
