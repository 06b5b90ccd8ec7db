// Package impact combines classified findings with the usage index to
// produce impact assessments.
package impact

import (
	"github.com/driftwatch/driftwatch/internal/usage"
	"github.com/driftwatch/driftwatch/pkg/models"
)

// UnknownClientWeight is the criticality assumed for clients absent from
// the supplied weight mapping.
const UnknownClientWeight = 0.1

// Assess computes the blast radius, confidence and recommended action for
// one classified finding. Deterministic: the same (issue, usage,
// criticality) triple always yields the same assessment.
func Assess(issue models.ClassifiedIssue, idx *usage.Index, criticality map[string]float64) models.ImpactAssessment {
	affected := idx.ClientsTouching(issue.Endpoint, issue.FieldPath)

	confidence := models.BaselineConfidence
	if len(affected) > 0 {
		var sum float64
		for _, clientID := range affected {
			weight, ok := criticality[clientID]
			if !ok {
				weight = UnknownClientWeight
			}
			sum += weight
		}
		confidence = sum / float64(len(affected))
	}

	return models.ImpactAssessment{
		Issue:             issue,
		AffectedClients:   affected,
		BlastRadius:       len(affected),
		Confidence:        confidence,
		RecommendedAction: recommend(issue.Tier, len(affected)),
	}
}

// AssessAll assesses a finding sequence, preserving order.
func AssessAll(issues []models.ClassifiedIssue, idx *usage.Index, criticality map[string]float64) []models.ImpactAssessment {
	assessments := make([]models.ImpactAssessment, 0, len(issues))
	for _, issue := range issues {
		assessments = append(assessments, Assess(issue, idx, criticality))
	}
	return assessments
}

// recommend is the fixed decision table on (tier, blast radius).
func recommend(tier models.RiskTier, blastRadius int) models.Action {
	switch tier {
	case models.TierCritical:
		if blastRadius > 0 {
			return models.ActionStopDeployment
		}
		return models.ActionReviewBeforeDeploy
	case models.TierHigh:
		return models.ActionReviewBeforeDeploy
	default:
		return models.ActionMonitor
	}
}
