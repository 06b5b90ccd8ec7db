package models

// Action is the recommended operational response to a classified issue.
type Action string

// Recommended actions, selected by a fixed decision table on
// (tier, blast radius).
const (
	ActionStopDeployment     Action = "STOP_DEPLOYMENT"
	ActionReviewBeforeDeploy Action = "REVIEW_BEFORE_DEPLOY"
	ActionMonitor            Action = "MONITOR"
)

// BaselineConfidence is the confidence assigned when no known consumers are
// reachable through usage data; unknown consumers may still exist.
const BaselineConfidence = 0.1

// ImpactAssessment combines a classified issue with the clients exposed to
// it. Final engine output, immutable, one per (issue, analysis run) pair.
type ImpactAssessment struct {
	Issue ClassifiedIssue `json:"issue"`

	// AffectedClients is the sorted set of client ids reachable through
	// usage data.
	AffectedClients []string `json:"affected_clients"`

	// BlastRadius is the count of distinct affected clients.
	BlastRadius int `json:"blast_radius"`

	// Confidence is the weighted mean criticality of the affected clients,
	// or BaselineConfidence when none are known. Always in [0,1].
	Confidence float64 `json:"confidence"`

	// RecommendedAction is the decision-table outcome.
	RecommendedAction Action `json:"recommended_action"`
}
