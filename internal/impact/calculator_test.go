package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch/driftwatch/internal/usage"
	"github.com/driftwatch/driftwatch/pkg/models"
)

func classified(kind models.IssueKind, tier models.RiskTier, endpoint, path string) models.ClassifiedIssue {
	return models.ClassifiedIssue{
		ContractIssue: models.ContractIssue{Kind: kind, Endpoint: endpoint, FieldPath: path},
		Tier:          tier,
	}
}

func TestAssess_CriticalWithConsumers(t *testing.T) {
	idx := usage.Build([]models.ClientUsageRecord{
		{ClientID: "billing-service", Endpoint: "GET /eligibility", FieldPaths: []string{"status"}, CallVolume: 1000},
		{ClientID: "frontend-app", Endpoint: "GET /eligibility", FieldPaths: []string{"status", "score"}, CallVolume: 400},
		{ClientID: "reporting", Endpoint: "GET /eligibility", FieldPaths: []string{"score"}, CallVolume: 20},
	})
	criticality := map[string]float64{
		"billing-service": 0.9,
		"frontend-app":    0.6,
	}

	issue := classified(models.IssueMissingRequiredField, models.TierCritical, "GET /eligibility", "status")
	a := Assess(issue, idx, criticality)

	assert.Equal(t, []string{"billing-service", "frontend-app"}, a.AffectedClients)
	assert.Equal(t, 2, a.BlastRadius)
	// Mean of 0.9 and 0.6.
	assert.InDelta(t, 0.75, a.Confidence, 1e-9)
	assert.Equal(t, models.ActionStopDeployment, a.RecommendedAction)
}

func TestAssess_NoKnownConsumers(t *testing.T) {
	idx := usage.Build(nil)

	issue := classified(models.IssueMissingRequiredField, models.TierCritical, "GET /eligibility", "status")
	a := Assess(issue, idx, nil)

	assert.Empty(t, a.AffectedClients)
	assert.Equal(t, 0, a.BlastRadius)
	assert.Equal(t, models.BaselineConfidence, a.Confidence)
	// Critical with nobody known to be affected still needs a human look.
	assert.Equal(t, models.ActionReviewBeforeDeploy, a.RecommendedAction)
}

func TestAssess_UnknownClientsGetDefaultWeight(t *testing.T) {
	idx := usage.Build([]models.ClientUsageRecord{
		{ClientID: "mystery", Endpoint: "GET /x", FieldPaths: []string{"v"}, CallVolume: 1},
	})

	issue := classified(models.IssueTypeMismatch, models.TierHigh, "GET /x", "v")
	a := Assess(issue, idx, map[string]float64{"someone-else": 0.9})

	assert.Equal(t, 1, a.BlastRadius)
	assert.InDelta(t, UnknownClientWeight, a.Confidence, 1e-9)
}

func TestRecommend_DecisionTable(t *testing.T) {
	tests := []struct {
		tier        models.RiskTier
		blastRadius int
		want        models.Action
	}{
		{models.TierCritical, 3, models.ActionStopDeployment},
		{models.TierCritical, 0, models.ActionReviewBeforeDeploy},
		{models.TierHigh, 5, models.ActionReviewBeforeDeploy},
		{models.TierHigh, 0, models.ActionReviewBeforeDeploy},
		{models.TierMedium, 10, models.ActionMonitor},
		{models.TierLow, 10, models.ActionMonitor},
	}

	for _, tt := range tests {
		got := recommend(tt.tier, tt.blastRadius)
		assert.Equal(t, tt.want, got, "tier %s radius %d", tt.tier, tt.blastRadius)
	}
}

func TestAssessAll_Deterministic(t *testing.T) {
	idx := usage.Build([]models.ClientUsageRecord{
		{ClientID: "a", Endpoint: "GET /x", FieldPaths: []string{"v"}},
		{ClientID: "b", Endpoint: "GET /x", FieldPaths: []string{"v"}},
	})
	issues := []models.ClassifiedIssue{
		classified(models.IssueTypeMismatch, models.TierHigh, "GET /x", "v"),
		classified(models.IssueUndocumentedField, models.TierLow, "GET /x", "w"),
	}

	first := AssessAll(issues, idx, nil)
	second := AssessAll(issues, idx, nil)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, "v", first[0].Issue.FieldPath)
	assert.Equal(t, []string{"a", "b"}, first[0].AffectedClients)
}
