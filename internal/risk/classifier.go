// Package risk assigns deterministic severity tiers to drift findings.
package risk

import (
	"fmt"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// Magnitude thresholds for missing-required-field severity.
const (
	CriticalAbsenceRate = 0.30
	HighAbsenceRate     = 0.05
)

// UnclassifiedIssueError reports a finding no rule matched. Fatal: silently
// defaulting would mask breaking changes of unknown severity, so every
// issue kind the comparator can emit must have an explicit rule.
type UnclassifiedIssueError struct {
	Issue models.ContractIssue
}

func (e *UnclassifiedIssueError) Error() string {
	return fmt.Sprintf("no classification rule for %s at %s %s", e.Issue.Kind, e.Issue.Endpoint, e.Issue.FieldPath)
}

// rule is one row of the classification table.
type rule struct {
	id      string
	tier    models.RiskTier
	matches func(models.ContractIssue) bool
}

// rules is evaluated top-down; the first match wins.
var rules = []rule{
	{
		id:   "missing-required-critical",
		tier: models.TierCritical,
		matches: func(i models.ContractIssue) bool {
			return i.Kind == models.IssueMissingRequiredField && i.Magnitude >= CriticalAbsenceRate
		},
	},
	{
		id:   "missing-required-high",
		tier: models.TierHigh,
		matches: func(i models.ContractIssue) bool {
			return i.Kind == models.IssueMissingRequiredField && i.Magnitude >= HighAbsenceRate
		},
	},
	{
		id:   "missing-required-low-rate",
		tier: models.TierMedium,
		matches: func(i models.ContractIssue) bool {
			return i.Kind == models.IssueMissingRequiredField
		},
	},
	{
		id:   "type-mismatch",
		tier: models.TierHigh,
		matches: func(i models.ContractIssue) bool {
			return i.Kind == models.IssueTypeMismatch
		},
	},
	{
		id:   "unexpected-null",
		tier: models.TierMedium,
		matches: func(i models.ContractIssue) bool {
			return i.Kind == models.IssueUnexpectedNull
		},
	},
	{
		id:   "undocumented-field",
		tier: models.TierLow,
		matches: func(i models.ContractIssue) bool {
			return i.Kind == models.IssueUndocumentedField
		},
	},
	{
		id:   "informational",
		tier: models.TierLow,
		matches: func(i models.ContractIssue) bool {
			return i.Kind == models.IssueStaleDeclaration ||
				i.Kind == models.IssueAmbiguousType ||
				i.Kind == models.IssueUnparseableConstruct
		},
	},
}

// Classify assigns a severity tier to one finding. Findings no rule matches
// fail with UnclassifiedIssueError.
func Classify(issue models.ContractIssue) (models.ClassifiedIssue, error) {
	for _, r := range rules {
		if r.matches(issue) {
			return models.ClassifiedIssue{
				ContractIssue: issue,
				Tier:          r.tier,
				RuleID:        r.id,
			}, nil
		}
	}
	return models.ClassifiedIssue{}, &UnclassifiedIssueError{Issue: issue}
}

// ClassifyAll classifies a finding sequence, preserving order. The first
// unclassifiable finding aborts the run.
func ClassifyAll(issues []models.ContractIssue) ([]models.ClassifiedIssue, error) {
	classified := make([]models.ClassifiedIssue, 0, len(issues))
	for _, issue := range issues {
		ci, err := Classify(issue)
		if err != nil {
			return nil, err
		}
		classified = append(classified, ci)
	}
	return classified, nil
}
