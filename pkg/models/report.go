package models

import "time"

// ReportSummary contains roll-up counters for one analysis run.
type ReportSummary struct {
	EndpointsAnalyzed int `json:"endpoints_analyzed"`
	TotalIssues       int `json:"total_issues"`
	CriticalIssues    int `json:"critical_issues"`
	HighIssues        int `json:"high_issues"`
}

// AnalysisReport is the complete output of one analysis run: the window
// snapshots that were analyzed, the classified findings, and their impact
// assessments.
type AnalysisReport struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	// ContractVersion is the declared contract's own version string, passed
	// through for traceability.
	ContractVersion string `json:"contract_version,omitempty"`

	Schemas     []*ObservedSchema  `json:"schemas"`
	Issues      []ClassifiedIssue  `json:"issues"`
	Assessments []ImpactAssessment `json:"assessments"`

	Summary ReportSummary `json:"summary"`
}

// ReportInfo is the listing view of a stored report: identity and summary
// without the full body.
type ReportInfo struct {
	ID              string        `json:"id"`
	GeneratedAt     time.Time     `json:"generated_at"`
	ContractVersion string        `json:"contract_version,omitempty"`
	Summary         ReportSummary `json:"summary"`
}

// Info returns the report's listing view.
func (r *AnalysisReport) Info() ReportInfo {
	return ReportInfo{
		ID:              r.ID,
		GeneratedAt:     r.GeneratedAt,
		ContractVersion: r.ContractVersion,
		Summary:         r.Summary,
	}
}

// CalculateSummary recomputes the roll-up counters from the report body.
func (r *AnalysisReport) CalculateSummary() {
	r.Summary = ReportSummary{
		EndpointsAnalyzed: len(r.Schemas),
		TotalIssues:       len(r.Issues),
	}
	for _, issue := range r.Issues {
		switch issue.Tier {
		case TierCritical:
			r.Summary.CriticalIssues++
		case TierHigh:
			r.Summary.HighIssues++
		}
	}
}

// HasBlockingIssues reports whether any assessment recommends stopping the
// deployment.
func (r *AnalysisReport) HasBlockingIssues() bool {
	for _, a := range r.Assessments {
		if a.RecommendedAction == ActionStopDeployment {
			return true
		}
	}
	return false
}
