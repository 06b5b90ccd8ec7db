package models

// IssueKind classifies a structural discrepancy between observed and
// declared schema.
type IssueKind string

// Issue kinds emitted by the drift comparator. Every kind must have an
// explicit classification rule; unknown kinds fail classification.
const (
	IssueUndocumentedField     IssueKind = "UNDOCUMENTED_FIELD"
	IssueMissingRequiredField  IssueKind = "MISSING_REQUIRED_FIELD"
	IssueUnexpectedNull        IssueKind = "UNEXPECTED_NULL"
	IssueTypeMismatch          IssueKind = "TYPE_MISMATCH"
	IssueAmbiguousType         IssueKind = "AMBIGUOUS_TYPE"
	IssueStaleDeclaration      IssueKind = "STALE_DECLARATION"
	IssueUnparseableConstruct  IssueKind = "UNPARSEABLE_CONSTRUCT"
)

// RiskTier is the severity assigned to a classified issue.
type RiskTier string

// Risk tiers, most severe first.
const (
	TierCritical RiskTier = "CRITICAL"
	TierHigh     RiskTier = "HIGH"
	TierMedium   RiskTier = "MEDIUM"
	TierLow      RiskTier = "LOW"
)

// tierRank orders tiers for comparisons; higher is more severe.
var tierRank = map[RiskTier]int{
	TierLow:      1,
	TierMedium:   2,
	TierHigh:     3,
	TierCritical: 4,
}

// Rank returns the tier's severity rank; higher means more severe. Unknown
// tiers rank zero.
func (t RiskTier) Rank() int {
	return tierRank[t]
}

// ContractIssue is a single drift finding. Immutable once produced.
type ContractIssue struct {
	Endpoint  string    `json:"endpoint"`
	FieldPath string    `json:"field_path,omitempty"`
	Kind      IssueKind `json:"kind"`

	// Magnitude quantifies the drift for kinds where it is meaningful; for
	// MISSING_REQUIRED_FIELD it is the observed absence rate.
	Magnitude float64 `json:"magnitude,omitempty"`

	// Raw severity inputs retained for classification and reporting.
	PresenceRate  float64 `json:"presence_rate,omitempty"`
	NullableRate  float64 `json:"nullable_rate,omitempty"`
	DominantShare float64 `json:"dominant_share,omitempty"`
	DeclaredType  TypeTag `json:"declared_type,omitempty"`
	ObservedType  TypeTag `json:"observed_type,omitempty"`

	// Detail is a short structured description of the finding.
	Detail string `json:"detail"`
}

// ClassifiedIssue is a ContractIssue with its assigned severity tier and the
// id of the rule that fired.
type ClassifiedIssue struct {
	ContractIssue

	Tier   RiskTier `json:"tier"`
	RuleID string   `json:"rule_id"`
}
