// Package drift structurally diffs observed schemas against declared ones,
// emitting typed findings.
package drift

import (
	"fmt"
	"sort"
	"strings"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// DefaultTypeConfidence is the dominant-type share a field must exceed
// before a TYPE_MISMATCH is reported; below it the finding degrades to
// AMBIGUOUS_TYPE.
const DefaultTypeConfidence = 0.8

// Config holds comparator tuning knobs.
type Config struct {
	// TypeConfidence is the dominant-type share threshold in (0,1].
	TypeConfidence float64
}

// DefaultConfig returns the comparator defaults.
func DefaultConfig() Config {
	return Config{TypeConfidence: DefaultTypeConfidence}
}

// Comparator diffs observed against declared schemas. Pure and side-effect
// free: safe to run in parallel across independent endpoints.
type Comparator struct {
	cfg Config
}

// New creates a Comparator.
func New(cfg Config) *Comparator {
	if cfg.TypeConfidence <= 0 || cfg.TypeConfidence > 1 {
		cfg.TypeConfidence = DefaultTypeConfidence
	}
	return &Comparator{cfg: cfg}
}

// CompareAll diffs every endpoint of the contract against its observed
// snapshot, then reports observed endpoints the contract does not declare.
// Output order is deterministic: contract declaration order first, then
// undeclared endpoints lexicographically; within an endpoint, findings sort
// by field path.
func (c *Comparator) CompareAll(contract *models.DeclaredContract, snapshots []*models.ObservedSchema) []models.ContractIssue {
	byEndpoint := make(map[string]*models.ObservedSchema, len(snapshots))
	for _, snap := range snapshots {
		byEndpoint[snap.Endpoint] = snap
	}

	var issues []models.ContractIssue
	declared := make(map[string]bool, len(contract.EndpointOrder))
	for _, endpoint := range contract.EndpointOrder {
		declared[endpoint] = true
		issues = append(issues, c.Compare(byEndpoint[endpoint], contract.Endpoints[endpoint])...)
	}

	var extra []string
	for _, snap := range snapshots {
		if !declared[snap.Endpoint] && snap.TotalCount > 0 {
			extra = append(extra, snap.Endpoint)
		}
	}
	sort.Strings(extra)
	for _, endpoint := range extra {
		issues = append(issues, c.undeclaredEndpoint(byEndpoint[endpoint])...)
	}
	return issues
}

// Compare diffs one endpoint. The observed snapshot may be nil or empty;
// without evidence no presence-based finding is emitted, only parser
// coverage gaps.
func (c *Comparator) Compare(observed *models.ObservedSchema, declared *models.DeclaredSchema) []models.ContractIssue {
	var issues []models.ContractIssue
	if declared == nil {
		return issues
	}

	skip := unparseablePrefixes(declared)
	rootUnparseable := false
	for _, marker := range declared.Unparseable {
		scope := "field"
		if marker.FieldPath == "" {
			rootUnparseable = true
			scope = "endpoint"
		}
		issues = append(issues, models.ContractIssue{
			Endpoint:  declared.Endpoint,
			FieldPath: marker.FieldPath,
			Kind:      models.IssueUnparseableConstruct,
			Detail:    fmt.Sprintf("declared schema uses %s; %s excluded from comparison", marker.Construct, scope),
		})
	}

	// A root-level marker means the whole declared shape is unknown; only
	// the coverage gap is reported, never per-field findings.
	if rootUnparseable {
		sortIssues(issues)
		return issues
	}

	if observed == nil || observed.TotalCount == 0 {
		sortIssues(issues)
		return issues
	}

	paths := unionPaths(observed, declared)
	for _, path := range paths {
		if excluded(path, skip) {
			continue
		}
		field, isDeclared := declared.Fields[path]
		presence := observed.PresenceRate(path)

		if !isDeclared {
			if presence > 0 {
				issues = append(issues, c.undocumented(declared.Endpoint, path, observed))
			}
			continue
		}

		if presence == 0 {
			if field.Required {
				issues = append(issues, models.ContractIssue{
					Endpoint:     declared.Endpoint,
					FieldPath:    path,
					Kind:         models.IssueMissingRequiredField,
					Magnitude:    1.0,
					PresenceRate: 0,
					DeclaredType: field.Type,
					Detail:       fmt.Sprintf("required field %q never observed in %d records", path, observed.TotalCount),
				})
			} else {
				issues = append(issues, models.ContractIssue{
					Endpoint:     declared.Endpoint,
					FieldPath:    path,
					Kind:         models.IssueStaleDeclaration,
					DeclaredType: field.Type,
					Detail:       fmt.Sprintf("declared field %q never observed in %d records", path, observed.TotalCount),
				})
			}
			continue
		}

		if field.Required && presence < 1.0 {
			issues = append(issues, models.ContractIssue{
				Endpoint:     declared.Endpoint,
				FieldPath:    path,
				Kind:         models.IssueMissingRequiredField,
				Magnitude:    1.0 - presence,
				PresenceRate: presence,
				DeclaredType: field.Type,
				Detail:       fmt.Sprintf("required field %q absent from %.1f%% of records", path, (1.0-presence)*100),
			})
		}

		nullRate := observed.NullableRate(path)
		if !field.Nullable && nullRate > 0 {
			issues = append(issues, models.ContractIssue{
				Endpoint:     declared.Endpoint,
				FieldPath:    path,
				Kind:         models.IssueUnexpectedNull,
				Magnitude:    nullRate,
				NullableRate: nullRate,
				DeclaredType: field.Type,
				Detail:       fmt.Sprintf("non-nullable field %q was null in %.1f%% of its occurrences", path, nullRate*100),
			})
		}

		dominant, share := observed.Fields[path].DominantType()
		switch {
		case share <= c.cfg.TypeConfidence && len(observed.Fields[path].TypeCounts) > 1:
			issues = append(issues, models.ContractIssue{
				Endpoint:      declared.Endpoint,
				FieldPath:     path,
				Kind:          models.IssueAmbiguousType,
				DominantShare: share,
				DeclaredType:  field.Type,
				ObservedType:  dominant,
				Detail:        fmt.Sprintf("field %q has no dominant type (best %s at %.0f%%)", path, dominant, share*100),
			})
		case dominant != field.Type && dominant != models.TypeNull:
			issues = append(issues, models.ContractIssue{
				Endpoint:      declared.Endpoint,
				FieldPath:     path,
				Kind:          models.IssueTypeMismatch,
				DominantShare: share,
				DeclaredType:  field.Type,
				ObservedType:  dominant,
				Detail:        fmt.Sprintf("field %q declared %s but observed %s (%.0f%% of records)", path, field.Type, dominant, share*100),
			})
		}
	}

	sortIssues(issues)
	return issues
}

// undeclaredEndpoint reports every observed field of an endpoint the
// contract does not declare at all.
func (c *Comparator) undeclaredEndpoint(observed *models.ObservedSchema) []models.ContractIssue {
	var issues []models.ContractIssue
	for _, path := range observed.FieldPaths() {
		if observed.PresenceRate(path) > 0 {
			issues = append(issues, c.undocumented(observed.Endpoint, path, observed))
		}
	}
	return issues
}

func (c *Comparator) undocumented(endpoint, path string, observed *models.ObservedSchema) models.ContractIssue {
	dominant, _ := observed.Fields[path].DominantType()
	return models.ContractIssue{
		Endpoint:     endpoint,
		FieldPath:    path,
		Kind:         models.IssueUndocumentedField,
		PresenceRate: observed.PresenceRate(path),
		ObservedType: dominant,
		Detail:       fmt.Sprintf("field %q observed in traffic but not declared", path),
	}
}

// unionPaths merges observed and declared paths, lexicographically sorted.
func unionPaths(observed *models.ObservedSchema, declared *models.DeclaredSchema) []string {
	seen := make(map[string]struct{}, len(observed.Fields)+len(declared.Fields))
	for p := range observed.Fields {
		seen[p] = struct{}{}
	}
	for p := range declared.Fields {
		seen[p] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// unparseablePrefixes collects the marker paths whose subtrees are excluded
// from comparison.
func unparseablePrefixes(declared *models.DeclaredSchema) []string {
	prefixes := make([]string, 0, len(declared.Unparseable))
	for _, marker := range declared.Unparseable {
		if marker.FieldPath != "" {
			prefixes = append(prefixes, marker.FieldPath)
		}
	}
	return prefixes
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+".") || strings.HasPrefix(path, prefix+"[]") {
			return true
		}
	}
	return false
}

// sortIssues orders findings by field path, then kind, for stable output
// within one endpoint.
func sortIssues(issues []models.ContractIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].FieldPath != issues[j].FieldPath {
			return issues[i].FieldPath < issues[j].FieldPath
		}
		return issues[i].Kind < issues[j].Kind
	})
}
