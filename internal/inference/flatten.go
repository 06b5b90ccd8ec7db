// Package inference aggregates masked traffic records into statistical
// observed schemas, one accumulator window per endpoint.
package inference

import (
	"sort"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// fieldFact is what one record contributes to one field path. A path counts
// at most once per record regardless of how many array elements matched it,
// which keeps the per-field type-distribution sum bounded by the endpoint's
// total record count.
type fieldFact struct {
	tags      map[models.TypeTag]struct{}
	sawNull   bool
	sample    string
	hasSample bool
}

// flatten walks a decoded payload and returns the field facts for this
// record, keyed by dot-addressed path. Array elements collapse to a single
// representative path with an "[]" segment, so "data": [{"id": 1}] yields
// paths "data", "data[]" and "data[].id".
func flatten(v models.Value) map[string]*fieldFact {
	facts := make(map[string]*fieldFact)
	walk(v, "", facts)
	return facts
}

func walk(v models.Value, prefix string, facts map[string]*fieldFact) {
	switch v.Kind {
	case models.TypeObject:
		for key, child := range v.Obj {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			record(path, child, facts)
			walk(child, path, facts)
		}
	case models.TypeArray:
		path := prefix + "[]"
		for _, elem := range v.Arr {
			record(path, elem, facts)
			walk(elem, path, facts)
		}
	}
}

func record(path string, v models.Value, facts map[string]*fieldFact) {
	fact, ok := facts[path]
	if !ok {
		fact = &fieldFact{tags: make(map[models.TypeTag]struct{})}
		facts[path] = fact
	}
	fact.tags[v.Kind] = struct{}{}
	if v.Kind == models.TypeNull {
		fact.sawNull = true
	}
	if !fact.hasSample && v.Kind != models.TypeNull {
		fact.sample = v.Sample()
		fact.hasSample = true
	}
}

// representativeTag picks the single type tag this record contributes to the
// distribution. Non-null tags win over null; ties break lexicographically so
// the choice is deterministic for a given record.
func (f *fieldFact) representativeTag() models.TypeTag {
	tags := make([]models.TypeTag, 0, len(f.tags))
	for tag := range f.tags {
		if tag == models.TypeNull && len(f.tags) > 1 {
			continue
		}
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags[0]
}
