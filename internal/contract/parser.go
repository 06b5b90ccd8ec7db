// Package contract normalizes declared OpenAPI documents into the engine's
// internal schema representation.
package contract

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// Format identifies the declared serialization of a contract document.
type Format string

// Supported contract document formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// methodOrder fixes the per-path operation ordering for deterministic
// endpoint enumeration.
var methodOrder = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// successStatuses are the response codes whose schema defines the
// endpoint's declared shape, checked in order.
var successStatuses = []string{"200", "201"}

// Parse normalizes an OpenAPI document into a DeclaredContract. Syntax
// errors fail with MalformedSpecError. Constructs that cannot be normalized
// (oneOf, anyOf, not, recursive schemas) are recorded as unparseable
// markers on the affected endpoint rather than dropped.
func Parse(data []byte, format Format) (*models.DeclaredContract, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, fmt.Errorf("unknown contract format %q", format)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, &MalformedSpecError{Format: format, Err: err}
	}
	if doc.Paths == nil {
		return nil, &MalformedSpecError{Format: format, Err: fmt.Errorf("document has no paths")}
	}

	contract := &models.DeclaredContract{
		Endpoints: make(map[string]*models.DeclaredSchema),
	}
	if doc.Info != nil {
		contract.Version = doc.Info.Version
	}

	pathItems := doc.Paths.Map()
	order := pathOrder(data)
	if order == nil {
		order = make([]string, 0, len(pathItems))
		for p := range pathItems {
			order = append(order, p)
		}
		sort.Strings(order)
	}

	for _, path := range order {
		item := pathItems[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, method := range methodOrder {
			op := ops[method]
			if op == nil {
				continue
			}
			schemaRef := responseSchema(op)
			if schemaRef == nil {
				continue
			}

			endpoint := method + " " + path
			declared := &models.DeclaredSchema{
				Endpoint: endpoint,
				Fields:   make(map[string]models.DeclaredField),
			}
			w := &walker{endpoint: endpoint, schema: declared, visiting: make(map[*openapi3.Schema]bool)}
			w.walkRoot(schemaRef.Value)

			contract.Endpoints[endpoint] = declared
			contract.EndpointOrder = append(contract.EndpointOrder, endpoint)
		}
	}

	return contract, nil
}

// responseSchema picks the JSON schema of the first success response.
func responseSchema(op *openapi3.Operation) *openapi3.SchemaRef {
	if op.Responses == nil {
		return nil
	}
	for _, status := range successStatuses {
		ref := op.Responses.Value(status)
		if ref == nil || ref.Value == nil {
			continue
		}
		mt := ref.Value.Content.Get("application/json")
		if mt != nil && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema
		}
	}
	return nil
}

// walker flattens one endpoint's response schema into dot-addressed field
// declarations.
type walker struct {
	endpoint string
	schema   *models.DeclaredSchema

	// visiting guards against $ref cycles; it tracks the schemas on the
	// current descent only.
	visiting map[*openapi3.Schema]bool
}

func (w *walker) walkRoot(s *openapi3.Schema) {
	if s == nil {
		return
	}
	resolved, construct := w.resolve(s)
	if construct != "" {
		w.markUnparseable("", construct)
		return
	}
	switch tagOf(resolved) {
	case models.TypeObject:
		w.walkProperties(resolved, "", true)
	case models.TypeArray:
		w.walkItems(resolved, "")
	}
}

// addField records one field declaration and recurses into its children.
// required carries the effective requirement: a child is required only when
// its whole ancestor chain is required.
func (w *walker) addField(path string, ref *openapi3.SchemaRef, required bool) {
	if ref == nil || ref.Value == nil {
		w.markUnparseable(path, "missing schema")
		return
	}
	s := ref.Value
	if w.visiting[s] {
		w.markUnparseable(path, "recursive $ref")
		return
	}

	resolved, construct := w.resolve(s)
	if construct != "" {
		w.markUnparseable(path, construct)
		return
	}

	tag := tagOf(resolved)
	if tag == "" {
		w.markUnparseable(path, "untyped schema")
		return
	}

	w.schema.Fields[path] = models.DeclaredField{
		Type:     tag,
		Required: required,
		Nullable: isNullable(resolved),
	}

	w.visiting[s] = true
	switch tag {
	case models.TypeObject:
		w.walkProperties(resolved, path, required)
	case models.TypeArray:
		w.walkItems(resolved, path)
	}
	delete(w.visiting, s)
}

func (w *walker) walkProperties(s *openapi3.Schema, prefix string, required bool) {
	requiredSet := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		requiredSet[name] = true
	}
	for name, propRef := range s.Properties {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		w.addField(path, propRef, required && requiredSet[name])
	}
}

// walkItems declares the collapsed "[]" element path. Elements are never
// required: an empty array is a legitimate payload that produces no element
// observations.
func (w *walker) walkItems(s *openapi3.Schema, prefix string) {
	if s.Items == nil || s.Items.Value == nil {
		return
	}
	w.addField(prefix+"[]", s.Items, false)
}

// resolve normalizes combinators. allOf merges into a synthetic object
// schema; polymorphic combinators are unsupported and reported by name.
func (w *walker) resolve(s *openapi3.Schema) (*openapi3.Schema, string) {
	switch {
	case len(s.OneOf) > 0:
		return nil, "oneOf"
	case len(s.AnyOf) > 0:
		return nil, "anyOf"
	case s.Not != nil:
		return nil, "not"
	case len(s.AllOf) > 0:
		merged := &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: make(openapi3.Schemas),
			Nullable:   s.Nullable,
		}
		for _, subRef := range s.AllOf {
			if subRef == nil || subRef.Value == nil {
				return nil, "allOf"
			}
			sub := subRef.Value
			if len(sub.OneOf) > 0 || len(sub.AnyOf) > 0 || sub.Not != nil {
				return nil, "allOf"
			}
			for name, prop := range sub.Properties {
				merged.Properties[name] = prop
			}
			merged.Required = append(merged.Required, sub.Required...)
		}
		return merged, ""
	default:
		return s, ""
	}
}

func (w *walker) markUnparseable(path, construct string) {
	w.schema.Unparseable = append(w.schema.Unparseable, models.UnsupportedConstruct{
		FieldPath: path,
		Construct: construct,
	})
	sort.Slice(w.schema.Unparseable, func(i, j int) bool {
		return w.schema.Unparseable[i].FieldPath < w.schema.Unparseable[j].FieldPath
	})
}

// tagOf maps an OpenAPI type to the engine's type tags. integer collapses
// into number: the observed side cannot distinguish them in JSON.
func tagOf(s *openapi3.Schema) models.TypeTag {
	for _, t := range typeSlice(s) {
		switch t {
		case "string":
			return models.TypeString
		case "integer", "number":
			return models.TypeNumber
		case "boolean":
			return models.TypeBool
		case "object":
			return models.TypeObject
		case "array":
			return models.TypeArray
		}
	}
	// Untyped schemas with properties or items still behave structurally.
	if len(s.Properties) > 0 {
		return models.TypeObject
	}
	if s.Items != nil {
		return models.TypeArray
	}
	return ""
}

// isNullable honors both the 3.0 nullable flag and a 3.1 type union with
// null.
func isNullable(s *openapi3.Schema) bool {
	if s.Nullable {
		return true
	}
	for _, t := range typeSlice(s) {
		if t == "null" {
			return true
		}
	}
	return false
}

func typeSlice(s *openapi3.Schema) []string {
	if s.Type == nil {
		return nil
	}
	return s.Type.Slice()
}
