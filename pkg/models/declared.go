package models

import "sort"

// DeclaredField is the normalized declaration of one field path.
type DeclaredField struct {
	Type     TypeTag `json:"type"`
	Required bool    `json:"required"`
	Nullable bool    `json:"nullable"`
}

// UnsupportedConstruct marks a schema fragment the parser could not
// normalize. Marked fields are excluded from comparison but surfaced as a
// coverage gap so they never become silent false negatives.
type UnsupportedConstruct struct {
	// FieldPath is the path of the unparseable fragment; empty when the
	// whole endpoint schema was affected.
	FieldPath string `json:"field_path,omitempty"`

	// Construct names the offending OpenAPI keyword, e.g. "oneOf".
	Construct string `json:"construct"`
}

// DeclaredSchema is the declared shape of one endpoint. Immutable after
// parsing.
type DeclaredSchema struct {
	// Endpoint identifies the operation, e.g. "GET /eligibility".
	Endpoint string `json:"endpoint"`

	// Fields maps dot-addressed field paths to their declarations.
	Fields map[string]DeclaredField `json:"fields"`

	// Unparseable lists constructs excluded from normalization.
	Unparseable []UnsupportedConstruct `json:"unparseable,omitempty"`
}

// FieldPaths returns all declared paths in lexicographic order.
func (s *DeclaredSchema) FieldPaths() []string {
	paths := make([]string, 0, len(s.Fields))
	for p := range s.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// DeclaredContract is a parsed contract document: one DeclaredSchema per
// endpoint, plus opaque version metadata passed through for traceability.
type DeclaredContract struct {
	// Version is the contract's own version string (info.version); opaque
	// to the engine.
	Version string `json:"version"`

	// Endpoints maps endpoint ids to their declared schemas.
	Endpoints map[string]*DeclaredSchema `json:"endpoints"`

	// EndpointOrder preserves the declaration order of paths in the source
	// document, used for deterministic finding output.
	EndpointOrder []string `json:"endpoint_order"`
}

// Schema returns the declared schema for an endpoint, or nil.
func (c *DeclaredContract) Schema(endpoint string) *DeclaredSchema {
	if c == nil {
		return nil
	}
	return c.Endpoints[endpoint]
}
