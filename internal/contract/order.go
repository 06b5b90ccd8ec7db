package contract

import "gopkg.in/yaml.v3"

// pathOrder extracts the declaration order of the top-level `paths` keys
// from the raw document. yaml.Node preserves mapping key order, and JSON is
// a YAML subset, so the same extraction covers both formats. Returns nil
// when the document shape is unexpected; callers fall back to sorted order.
func pathOrder(data []byte) []string {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil
	}
	if len(root.Content) == 0 {
		return nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil
	}

	// Mapping content alternates key, value.
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "paths" {
			continue
		}
		paths := doc.Content[i+1]
		if paths.Kind != yaml.MappingNode {
			return nil
		}
		order := make([]string, 0, len(paths.Content)/2)
		for j := 0; j+1 < len(paths.Content); j += 2 {
			order = append(order, paths.Content[j].Value)
		}
		return order
	}
	return nil
}
