// Package usage builds the endpoint→client reachability index from batch
// usage records.
package usage

import (
	"sort"
	"strings"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// clientUse is what one client reads from one endpoint.
type clientUse struct {
	// paths the client reads; empty means the whole payload.
	paths        map[string]struct{}
	wholePayload bool
	callVolume   int64
}

// Index answers which clients are exposed to a field of an endpoint. Built
// once per analysis run from a read-only snapshot of usage data; usage data
// is batch-refreshed, so no incremental update is supported.
type Index struct {
	// endpoints maps endpoint id -> client id -> usage.
	endpoints map[string]map[string]*clientUse
}

// Build constructs the index from a batch of usage records. Records for the
// same (client, endpoint) pair merge: field path sets union, call volumes
// add.
func Build(records []models.ClientUsageRecord) *Index {
	idx := &Index{endpoints: make(map[string]map[string]*clientUse)}
	for _, rec := range records {
		if rec.ClientID == "" || rec.Endpoint == "" {
			continue
		}
		clients := idx.endpoints[rec.Endpoint]
		if clients == nil {
			clients = make(map[string]*clientUse)
			idx.endpoints[rec.Endpoint] = clients
		}
		use := clients[rec.ClientID]
		if use == nil {
			use = &clientUse{paths: make(map[string]struct{})}
			clients[rec.ClientID] = use
		}
		use.callVolume += rec.CallVolume
		if len(rec.FieldPaths) == 0 {
			use.wholePayload = true
			continue
		}
		for _, p := range rec.FieldPaths {
			use.paths[p] = struct{}{}
		}
	}
	return idx
}

// ClientsTouching returns the sorted set of clients exposed to a field path
// of an endpoint. A client reading an ancestor path reads its descendants,
// and endpoint-level consumers (no field data) touch every field.
func (idx *Index) ClientsTouching(endpoint, fieldPath string) []string {
	clients := idx.endpoints[endpoint]
	if len(clients) == 0 {
		return nil
	}
	var touching []string
	for clientID, use := range clients {
		if use.touches(fieldPath) {
			touching = append(touching, clientID)
		}
	}
	sort.Strings(touching)
	return touching
}

// CallVolume returns the total call volume a client drives to an endpoint.
func (idx *Index) CallVolume(endpoint, clientID string) int64 {
	if use, ok := idx.endpoints[endpoint][clientID]; ok {
		return use.callVolume
	}
	return 0
}

// Endpoints lists the indexed endpoints, sorted.
func (idx *Index) Endpoints() []string {
	endpoints := make([]string, 0, len(idx.endpoints))
	for ep := range idx.endpoints {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	return endpoints
}

func (u *clientUse) touches(fieldPath string) bool {
	if u.wholePayload {
		return true
	}
	if fieldPath == "" {
		// Endpoint-level finding: any consumer of the endpoint is exposed.
		return len(u.paths) > 0
	}
	for p := range u.paths {
		if p == fieldPath || isAncestor(p, fieldPath) {
			return true
		}
	}
	return false
}

// isAncestor reports whether reading path p implies reading child, e.g.
// "data" covers "data.id" and "data[].id".
func isAncestor(p, child string) bool {
	return strings.HasPrefix(child, p+".") || strings.HasPrefix(child, p+"[]")
}
