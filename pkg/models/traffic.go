package models

import (
	"encoding/json"
	"time"
)

// TrafficRecord is a single sampled, already-masked request or response
// payload tagged with the endpoint that produced it. The engine trusts the
// payload has been sanitized upstream; masking is not its concern.
type TrafficRecord struct {
	// Endpoint identifies the operation, e.g. "GET /eligibility".
	Endpoint string `json:"endpoint"`

	// Payload is the masked JSON body.
	Payload json.RawMessage `json:"payload"`

	// StatusCode is the HTTP status the payload was served with (0 for
	// request bodies).
	StatusCode int `json:"status_code,omitempty"`

	// Timestamp is when the record was captured.
	Timestamp time.Time `json:"timestamp"`
}

// ClientUsageRecord describes which fields of an endpoint a client actually
// reads. Supplied externally (gateway logs, service registry exports) and
// treated as read-only input.
type ClientUsageRecord struct {
	ClientID string `json:"client_id"`
	Endpoint string `json:"endpoint"`

	// FieldPaths lists the dot-addressed paths the client consumes. An empty
	// list means field-level data is unavailable and the client is assumed
	// to read the whole payload.
	FieldPaths []string `json:"field_paths,omitempty"`

	// CallVolume is the request count over the usage collection period.
	CallVolume int64 `json:"call_volume"`
}
