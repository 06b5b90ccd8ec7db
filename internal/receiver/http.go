// Package receiver implements the HTTP ingest endpoint for sampled traffic
// records.
package receiver

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/inference"
	"github.com/driftwatch/driftwatch/pkg/models"
)

// decompressGzip decompresses gzip-encoded data
func decompressGzip(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// ingestResponse reports how a batch was handled.
type ingestResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// HTTPReceiver accepts sampled traffic records over HTTP and feeds them to
// the inferencer.
type HTTPReceiver struct {
	inferencer *inference.Inferencer
	logger     *zap.Logger
	server     *http.Server
}

// NewHTTPReceiver creates a new HTTP receiver listening on addr.
func NewHTTPReceiver(addr string, inf *inference.Inferencer, logger *zap.Logger) *HTTPReceiver {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &HTTPReceiver{
		inferencer: inf,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/traffic", r.handleTraffic)
	mux.HandleFunc("/health", r.handleHealth)

	r.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return r
}

// Start starts the HTTP server.
func (r *HTTPReceiver) Start() error {
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *HTTPReceiver) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

// handleTraffic accepts a single traffic record or a batch of them. A
// malformed record is counted and skipped; it never fails the rest of the
// batch.
func (r *HTTPReceiver) handleTraffic(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reader := req.Body
	if req.Header.Get("Content-Encoding") == "gzip" {
		var err error
		reader, err = decompressGzip(req.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to decompress: %v", err), http.StatusBadRequest)
			return
		}
		defer reader.Close()
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	defer req.Body.Close()

	records, err := decodeRecords(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse request: %v", err), http.StatusBadRequest)
		return
	}

	var resp ingestResponse
	for _, rec := range records {
		if rec.Endpoint == "" {
			resp.Rejected++
			continue
		}
		if err := r.inferencer.Observe(rec); err != nil {
			if errors.Is(err, inference.ErrMalformedRecord) {
				r.logger.Debug("skipping malformed record",
					zap.String("endpoint", rec.Endpoint),
					zap.Error(err))
				resp.Rejected++
				continue
			}
			http.Error(w, fmt.Sprintf("Failed to ingest record: %v", err), http.StatusInternalServerError)
			return
		}
		resp.Accepted++
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		r.logger.Error("writing ingest response", zap.Error(err))
	}
}

// decodeRecords parses the body as either a single record or an array of
// records.
func decodeRecords(body []byte) ([]models.TrafficRecord, error) {
	var batch []models.TrafficRecord
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch, nil
	}

	var single models.TrafficRecord
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []models.TrafficRecord{single}, nil
}

// handleHealth responds to liveness probes.
func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}
