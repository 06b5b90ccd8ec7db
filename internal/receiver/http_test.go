package receiver

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftwatch/driftwatch/internal/inference"
)

func postTraffic(t *testing.T, r *HTTPReceiver, body []byte, gzipped bool) (*httptest.ResponseRecorder, ingestResponse) {
	t.Helper()

	var buf bytes.Buffer
	if gzipped {
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			t.Fatal(err)
		}
		if err := gw.Close(); err != nil {
			t.Fatal(err)
		}
	} else {
		buf.Write(body)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/traffic", &buf)
	if gzipped {
		req.Header.Set("Content-Encoding", "gzip")
	}
	rec := httptest.NewRecorder()
	r.handleTraffic(rec, req)

	var resp ingestResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
	return rec, resp
}

func TestHandleTraffic_SingleRecord(t *testing.T) {
	inf := inference.New(nil, nil)
	r := NewHTTPReceiver(":0", inf, nil)

	body := []byte(`{"endpoint":"GET /orders","payload":{"id":1}}`)
	rec, resp := postTraffic(t, r, body, false)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Accepted != 1 || resp.Rejected != 0 {
		t.Errorf("resp = %+v, want 1 accepted", resp)
	}

	snap := inf.Snapshot("GET /orders")
	if snap.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", snap.TotalCount)
	}
}

func TestHandleTraffic_BatchSkipsMalformed(t *testing.T) {
	inf := inference.New(nil, nil)
	r := NewHTTPReceiver(":0", inf, nil)

	body := []byte(`[
		{"endpoint":"GET /orders","payload":{"id":1}},
		{"endpoint":"","payload":{"id":2}},
		{"endpoint":"GET /orders","payload":{"id":3}},
		{"endpoint":"GET /orders"}
	]`)
	rec, resp := postTraffic(t, r, body, false)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Accepted != 2 || resp.Rejected != 2 {
		t.Errorf("resp = %+v, want 2 accepted 2 rejected", resp)
	}
	if snap := inf.Snapshot("GET /orders"); snap.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", snap.TotalCount)
	}
}

func TestHandleTraffic_Gzip(t *testing.T) {
	inf := inference.New(nil, nil)
	r := NewHTTPReceiver(":0", inf, nil)

	body := []byte(`{"endpoint":"GET /gz","payload":{"ok":true}}`)
	rec, resp := postTraffic(t, r, body, true)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Accepted != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleTraffic_BadRequests(t *testing.T) {
	inf := inference.New(nil, nil)
	r := NewHTTPReceiver(":0", inf, nil)

	t.Run("invalid json", func(t *testing.T) {
		rec, _ := postTraffic(t, r, []byte(`{not json`), false)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/traffic", nil)
		rec := httptest.NewRecorder()
		r.handleTraffic(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/traffic", bytes.NewReader([]byte("not gzip")))
		req.Header.Set("Content-Encoding", "gzip")
		rec := httptest.NewRecorder()
		r.handleTraffic(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandleHealth(t *testing.T) {
	r := NewHTTPReceiver(":0", inference.New(nil, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
