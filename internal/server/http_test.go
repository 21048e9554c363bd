package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/resonatelabs/resonate/internal/config"
	"github.com/resonatelabs/resonate/internal/control"
	"github.com/resonatelabs/resonate/internal/engine"
	"github.com/resonatelabs/resonate/internal/metrics"
)

// Prometheus collectors register globally, so all tests share one instance.
var testMetrics = metrics.NewMetrics()

func newTestServer(t *testing.T) (*HTTPServer, *control.Levels) {
	t.Helper()

	cfg := config.Default()
	cfg.Model.APIKey = "secret-key"

	levels := control.NewLevels(control.Snapshot{
		Mic:        cfg.Levels.Mic,
		Feedback:   cfg.Levels.Feedback,
		Prediction: cfg.Levels.Prediction,
		Quantum:    cfg.Levels.Quantum,
		Model:      cfg.Levels.Model,
	})

	eng, err := engine.New(cfg, engine.Options{
		Open:   func() (engine.Device, error) { return nil, fmt.Errorf("not used") },
		Levels: levels,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	h := NewHTTPServer(cfg.HTTP, slog.New(slog.NewTextHandler(io.Discard, nil)),
		cfg, eng, levels, testMetrics)
	return h, levels
}

func doRequest(t *testing.T, h *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", health["status"])
	}
}

func TestHandleStatus(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	eng, ok := status["engine"].(map[string]interface{})
	if !ok {
		t.Fatal("expected engine section in status")
	}
	if eng["state"] != "uninitialized" {
		t.Errorf("expected uninitialized engine state, got %v", eng["state"])
	}
}

func TestHandleConfigOmitsAPIKey(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if strings.Contains(rec.Body.String(), "secret-key") {
		t.Error("config response leaked the API key")
	}
	if strings.Contains(rec.Body.String(), "api_key") {
		t.Error("config response contains an api_key field")
	}
}

func TestHandleLevels(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/levels", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response struct {
		Levels control.Snapshot `json:"levels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Levels.Mic != 0.7 {
		t.Errorf("expected mic 0.7, got %f", response.Levels.Mic)
	}
}

func TestHandleLevelUpdateAbsolute(t *testing.T) {
	h, levels := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/levels/prediction", `{"value": 0.9}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if got := levels.Snapshot().Prediction; got != 0.9 {
		t.Errorf("expected prediction 0.9, got %f", got)
	}
}

func TestHandleLevelUpdateDelta(t *testing.T) {
	h, levels := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/levels/mic", `{"delta": -0.1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := levels.Snapshot().Mic
	if got < 0.59 || got > 0.61 {
		t.Errorf("expected mic near 0.6, got %f", got)
	}
}

func TestHandleLevelUpdateClamps(t *testing.T) {
	h, levels := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/levels/quantum", `{"value": 3.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if got := levels.Snapshot().Quantum; got != 1.0 {
		t.Errorf("expected quantum clamped to 1.0, got %f", got)
	}
}

func TestHandleLevelUpdateValidation(t *testing.T) {
	h, _ := newTestServer(t)

	// Unknown level
	rec := doRequest(t, h, http.MethodPost, "/levels/bogus", `{"value": 0.5}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown level, got %d", rec.Code)
	}

	// Both value and delta
	rec = doRequest(t, h, http.MethodPost, "/levels/mic", `{"value": 0.5, "delta": 0.1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when value and delta are both set, got %d", rec.Code)
	}

	// Neither value nor delta
	rec = doRequest(t, h, http.MethodPost, "/levels/mic", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when neither value nor delta is set, got %d", rec.Code)
	}

	// Wrong method
	rec = doRequest(t, h, http.MethodGet, "/levels/mic", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET on level update, got %d", rec.Code)
	}
}

func TestHandleRoot(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/nonexistent", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestHandleMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "resonate_") {
		t.Error("expected resonate metrics in exposition output")
	}
}
