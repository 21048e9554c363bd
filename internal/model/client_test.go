package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:         endpoint,
		APIKey:           "test-key",
		Timeout:          2 * time.Second,
		SynthesisTimeout: 500 * time.Millisecond,
		MaxRetries:       0,
		MaxConcurrent:    2,
		ContextWindow:    64,
		MaxContinuation:  16,
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "k"}); err == nil {
		t.Error("expected error for empty endpoint")
	}

	if _, err := NewClient(Config{Endpoint: "http://localhost"}); err == nil {
		t.Error("expected error for empty API key")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.config.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", client.config.Timeout)
	}
	if client.config.MaxConcurrent != 4 {
		t.Errorf("expected default max concurrent 4, got %d", client.config.MaxConcurrent)
	}
	if client.config.ContextWindow != 2048 {
		t.Errorf("expected default context window 2048, got %d", client.config.ContextWindow)
	}
}

func TestUpdateContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/context" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing audio file: %v", err)
		}
		file.Close()
		if !strings.HasSuffix(header.Filename, ".wav") {
			t.Errorf("expected .wav filename, got %s", header.Filename)
		}
		if r.FormValue("sample_rate") != "16000" {
			t.Errorf("unexpected sample rate %s", r.FormValue("sample_rate"))
		}

		json.NewEncoder(w).Encode(ContextUpdate{
			SegmentID: r.FormValue("segment_id"),
			Tokens:    []int{1, 2, 3},
		})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	samples := make([]int16, 1600)
	update, err := client.UpdateContext(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("update context failed: %v", err)
	}
	if len(update.Tokens) != 3 {
		t.Errorf("expected 3 tokens, got %d", len(update.Tokens))
	}
	if !client.HasContext() {
		t.Error("expected context to be established after update")
	}

	stats := client.GetStats()
	if stats.ContextTokens != 3 {
		t.Errorf("expected 3 context tokens, got %d", stats.ContextTokens)
	}
	if stats.SuccessRequests != 1 {
		t.Errorf("expected 1 success request, got %d", stats.SuccessRequests)
	}
}

func TestUpdateContextEmptySegment(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.UpdateContext(context.Background(), nil, 16000); err == nil {
		t.Error("expected error for empty segment")
	}
}

func TestContextWindowClamping(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	client.recordContextTokens(50)
	client.recordContextTokens(50)

	stats := client.GetStats()
	if stats.ContextTokens != 64 {
		t.Errorf("expected context tokens clamped to 64, got %d", stats.ContextTokens)
	}
}

func TestGenerateContinuationWithoutContext(t *testing.T) {
	client, err := NewClient(testConfig("http://localhost"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.GenerateContinuation(context.Background(), 8)
	if !errors.Is(err, ErrNoContext) {
		t.Errorf("expected ErrNoContext, got %v", err)
	}
}

func TestGenerateContinuation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/continuation" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req["max_tokens"].(float64) != 8 {
			t.Errorf("expected max_tokens 8, got %v", req["max_tokens"])
		}

		json.NewEncoder(w).Encode(Continuation{Text: "and then the", TokenCount: 3})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.recordContextTokens(10)

	cont, err := client.GenerateContinuation(context.Background(), 8)
	if err != nil {
		t.Fatalf("continuation failed: %v", err)
	}
	if cont.Text != "and then the" {
		t.Errorf("unexpected continuation text %q", cont.Text)
	}
}

func TestGenerateContinuationServerNoContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no context", http.StatusConflict)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.recordContextTokens(10)

	_, err = client.GenerateContinuation(context.Background(), 8)
	if !errors.Is(err, ErrNoContext) {
		t.Errorf("expected ErrNoContext for 409 response, got %v", err)
	}
}

func TestGenerateContinuationLengthCap(t *testing.T) {
	var gotMax float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		gotMax = req["max_tokens"].(float64)
		json.NewEncoder(w).Encode(Continuation{Text: "x", TokenCount: 1})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.recordContextTokens(10)

	if _, err := client.GenerateContinuation(context.Background(), 1000); err != nil {
		t.Fatalf("continuation failed: %v", err)
	}
	if gotMax != 16 {
		t.Errorf("expected max_tokens capped at 16, got %v", gotMax)
	}
}

func TestSynthesizeAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesis" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		n := int(req["samples"].(float64))

		json.NewEncoder(w).Encode(synthesisResponse{Samples: make([]float64, n)})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	frame, err := client.SynthesizeAudio(context.Background(), "hello", 256)
	if err != nil {
		t.Fatalf("synthesis failed: %v", err)
	}
	if len(frame) != 256 {
		t.Errorf("expected 256 samples, got %d", len(frame))
	}
}

func TestSynthesizeAudioWrongLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(synthesisResponse{Samples: make([]float64, 100)})
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.SynthesizeAudio(context.Background(), "hello", 256); err == nil {
		t.Error("expected error for wrong-length synthesis response")
	}
}

func TestSynthesizeAudioTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(synthesisResponse{Samples: make([]float64, 16)})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.SynthesisTimeout = 20 * time.Millisecond

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := client.SynthesizeAudio(context.Background(), "hello", 16); err == nil {
		t.Error("expected timeout error for slow synthesis")
	}
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ContextUpdate{Tokens: []int{1}})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 2

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	samples := make([]int16, 160)
	if _, err := client.UpdateContext(context.Background(), samples, 16000); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}

	stats := client.GetStats()
	if stats.TotalRetries != 1 {
		t.Errorf("expected 1 retry recorded, got %d", stats.TotalRetries)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxRetries = 3

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	samples := make([]int16, 160)
	if _, err := client.UpdateContext(context.Background(), samples, 16000); err == nil {
		t.Error("expected error for 400 response")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", attempts)
	}
}
