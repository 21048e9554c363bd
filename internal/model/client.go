package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resonatelabs/resonate/internal/pcm"
)

// ErrNoContext indicates a continuation was requested before any audio
// context had been established on the collaborator side.
var ErrNoContext = errors.New("model: no context established")

// Client provides HTTP client functionality for the model collaborator API
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // Rate limiting semaphore

	// Rolling context bookkeeping, mirrors the collaborator's window
	contextTokens int
	hasContext    bool

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains model client configuration
type Config struct {
	Endpoint         string
	APIKey           string
	Timeout          time.Duration
	SynthesisTimeout time.Duration
	MaxRetries       int
	MaxConcurrent    int
	ContextWindow    int
	MaxContinuation  int
}

// ContextUpdate is the collaborator's response to an audio context upload.
type ContextUpdate struct {
	SegmentID   string    `json:"segment_id"`
	Tokens      []int     `json:"tokens"`
	Confidences []float64 `json:"confidences,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Continuation is a predicted text continuation of the current context.
type Continuation struct {
	Text        string    `json:"text"`
	TokenCount  int       `json:"token_count"`
	ProcessedAt time.Time `json:"processed_at"`
}

// synthesisResponse carries synthesized audio back from the collaborator.
type synthesisResponse struct {
	Samples []float64 `json:"samples"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
	ContextTokens   int           `json:"context_tokens"`
}

// NewClient creates a new model collaborator HTTP client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.SynthesisTimeout <= 0 {
		config.SynthesisTimeout = 250 * time.Millisecond
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	if config.ContextWindow <= 0 {
		config.ContextWindow = 2048
	}

	if config.MaxContinuation <= 0 {
		config.MaxContinuation = 32
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Create semaphore for rate limiting
	semaphore := make(chan struct{}, config.MaxConcurrent)

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  semaphore,
	}, nil
}

// UpdateContext uploads an audio segment to extend the collaborator's
// rolling token context. Samples are packaged as a mono 16-bit WAV file.
// The client mirrors the collaborator's window accounting: when the window
// is exceeded, the oldest tokens fall out and only the count matters here.
func (c *Client) UpdateContext(ctx context.Context, samples []int16, sampleRate int) (*ContextUpdate, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("segment cannot be empty")
	}

	segmentID := uuid.New().String()
	wavData, err := pcm.EncodeWAV(samples, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode segment: %w", err)
	}

	body, err := c.withRetries(ctx, func(reqCtx context.Context) (*http.Request, error) {
		return c.newContextRequest(reqCtx, segmentID, wavData, sampleRate, len(samples))
	})
	if err != nil {
		return nil, err
	}

	var update ContextUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	update.ProcessedAt = time.Now()

	c.recordContextTokens(len(update.Tokens))

	return &update, nil
}

// GenerateContinuation requests a text continuation of the current context,
// capped at maxLength tokens. Returns ErrNoContext when no audio has been
// uploaded yet.
func (c *Client) GenerateContinuation(ctx context.Context, maxLength int) (*Continuation, error) {
	if !c.HasContext() {
		return nil, ErrNoContext
	}

	if maxLength <= 0 || maxLength > c.config.MaxContinuation {
		maxLength = c.config.MaxContinuation
	}

	payload, err := json.Marshal(map[string]any{
		"request_id": uuid.New().String(),
		"max_tokens": maxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := c.withRetries(ctx, func(reqCtx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(reqCtx, "POST", c.config.Endpoint+"/continuation", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "HTTP error 409") {
			return nil, ErrNoContext
		}
		return nil, err
	}

	var cont Continuation
	if err := json.Unmarshal(body, &cont); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	cont.ProcessedAt = time.Now()

	return &cont, nil
}

// SynthesizeAudio converts a short text into exactly frameLen normalized
// samples. The call runs under its own tight deadline so a slow
// collaborator cannot stall the audio cadence; it is never retried.
func (c *Client) SynthesizeAudio(ctx context.Context, text string, frameLen int) ([]float64, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if frameLen <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLen)
	}

	synthCtx, cancel := context.WithTimeout(ctx, c.config.SynthesisTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"text":    text,
		"samples": frameLen,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(synthCtx, "POST", c.config.Endpoint+"/synthesis", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.incrementTotalRequests()
	startTime := time.Now()

	body, err := c.execute(req)
	if err != nil {
		c.incrementFailedRequests()
		return nil, err
	}

	var resp synthesisResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	if len(resp.Samples) != frameLen {
		c.incrementFailedRequests()
		return nil, fmt.Errorf("synthesis returned %d samples, expected %d", len(resp.Samples), frameLen)
	}

	c.incrementSuccessRequests()
	c.updateAvgResponseTime(time.Since(startTime))

	return resp.Samples, nil
}

// HasContext reports whether at least one segment has been uploaded.
func (c *Client) HasContext() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasContext
}

// withRetries acquires the rate-limiting semaphore and runs the request
// with exponential backoff between retryable failures. The request is
// rebuilt per attempt because bodies cannot be replayed.
func (c *Client) withRetries(ctx context.Context, build func(context.Context) (*http.Request, error)) ([]byte, error) {
	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr error

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build(ctx)
		if err != nil {
			c.incrementFailedRequests()
			return nil, fmt.Errorf("failed to create HTTP request: %w", err)
		}

		body, err := c.execute(req)
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return body, nil
		}

		lastErr = err

		// Check if error is retryable
		if !c.isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// execute performs a single HTTP round trip and returns the response body.
func (c *Client) execute(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Resonate/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// newContextRequest builds the multipart upload for one audio segment.
func (c *Client) newContextRequest(ctx context.Context, segmentID string, wavData []byte, sampleRate, sampleCount int) (*http.Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", segmentID+".wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wavData); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"segment_id":   segmentID,
		"sample_rate":  fmt.Sprintf("%d", sampleRate),
		"sample_count": fmt.Sprintf("%d", sampleCount),
		"duration":     fmt.Sprintf("%.3f", float64(sampleCount)/float64(sampleRate)),
		"format":       "wav",
		"timestamp":    time.Now().Format(time.RFC3339),
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.config.Endpoint+"/context", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}

// isRetryableError determines if an error is retryable
func (c *Client) isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()

	// 5xx server errors are retryable
	if strings.Contains(errStr, "HTTP error 5") {
		return true
	}

	// Rate limiting (429) is retryable
	if strings.Contains(errStr, "HTTP error 429") {
		return true
	}

	// Network/connection errors are typically retryable
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}

// recordContextTokens folds a context update into the window counter,
// clamping at the collaborator's window size since older tokens fall out.
func (c *Client) recordContextTokens(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hasContext = true
	c.contextTokens += count
	if c.contextTokens > c.config.ContextWindow {
		c.contextTokens = c.config.ContextWindow
	}
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	activeRequests := len(c.semaphore)

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  activeRequests,
		ContextTokens:   c.contextTokens,
	}
}

// Close gracefully shuts down the client
func (c *Client) Close() error {
	// Wait for all active requests to complete
	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}

	return nil
}
