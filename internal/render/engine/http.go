package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/renderguard/renderguard/internal/core/domain"
)

// HTTPEngine drives a typesetting sidecar over HTTP.
type HTTPEngine struct {
	endpoint   string
	httpClient *http.Client

	mu           sync.Mutex
	totalLatency time.Duration
	requestCount int
	failureCount int
}

// NewHTTPEngine creates an adapter for the sidecar at endpoint.
func NewHTTPEngine(endpoint string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEngine{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Typeset posts the region to the sidecar's typeset endpoint.
func (e *HTTPEngine) Typeset(ctx context.Context, region domain.Region) error {
	start := time.Now()

	reqBody := map[string]any{
		"region": region.ID,
		"target": region.Target(),
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		e.recordFailure()
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint+"/typeset", bytes.NewReader(jsonData))
	if err != nil {
		e.recordFailure()
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.recordFailure()
		return fmt.Errorf("typeset call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		e.recordFailure()
		return fmt.Errorf("engine not ready (503)")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		e.recordFailure()
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		e.recordFailure()
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	e.recordSuccess(time.Since(start))
	return nil
}

// Available probes the sidecar's ready endpoint with a short deadline.
func (e *HTTPEngine) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", e.endpoint+"/ready", nil)
	if err != nil {
		return false
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Stats returns call accounting.
func (e *HTTPEngine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Requests: e.requestCount,
		Failures: e.failureCount,
	}
	if succeeded := e.requestCount - e.failureCount; succeeded > 0 {
		s.AverageLatency = e.totalLatency / time.Duration(succeeded)
	}
	return s
}

func (e *HTTPEngine) recordSuccess(latency time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requestCount++
	e.totalLatency += latency
}

func (e *HTTPEngine) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requestCount++
	e.failureCount++
}
