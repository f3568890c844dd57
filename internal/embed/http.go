package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cortexdesk/cortexrag/internal/cortexerr"
)

const (
	httpPoolSize       = 4
	httpRequestTimeout = 30 * time.Second

	// circuitMaxFailures/circuitResetTimeout bound how many consecutive
	// embedBatch failures are tolerated before the breaker opens and how
	// long it stays open before allowing a half-open probe. Chosen so a
	// permanently down provider fails fast well inside the 3-attempt
	// per-call retry budget instead of retrying every single call.
	circuitMaxFailures  = 5
	circuitResetTimeout = 30 * time.Second

	// interCallSpacing is the minimum gap enforced between successive
	// provider calls, keeping bulk indexing under provider rate limits.
	interCallSpacing = 50 * time.Millisecond
)

// HTTPConfig configures an HTTPEmbedder against an Ollama-compatible
// /api/embed endpoint.
type HTTPConfig struct {
	Endpoint   string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	Retry      cortexerr.RetryConfig
}

type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// HTTPEmbedder calls an Ollama-compatible embedding endpoint over HTTP,
// pooling connections across calls and retrying transient failures with
// backoff.
type HTTPEmbedder struct {
	client    *http.Client
	transport *http.Transport
	cfg       HTTPConfig
	breaker   *cortexerr.CircuitBreaker

	mu         sync.RWMutex
	closed     bool
	lastCallAt time.Time
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder constructs an HTTPEmbedder, applying defaults for any
// zero-valued config field.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpRequestTimeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = cortexerr.DefaultRetryConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        httpPoolSize,
		MaxIdleConnsPerHost: httpPoolSize,
		MaxConnsPerHost:     httpPoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}

	return &HTTPEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		cfg:       cfg,
		breaker:   cortexerr.NewCircuitBreaker(circuitMaxFailures, circuitResetTimeout),
	}
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.cfg.Dimensions), nil
	}

	out, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch generates embeddings for multiple texts, chunking the
// request into cfg.BatchSize-sized calls to the endpoint.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var pending []int
	var pendingTexts []string

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			results[i] = make([]float32, e.cfg.Dimensions)
			continue
		}
		pending = append(pending, i)
		pendingTexts = append(pendingTexts, t)
	}

	for start := 0; start < len(pendingTexts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(pendingTexts) {
			end = len(pendingTexts)
		}

		embedded, err := e.embedBatch(ctx, pendingTexts[start:end])
		if err != nil {
			return nil, err
		}
		for i, emb := range embedded {
			results[pending[start+i]] = emb
		}
	}

	return results, nil
}

func (e *HTTPEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, cortexerr.New(cortexerr.CodeEmbeddingUnavail, "embedder is closed")
	}

	if !e.breaker.Allow() {
		return nil, cortexerr.New(cortexerr.CodeEmbeddingUnavail, "embedding provider circuit open, failing fast")
	}

	e.waitForCallSpacing()

	var result [][]float32
	err := cortexerr.Retry(ctx, e.cfg.Retry, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		out, err := e.doRequest(reqCtx, texts)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		e.breaker.RecordFailure()
		return nil, cortexerr.Wrap(cortexerr.CodeEmbeddingUnavail, err)
	}
	e.breaker.RecordSuccess()
	return result, nil
}

// waitForCallSpacing blocks until at least interCallSpacing has elapsed
// since the previous provider call.
func (e *HTTPEmbedder) waitForCallSpacing() {
	e.mu.Lock()
	elapsed := time.Since(e.lastCallAt)
	e.mu.Unlock()

	if wait := interCallSpacing - elapsed; wait > 0 {
		time.Sleep(wait)
	}

	e.mu.Lock()
	e.lastCallAt = time.Now()
	e.mu.Unlock()
}

func (e *HTTPEmbedder) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	url := strings.TrimSuffix(e.cfg.Endpoint, "/") + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed endpoint returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts))
	}

	out := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		v := make([]float32, len(emb))
		for j, x := range emb {
			v[j] = float32(x)
		}
		out[i] = normalizeVector(v)
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// ModelName returns the configured model identifier.
func (e *HTTPEmbedder) ModelName() string {
	return e.cfg.Model
}

// Available reports whether the endpoint responds to a lightweight probe.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	if e.breaker.Status() == cortexerr.StateOpen {
		return false
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, strings.TrimSuffix(e.cfg.Endpoint, "/")+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases pooled connections.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
