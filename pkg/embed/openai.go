package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
)

// ErrNoEmbedding is returned when the service answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// OpenAI is an OpenAI-compatible embeddings client.
type OpenAI struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
}

// NewOpenAI creates a client. Empty baseURL and model select the OpenAI defaults.
func NewOpenAI(baseURL, model, apiKey string) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		maxRetries: 3,
	}
}

// Embed requests one embedding, retrying rate limits and server errors with
// exponential backoff.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	payload, _ := json.Marshal(map[string]any{"model": o.model, "input": text})

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, lastErr, attempt-1); err != nil {
				return nil, err
			}
		}

		vec, err := o.do(ctx, payload)
		if err == nil {
			return vec, nil
		}
		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (o *OpenAI) do(ctx context.Context, payload []byte) ([]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("call embeddings: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		re := &retryableError{err: fmt.Errorf("embeddings status %d", resp.StatusCode)}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			re.after = time.Duration(secs) * time.Second
		}
		return nil, re
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings status %d", resp.StatusCode)
	}

	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	return out.Data[0].Embedding, nil
}

type retryableError struct {
	err   error
	after time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func sleep(ctx context.Context, last error, attempt int) error {
	d := retryDelay(attempt)
	var re *retryableError
	if errors.As(last, &re) && re.after > 0 {
		d = re.after
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var baseRetryDelay = 200 * time.Millisecond

// retryDelay doubles from baseRetryDelay, capped at 5s.
func retryDelay(attempt int) time.Duration {
	d := baseRetryDelay << max(attempt, 0)
	return min(d, 5*time.Second)
}
