package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyCompletion is returned when a provider answers without text.
var ErrEmptyCompletion = errors.New("llm returned no content")

// Completer sends a system and user prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLM talks to OpenAI-compatible or Anthropic chat endpoints over HTTP.
type LLM struct {
	client    *http.Client
	provider  string // "openai" or "anthropic"
	model     string
	apiKey    string
	baseURL   string
	maxTokens int
}

// NewLLM creates a client. An empty model picks the provider's default.
func NewLLM(provider, model, apiKey, baseURL string) *LLM {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	return &LLM{
		client:    &http.Client{Timeout: 90 * time.Second},
		provider:  provider,
		model:     model,
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxTokens: 4096,
	}
}

func (l *LLM) Complete(ctx context.Context, system, user string) (string, error) {
	if l.provider == "anthropic" {
		return l.callAnthropic(ctx, system, user)
	}
	return l.callOpenAI(ctx, system, user)
}

func (l *LLM) callOpenAI(ctx context.Context, system, user string) (string, error) {
	base := l.baseURL
	if base == "" {
		base = "https://api.openai.com"
	}
	payload := map[string]any{
		"model": l.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"max_tokens":  l.maxTokens,
		"temperature": 0.3,
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + l.apiKey}
	if err := l.post(ctx, "openai", base+"/v1/chat/completions", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}
	return result.Choices[0].Message.Content, nil
}

func (l *LLM) callAnthropic(ctx context.Context, system, user string) (string, error) {
	base := l.baseURL
	if base == "" {
		base = "https://api.anthropic.com"
	}
	payload := map[string]any{
		"model":      l.model,
		"max_tokens": l.maxTokens,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         l.apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := l.post(ctx, "anthropic", base+"/v1/messages", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 || result.Content[0].Text == "" {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
	}
	return result.Content[0].Text, nil
}

func (l *LLM) post(ctx context.Context, name, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s status %d: %v", name, resp.StatusCode, errResp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return nil
}

// StripFences removes markdown code fence lines around a JSON answer.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// completeJSON asks for a JSON answer and decodes it into out.
func completeJSON(ctx context.Context, c Completer, system, user string, out any) error {
	raw, err := c.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(StripFences(raw)), out); err != nil {
		return fmt.Errorf("parse llm response: %w", err)
	}
	return nil
}
