package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// GenerationParams bounds a single completion. Zero fields are omitted
// from the request so the provider default applies. Temperature is a
// pointer because zero is a meaningful setting.
type GenerationParams struct {
	MaxTokens   int
	Temperature *float64
	TopK        int
	TopP        float64
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

type OpenAICompatibleClient struct {
	httpClient *http.Client
}

func NewOpenAICompatibleClient() *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

// NewOpenAICompatibleClientWithHTTP lets callers supply their own transport.
func NewOpenAICompatibleClientWithHTTP(httpClient *http.Client) *OpenAICompatibleClient {
	return &OpenAICompatibleClient{httpClient: httpClient}
}

func chatRequestBody(cfg ChatConfig, messages []ChatMessage, params GenerationParams, stream bool) map[string]interface{} {
	body := map[string]interface{}{
		"model":    cfg.Model,
		"messages": messages,
		"stream":   stream,
	}
	if params.MaxTokens > 0 {
		body["max_tokens"] = params.MaxTokens
	}
	if params.Temperature != nil {
		body["temperature"] = *params.Temperature
	}
	if params.TopK > 0 {
		body["top_k"] = params.TopK
	}
	if params.TopP > 0 {
		body["top_p"] = params.TopP
	}
	return body
}

// StatusError is a non-2xx reply from the provider. Body is truncated.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s response status %d: %s", e.Op, e.Status, e.Body)
}

const maxErrorBody = 512

// post sends body as JSON to baseURL+path. On success the caller owns the
// returned response body.
func (c *OpenAICompatibleClient) post(ctx context.Context, op, baseURL, apiKey, path string, body interface{}) (*http.Response, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request failed: %w", op, err)
	}
	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build %s request failed: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, cfg ChatConfig, messages []ChatMessage, params GenerationParams) (string, error) {
	resp, err := c.post(ctx, "llm", cfg.BaseURL, cfg.APIKey, "/chat/completions", chatRequestBody(cfg, messages, params, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamComplete relays each content delta to onChunk and returns the full
// text. Frames that do not parse are skipped.
func (c *OpenAICompatibleClient) StreamComplete(
	ctx context.Context,
	cfg ChatConfig,
	messages []ChatMessage,
	params GenerationParams,
	onChunk func(chunk string) error,
) (string, error) {
	resp, err := c.post(ctx, "llm stream", cfg.BaseURL, cfg.APIKey, "/chat/completions", chatRequestBody(cfg, messages, params, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		payload, ok := ssePayload(scanner.Text())
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		text := deltaContent(payload)
		if text == "" {
			continue
		}
		full.WriteString(text)
		if err := onChunk(text); err != nil {
			return "", err
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan llm stream failed: %w", err)
	}
	return full.String(), nil
}

func ssePayload(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

func deltaContent(payload string) string {
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil || len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}
