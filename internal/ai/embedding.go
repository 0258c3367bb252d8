package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, cfg EmbeddingConfig, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}
	vectors, err := c.embed(ctx, cfg, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding per input, in input order. Blank inputs
// are sent as a single space so positions line up.
func (c *OpenAICompatibleClient) EmbedBatch(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		if s := strings.TrimSpace(t); s != "" {
			inputs[i] = s
		} else {
			inputs[i] = " "
		}
	}
	vectors, err := c.embed(ctx, cfg, inputs)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

func (c *OpenAICompatibleClient) embed(ctx context.Context, cfg EmbeddingConfig, input interface{}) ([][]float32, error) {
	resp, err := c.post(ctx, "embedding", cfg.BaseURL, cfg.APIKey, "/embeddings", map[string]interface{}{
		"model": cfg.Model,
		"input": input,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	// Some providers omit index; fall back to response order then.
	indexed := false
	for _, d := range parsed.Data {
		if d.Index > 0 {
			indexed = true
			break
		}
	}
	result := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		pos := i
		if indexed && d.Index >= 0 && d.Index < len(result) {
			pos = d.Index
		}
		result[pos] = d.Embedding
	}
	return result, nil
}
