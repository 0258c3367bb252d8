package ai

import (
	"context"
	"time"
)

// Model binds a client to fixed chat and embedding settings and applies a
// per-call deadline.
type Model struct {
	client    *OpenAICompatibleClient
	chat      ChatConfig
	embedding EmbeddingConfig
	defaults  GenerationParams
	timeout   time.Duration
}

func NewModel(client *OpenAICompatibleClient, chat ChatConfig, embedding EmbeddingConfig, defaults GenerationParams, timeout time.Duration) *Model {
	return &Model{
		client:    client,
		chat:      chat,
		embedding: embedding,
		defaults:  defaults,
		timeout:   timeout,
	}
}

func (m *Model) Defaults() GenerationParams {
	return m.defaults
}

func (m *Model) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *Model) Complete(ctx context.Context, messages []ChatMessage, params GenerationParams) (string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Complete(ctx, m.chat, messages, params)
}

func (m *Model) StreamComplete(ctx context.Context, messages []ChatMessage, params GenerationParams, onChunk func(string) error) (string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.StreamComplete(ctx, m.chat, messages, params, onChunk)
}

func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.Embed(ctx, m.embedding, text)
}

func (m *Model) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.client.EmbedBatch(ctx, m.embedding, texts)
}
