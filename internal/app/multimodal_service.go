package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docexplorer/internal/ai"
	"docexplorer/internal/vectorstore"
	"docexplorer/internal/vision"
)

var ErrGenerationFailed = errors.New("text generation failed")

// TextModel is the chat side of the language model.
type TextModel interface {
	Defaults() ai.GenerationParams
	Complete(ctx context.Context, messages []ai.ChatMessage, params ai.GenerationParams) (string, error)
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, params ai.GenerationParams, onChunk func(string) error) (string, error)
}

type TextEmbedder interface {
	vectorstore.Embedder
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ImageEncoder interface {
	Encode(data []byte) (*vision.Encoding, error)
}

// MultimodalService fronts the text model, the text embedder and the local
// image model.
type MultimodalService struct {
	model    TextModel
	embedder TextEmbedder
	images   ImageEncoder
}

func NewMultimodalService(model TextModel, embedder TextEmbedder, images ImageEncoder) *MultimodalService {
	return &MultimodalService{
		model:    model,
		embedder: embedder,
		images:   images,
	}
}

func (s *MultimodalService) Embedder() TextEmbedder {
	return s.embedder
}

func (s *MultimodalService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text failed: %w", err)
	}
	return vectorstore.Normalize(v), nil
}

// EmbedImage runs the image model. The vector is unit length and the labels
// are the strongest classes.
func (s *MultimodalService) EmbedImage(data []byte) (*vision.Encoding, error) {
	if len(data) == 0 {
		return nil, ErrInvalidInput
	}
	if s.images == nil {
		return nil, vision.ErrModelUnavailable
	}
	return s.images.Encode(data)
}

// CombineEmbeddings averages equal-dimension vectors into one unit vector.
func (s *MultimodalService) CombineEmbeddings(vectors ...[]float32) ([]float32, error) {
	return vectorstore.Mean(vectors...)
}

// Generate runs one prompt. Zero fields in params take the model defaults.
func (s *MultimodalService) Generate(ctx context.Context, system, prompt string, params ai.GenerationParams) (string, error) {
	out, err := s.model.Complete(ctx, buildMessages(system, prompt), s.params(params))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return strings.TrimSpace(out), nil
}

func (s *MultimodalService) GenerateStream(ctx context.Context, system, prompt string, params ai.GenerationParams, onChunk func(string) error) (string, error) {
	out, err := s.model.StreamComplete(ctx, buildMessages(system, prompt), s.params(params), onChunk)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return strings.TrimSpace(out), nil
}

func (s *MultimodalService) params(override ai.GenerationParams) ai.GenerationParams {
	p := s.model.Defaults()
	if override.MaxTokens > 0 {
		p.MaxTokens = override.MaxTokens
	}
	if override.Temperature != nil {
		p.Temperature = override.Temperature
	}
	if override.TopK > 0 {
		p.TopK = override.TopK
	}
	if override.TopP > 0 {
		p.TopP = override.TopP
	}
	return p
}

func buildMessages(system, prompt string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, 2)
	if system != "" {
		messages = append(messages, ai.ChatMessage{Role: "system", Content: system})
	}
	return append(messages, ai.ChatMessage{Role: "user", Content: prompt})
}
