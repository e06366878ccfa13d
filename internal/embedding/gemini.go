package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEmbedder embeds text with the Gemini embeddings API. Catalog vectors must come
// from the same model and output dimensionality for scores to be meaningful.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGeminiEmbedder creates a Gemini API client. apiKey must be non-empty.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is not set")
	}
	if model == "" {
		return nil, errors.New("gemini model is not set")
	}
	if dimensions <= 0 {
		return nil, errors.New("gemini embedder needs positive dimensions")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dimensions: dimensions}, nil
}

// Embed requests a retrieval-query embedding for text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := int32(e.dimensions)
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}}}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_QUERY",
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini embed: empty response")
	}
	vec := resp.Embeddings[0].Values
	if err := checkDimensions(vec, e.dimensions); err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	return vec, nil
}

// Dimensions returns the requested output dimensionality.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the genai client holds no resources that need releasing.
func (e *GeminiEmbedder) Close() error {
	return nil
}
