package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/config"
)

// Embedder turns text into a vector for the dispatch index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type GeminiService interface {
	CompletionService
	Embedder
}

type geminiService struct {
	client       *genai.Client
	modelName    string
	embedModel   string
	maxTokens    int
	timeout      time.Duration
	temperatures map[string]float32
}

func NewGeminiService(cfg config.GeminiConfig, completion config.CompletionConfig) (GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiService{
		client:       client,
		modelName:    cfg.Model,
		embedModel:   cfg.EmbedModel,
		maxTokens:    completion.MaxTokens,
		timeout:      completion.Timeout,
		temperatures: completion.Temperatures,
	}, nil
}

// Embed implements Embedder.
func (g *geminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	// stay well under the embedding model's input limit
	if len(text) > 40000 {
		text = text[:40000]
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// Complete implements CompletionService.
func (g *geminiService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := temperatureFor(g.temperatures, req.Stage)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(g.maxTokens),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		},
	}

	log.Printf("🤖 [%s] requesting completion from %s", req.Stage, g.modelName)

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(req.UserContent), cfg)
	if err != nil {
		return nil, completionError(req.Stage, err)
	}
	if resp == nil {
		return nil, apperr.External(apperr.ReasonCompletionFailed, fmt.Sprintf("%s returned a nil response", req.Stage), nil)
	}

	text := resp.Text()
	if text == "" {
		return nil, apperr.External(apperr.ReasonCompletionFailed, fmt.Sprintf("%s returned no text content", req.Stage), nil)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &CompletionResult{
		Output: text,
		Model:  g.modelName,
		Tokens: tokens,
	}, nil
}
