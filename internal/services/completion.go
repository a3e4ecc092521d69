package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/config"
)

// Completion stages. Each name keys a sampling temperature in the config.
const (
	StageStructureResume   = "structure_resume"
	StageNormalizeJob      = "normalize_job"
	StageFitAnalysis       = "fit_analysis"
	StageTailorResume      = "tailor_resume"
	StageHumanizeResume    = "humanize_resume"
	StageDraftEmail        = "draft_email"
	StageHumanizeEmail     = "humanize_email"
	StageClassifyReply     = "classify_reply"
	StageDraftReply        = "draft_reply"
	StageAcknowledge       = "acknowledge"
	StageExtractInterview  = "extract_interview"
	StageDraftConfirmation = "draft_confirmation"
)

type CompletionRequest struct {
	Stage        string
	SystemPrompt string
	UserContent  string
}

type CompletionResult struct {
	Output string
	Model  string
	Tokens int
}

type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// NewCompletionService picks the backend named by cfg.Completion.Provider.
func NewCompletionService(cfg *config.Config) (CompletionService, error) {
	switch strings.ToLower(cfg.Completion.Provider) {
	case "", "openai", "ollama":
		return NewOpenAICompletionService(cfg.Completion), nil
	case "gemini":
		return NewGeminiService(cfg.Gemini, cfg.Completion)
	}
	return nil, fmt.Errorf("unknown completion provider %q", cfg.Completion.Provider)
}

type openAICompletionService struct {
	client       *openai.Client
	model        string
	maxTokens    int
	timeout      time.Duration
	temperatures map[string]float32
}

// NewOpenAICompletionService talks to any OpenAI-compatible chat-completions
// server. Ollama serves one under /v1.
func NewOpenAICompletionService(cfg config.CompletionConfig) CompletionService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &openAICompletionService{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		timeout:      cfg.Timeout,
		temperatures: cfg.Temperatures,
	}
}

// Complete implements CompletionService.
func (s *openAICompletionService) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Printf("🤖 [%s] requesting completion from %s", req.Stage, s.model)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserContent},
		},
		Temperature: temperatureFor(s.temperatures, req.Stage),
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return nil, completionError(req.Stage, err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.External(apperr.ReasonCompletionFailed, fmt.Sprintf("%s returned no choices", req.Stage), nil)
	}

	model := resp.Model
	if model == "" {
		model = s.model
	}

	return &CompletionResult{
		Output: resp.Choices[0].Message.Content,
		Model:  model,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

func temperatureFor(temperatures map[string]float32, stage string) float32 {
	if t, ok := temperatures[stage]; ok {
		return t
	}
	if t, ok := config.DefaultTemperatures[stage]; ok {
		return t
	}
	return 0.3
}

func completionError(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.External(apperr.ReasonTimeout, fmt.Sprintf("%s completion timed out", stage), err)
	}
	return apperr.External(apperr.ReasonCompletionFailed, fmt.Sprintf("%s completion failed", stage), err)
}

// completeFields runs one stage, books its usage on the execution and
// decodes the output.
func completeFields(ctx context.Context, completion CompletionService, exec *Execution, req CompletionRequest) (*fields, error) {
	result, err := completion.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	exec.Track(result)
	return parseFields(req.Stage, result.Output)
}
