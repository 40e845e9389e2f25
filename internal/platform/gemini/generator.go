package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/examgen-api/internal/config"
	"github.com/phrazzld/examgen-api/internal/generation"
	"google.golang.org/genai"
)

// Generator implements generation.Generator using Google's Gemini API.
// Retry policy lives in the service layer; this type does exactly one
// provider call per GenerateBatch and classifies its outcome.
type Generator struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client
	model  string
}

// NewGenerator creates a Generator with the provided dependencies.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		logger: logger,
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// GenerateBatch implements generation.Generator. It sends the prompt (and
// source attachments in source-of-truth mode), enforces the per-call
// deadline, and normalizes the response into a BatchResult.
func (g *Generator) GenerateBatch(ctx context.Context, req generation.BatchRequest) (*generation.BatchResult, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", generation.ErrInvalidConfig)
	}

	if g.config.RequestTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.config.RequestTimeoutSeconds)*time.Second)
		defer cancel()
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, att := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(att.Data, att.MIMEType))
	}

	g.logger.DebugContext(ctx, "calling Gemini",
		"model", g.model,
		"requested_count", req.Count,
		"mode", req.Mode,
		"attachments", len(req.Attachments),
		"prior_questions", len(req.PriorQuestions))

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: parts}}, nil)
	if err != nil {
		return nil, classifyCallError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in response", generation.ErrParseFailure)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in candidate", generation.ErrParseFailure)
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text += part.Text
		}
	}

	parsed, err := parseQuestions(text)
	if err != nil {
		return nil, err
	}

	result := &generation.BatchResult{Questions: parsed}
	if resp.UsageMetadata != nil {
		result.Usage = generation.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	g.logger.InfoContext(ctx, "Gemini call succeeded",
		"questions", len(result.Questions),
		"total_tokens", result.Usage.TotalTokens)

	return result, nil
}

// parseQuestions extracts the questions array from the model's JSON reply.
// Models sometimes wrap JSON in a markdown fence; strip it before decoding.
func parseQuestions(text string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var envelope batchEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrParseFailure, err)
	}
	if len(envelope.Questions) == 0 {
		return nil, fmt.Errorf("%w: response contained no questions", generation.ErrParseFailure)
	}
	return envelope.Questions, nil
}

// classifyCallError maps a provider call error onto the typed failure the
// retry layer keys its backoff on.
func classifyCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout") {
		return fmt.Errorf("%w: %v", generation.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", generation.ErrAPIFailure, err)
}
