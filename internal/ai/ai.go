// Package ai abstracts the optional AI augmentation the Pairing Engine
// uses to refine its traditional scoring, grounded on the pack's
// google.golang.org/genai client usage.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/cellarworks/cellar-intel/infrastructure/errors"
	"github.com/cellarworks/cellar-intel/infrastructure/logging"
)

// Scores is the structured result a Provider returns for one pairing
// prompt: one ai_score per candidate name, plus free-text reasoning.
type Scores struct {
	ScoresByWine map[string]float64 `json:"scores_by_wine"`
	Reasoning    string             `json:"reasoning"`
}

// Provider scores pairing candidates given a compact prompt. Providers
// must respect ctx cancellation and return quickly on timeout.
type Provider interface {
	Score(ctx context.Context, prompt string) (*Scores, error)
}

// GenAIProvider implements Provider against Google's Gemini API.
type GenAIProvider struct {
	client *genai.Client
	model  string
	logger *logging.Logger
}

// NewGenAIProvider constructs a GenAIProvider. apiKey must be non-empty;
// model defaults to "gemini-2.0-flash" when empty.
func NewGenAIProvider(ctx context.Context, apiKey, model string) (*GenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ai: API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("ai: create genai client: %w", err)
	}
	return &GenAIProvider{
		client: client,
		model:  model,
		logger: logging.NewFromEnv("ai-provider"),
	}, nil
}

// Score sends prompt to the model and parses its JSON response into Scores.
func (p *GenAIProvider) Score(ctx context.Context, prompt string) (*Scores, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	start := time.Now()
	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	latency := time.Since(start)
	if err != nil {
		p.logger.WithError(err).Warn("ai score request failed")
		return nil, errors.AIProviderError("generate_content", err)
	}

	text := extractText(result)
	p.logger.WithFields(map[string]interface{}{"latency_ms": latency.Milliseconds()}).Debug("ai score request completed")

	var scores Scores
	if err := json.Unmarshal([]byte(extractJSON(text)), &scores); err != nil {
		return nil, errors.AIProviderError("parse_response", err)
	}
	return &scores, nil
}

func extractText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	candidate := result.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// extractJSON strips a surrounding markdown code fence, which models
// frequently add even when instructed to return bare JSON.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// BuildPrompt renders a compact scoring prompt for dish + candidate wines.
func BuildPrompt(dishDescription string, candidateNames []string) string {
	var b strings.Builder
	b.WriteString("You are a sommelier. Given the dish and candidate wines below, ")
	b.WriteString("return strict JSON: {\"scores_by_wine\": {name: score 0..1}, \"reasoning\": \"...\"}.\n\n")
	fmt.Fprintf(&b, "Dish: %s\n\nCandidates:\n", dishDescription)
	for _, name := range candidateNames {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return b.String()
}
