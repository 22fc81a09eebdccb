package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/saulo-duarte/chronos-goals/internal/config"
	"google.golang.org/genai"
)

var ErrEmptyResponse = errors.New("empty model response")

type Provider interface {
	SendPrompt(ctx context.Context, system, user string) ([]Suggestion, error)
}

type geminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider reads GEMINI_API_KEY (or the Vertex settings) from the environment.
func NewGeminiProvider(ctx context.Context, model string) (Provider, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) SendPrompt(ctx context.Context, system, user string) ([]Suggestion, error) {
	log := config.WithContext(ctx)

	result, err := p.client.Models.GenerateContent(
		ctx,
		p.model,
		genai.Text(user),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		log.WithError(err).Error("Gemini content generation failed")
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := result.Text()
	log.Debugf("[COACH] Raw model response:\n%s", raw)

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		log.WithError(err).Error("[COACH] Failed to decode suggestions")
		return nil, err
	}
	log.Infof("[COACH] Generated %d suggestions", len(suggestions))
	return suggestions, nil
}

func stripFences(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// parseSuggestions drops blank titles.
func parseSuggestions(raw string) ([]Suggestion, error) {
	clean := stripFences(raw)
	if clean == "" {
		return nil, ErrEmptyResponse
	}

	var parsed []Suggestion
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	out := make([]Suggestion, 0, len(parsed))
	for _, s := range parsed {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		if s.Minutes != nil && *s.Minutes <= 0 {
			s.Minutes = nil
		}
		out = append(out, s)
	}
	return out, nil
}
