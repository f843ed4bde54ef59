package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

var ErrEmptyPlannerReply = errors.New("planner returned an empty reply")

// GeminiPlanner asks a Gemini model for the next step as JSON.
type GeminiPlanner struct {
	cli         *genai.Client
	model       string
	temperature float32
}

// NewGeminiPlanner creates a planner. An empty apiKey lets the genai client
// read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiPlanner(ctx context.Context, apiKey, model string) (*GeminiPlanner, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiPlanner{cli: cli, model: model, temperature: 0.3}, nil
}

func (g *GeminiPlanner) Name() string { return "Gemini:" + g.model }

func (g *GeminiPlanner) Next(ctx context.Context, in PlanInput) (Step, error) {
	contents := make([]*genai.Content, 0, len(in.History)+1)
	for _, m := range in.History {
		role := "user"
		if m.Type == MessageAI {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: renderTurn(in)}}})

	temperature := g.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
	}
	if in.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: in.System}}}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return Step{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Step{}, ErrEmptyPlannerReply
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	return parseStep(text.String())
}
