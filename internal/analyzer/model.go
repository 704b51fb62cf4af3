package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Score is the structured output contract of the generative model.
type Score struct {
	Explanation   string `json:"explanation"`
	LawfulChaotic int    `json:"lawfulChaotic"`
	GoodEvil      int    `json:"goodEvil"`
}

// Model invokes a generative model to score a profile prompt.
type Model interface {
	Score(ctx context.Context, prompt string) (Score, error)
}

// GenAIModel implements Model on the Gemini API with constrained JSON output.
type GenAIModel struct {
	client *genai.Client
	model  string
}

// NewGenAIModel creates a Gemini-backed scoring model.
func NewGenAIModel(ctx context.Context, apiKey, modelName string) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("model API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIModel{client: client, model: modelName}, nil
}

// Score sends the prompt and parses the constrained JSON response.
// Credential and quota failures surface as their sentinel kinds so the
// analyzer can map them to specific user-facing messages.
func (m *GenAIModel) Score(ctx context.Context, prompt string) (Score, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"explanation":   {Type: genai.TypeString},
				"lawfulChaotic": {Type: genai.TypeInteger},
				"goodEvil":      {Type: genai.TypeInteger},
			},
			Required: []string{"explanation", "lawfulChaotic", "goodEvil"},
		},
		Temperature: genai.Ptr[float32](0.4),
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), cfg)
	if err != nil {
		return Score{}, classifyModelError(err)
	}

	var score Score
	if err := json.Unmarshal([]byte(resp.Text()), &score); err != nil {
		return Score{}, fmt.Errorf("decode model response: %w", err)
	}

	score.LawfulChaotic = clampScore(score.LawfulChaotic)
	score.GoodEvil = clampScore(score.GoodEvil)
	return score, nil
}

// classifyModelError folds API failures into the sentinel kinds.
func classifyModelError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") ||
		strings.Contains(msg, "unauthenticated") ||
		strings.Contains(msg, "permission_denied"):
		return fmt.Errorf("%w: %w", ErrModelCredentials, err)
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %w", ErrModelQuota, err)
	default:
		return fmt.Errorf("model invocation failed: %w", err)
	}
}

func clampScore(v int) int {
	switch {
	case v < -100:
		return -100
	case v > 100:
		return 100
	default:
		return v
	}
}
