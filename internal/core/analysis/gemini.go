package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiAnalyzer scores resumes with a Gemini model.
type GeminiAnalyzer struct {
	client    *genai.Client
	modelName string
}

var _ Analyzer = (*GeminiAnalyzer)(nil)

func NewGeminiAnalyzer(ctx context.Context, apiKey, modelName string) (*GeminiAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiAnalyzer{client: cl, modelName: modelName}, nil
}

func (g *GeminiAnalyzer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

const systemPrompt = `You are a resume reviewer. Given resume text and a target industry,
respond with a single JSON object: {"score": <0-100>, "strengths": [..], "weaknesses": [..], "feedback": "..."}.
Respond with JSON only, no surrounding prose.`

func (g *GeminiAnalyzer) Analyze(ctx context.Context, text, industry string) (*Result, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	prompt := fmt.Sprintf("Target industry: %s\n\nResume text:\n%s", industry, text)
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	var result Result
	if err := json.Unmarshal([]byte(stripCodeFence(b.String())), &result); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	return &result, nil
}

// stripCodeFence unwraps the ```json blocks models like to add despite being
// told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
