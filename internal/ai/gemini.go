package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

// GeminiProvider implements Narrator using Google's Gemini models.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiProvider initializes a new Gemini client.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "ai: create gemini client")
	}

	model := client.GenerativeModel("gemini-2.0-flash")
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.2)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	return &GeminiProvider{
		client: client,
		model:  model,
	}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	p.client.Close()
}

// Narrate asks the model for a JSON narrative and renders it as text.
func (p *GeminiProvider) Narrate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", eris.Wrap(err, "ai: gemini generate")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", eris.New("ai: no response candidates from gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return parseNarrative(text.String())
}

func parseNarrative(raw string) (string, error) {
	clean := cleanJSONString(raw)
	var n Narrative
	if err := json.Unmarshal([]byte(clean), &n); err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("ai: parse narrative (raw: %.200s)", clean))
	}
	if strings.TrimSpace(n.Headline) == "" {
		return "", eris.New("ai: narrative has no headline")
	}
	return n.Text(), nil
}

const systemPrompt = `Role: You explain ride-pricing recommendations to an operations team.
You receive a list of candidate pricing rules with their simulated revenue impact per forecast horizon.

RULES:
1. Use only numbers present in the input. Never invent figures.
2. Keep the headline under 25 words.
3. One point per rule, naming the rule and its revenue delta.
4. Add a caveat for any rule whose price change exceeds 15% for a loyalty tier or whose delta is negative on any horizon.

Output JSON Schema:
{
  "headline": "string",
  "points": ["string"],
  "caveats": ["string"]
}
`

// cleanJSONString removes markdown code fences if present (e.g. ` + "```json ... ```" + `).
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
