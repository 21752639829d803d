package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for merchant classification.
const DefaultModelName = "gemini-2.5-flash"

// GeminiClassifier asks a Gemini model to categorize merchant names.
type GeminiClassifier struct {
	client *genai.Client
	model  string
}

// NewGeminiClassifier creates a classifier. Credentials come from the
// environment (GEMINI_API_KEY or Vertex AI application default credentials).
func NewGeminiClassifier(ctx context.Context, model string) (*GeminiClassifier, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClassifier: create genai client: %w", err)
	}
	return &GeminiClassifier{client: client, model: model}, nil
}

// Classify implements Classifier.
func (g *GeminiClassifier) Classify(ctx context.Context, merchant string, categories []string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildClassifyPrompt(merchant, categories)}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Classify: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("Classify: empty response from model")
	}
	return parseClassification(rawText, categories)
}

func buildClassifyPrompt(merchant string, categories []string) string {
	var b strings.Builder
	b.WriteString("You categorize merchants that appear on personal bank statements.\n\n")
	b.WriteString("Use ONLY one of the following categories:\n")
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nMerchant: " + merchant + "\n\n")
	b.WriteString("Return ONLY valid raw JSON of the form {\"category\": \"<category>\"}.\n")
	b.WriteString("Use {\"category\": \"\"} if none of the categories fit.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	return b.String()
}

// parseClassification extracts the category from a model reply and rejects
// categories outside the allowed list.
func parseClassification(raw string, categories []string) (string, error) {
	var reply struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &reply); err != nil {
		return "", fmt.Errorf("parseClassification: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	category := strings.TrimSpace(reply.Category)
	if category == "" {
		return "", nil
	}
	for _, c := range categories {
		if strings.EqualFold(c, category) {
			return c, nil
		}
	}
	return "", fmt.Errorf("parseClassification: unknown category %q", category)
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
