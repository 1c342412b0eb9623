package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/genai"

	"coldreach/config"
	"coldreach/models"
	"coldreach/outreach"
)

// Generator is the single text-generation capability every AI feature is
// built on. The provider is chosen once, at configuration time; callers
// never branch on provider names.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewGenerator builds the generator for the configured provider.
// "openai" and "custom" speak the OpenAI chat-completions protocol
// (custom meaning any compatible endpoint: Groq, a local model, ...);
// "google" uses the Gemini SDK.
func NewGenerator(cfg config.AIConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is not configured")
	}

	switch cfg.Provider {
	case "openai", "":
		return &openAIGenerator{
			apiKey:  cfg.APIKey,
			model:   defaultString(cfg.Model, "gpt-4o-mini"),
			baseURL: "https://api.openai.com/v1",
		}, nil
	case "custom":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("AI_BASE_URL is required for the custom provider")
		}
		return &openAIGenerator{
			apiKey:  cfg.APIKey,
			model:   cfg.Model,
			baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		}, nil
	case "google":
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create GenAI client: %w", err)
		}
		return &geminiGenerator{
			client: client,
			model:  defaultString(cfg.Model, "gemini-2.0-flash"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// openAIGenerator talks to an OpenAI-compatible chat completions endpoint.
type openAIGenerator struct {
	apiKey  string
	model   string
	baseURL string
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *openAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	payload := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   300,
		Temperature: 0.7,
	}

	agent := fiber.Post(g.baseURL + "/chat/completions")
	agent.Set(fiber.HeaderAuthorization, "Bearer "+g.apiKey)
	agent.JSON(payload)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("chat completion request failed: %v", errs[0])
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unexpected chat completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider error: %s", parsed.Error.Message)
	}
	if code != fiber.StatusOK || len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned status %d with no choices", code)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// geminiGenerator uses Google's Gemini API.
type geminiGenerator struct {
	client *genai.Client
	model  string
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini generation failed: %w", err)
	}
	return strings.TrimSpace(result.Text()), nil
}

// AIPersonalizer writes the one-line opener used by the
// {{personalization}} placeholder. It satisfies outreach.Personalizer.
type AIPersonalizer struct {
	Gen    Generator
	Logger *log.Logger
}

func NewAIPersonalizer(gen Generator, logger *log.Logger) *AIPersonalizer {
	return &AIPersonalizer{Gen: gen, Logger: logger}
}

func (p *AIPersonalizer) Personalize(ctx context.Context, contact *models.Contact) (string, error) {
	name := defaultString(contact.Name, "there")
	company := defaultString(contact.Company, "your company")

	prompt := fmt.Sprintf(`You are a B2B sales expert. Write a SINGLE sentence, personalized opening line for a cold email to %s at %s.

Context about them: %q

The line should be casual, specific to what they build, and compliment them.
Do NOT use "I hope you are doing well".
Do NOT mention "I saw on your website".
Just state the observation.`, name, company, contact.Notes)

	line, err := p.Gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.Trim(line, "\"\n "), nil
}

// AIClassifier reads a reply body and labels it. It satisfies
// outreach.Classifier and always returns something usable: any upstream
// failure or unparseable model output degrades to the neutral default.
type AIClassifier struct {
	Gen    Generator
	Logger *log.Logger
}

func NewAIClassifier(gen Generator, logger *log.Logger) *AIClassifier {
	return &AIClassifier{Gen: gen, Logger: logger}
}

func (c *AIClassifier) Classify(ctx context.Context, body string) outreach.ReplyAnalysis {
	prompt := fmt.Sprintf(`Classify this email reply to a cold outreach message. Respond with ONLY a JSON object, no other text:
{"intent": "Interested" | "Not Interested" | "OOO" | "Other", "sentiment": "Positive" | "Negative" | "Neutral", "summary": "<one sentence>"}

Reply:
%s`, body)

	text, err := c.Gen.Generate(ctx, prompt)
	if err != nil {
		c.Logger.Printf("reply classification failed, using default: %v", err)
		return outreach.DefaultReplyAnalysis()
	}

	analysis, ok := parseReplyAnalysis(text)
	if !ok {
		c.Logger.Printf("unparseable classifier output %q, using default", clip(text, 120))
		return outreach.DefaultReplyAnalysis()
	}
	return analysis
}

// parseReplyAnalysis extracts the JSON object from model output, which may
// arrive wrapped in code fences or prose.
func parseReplyAnalysis(text string) (outreach.ReplyAnalysis, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return outreach.ReplyAnalysis{}, false
	}

	var analysis outreach.ReplyAnalysis
	if err := json.Unmarshal([]byte(text[start:end+1]), &analysis); err != nil {
		return outreach.ReplyAnalysis{}, false
	}
	if analysis.Intent == "" {
		analysis.Intent = "Other"
	}
	if analysis.Sentiment == "" {
		analysis.Sentiment = "Neutral"
	}
	return analysis, true
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so a multi-byte character is never split.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// StaticClassifier labels every reply with the neutral default. Used when
// no AI provider is configured so reply detection still halts sequences.
type StaticClassifier struct{}

func (StaticClassifier) Classify(context.Context, string) outreach.ReplyAnalysis {
	return outreach.DefaultReplyAnalysis()
}

var (
	_ outreach.Personalizer = (*AIPersonalizer)(nil)
	_ outreach.Classifier   = (*AIClassifier)(nil)
	_ outreach.Classifier   = StaticClassifier{}
)
