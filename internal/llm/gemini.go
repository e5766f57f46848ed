package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient synthesizes through Google's GenAI SDK.
type GeminiClient struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient builds a client. The SDK connection is established lazily
// on first use so a missing key surfaces as ErrMissingCredential at the
// synthesis step.
func NewGeminiClient(cfg config.AIConfig) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClient{apiKey: cfg.APIKey, model: model}
}

// Name implements SynthesisClient.
func (c *GeminiClient) Name() string { return "gemini" }

// Synthesize implements SynthesisClient.
func (c *GeminiClient) Synthesize(ctx context.Context, input, instructions string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini: %w", ErrMissingCredential)
	}
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(input, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
	}

	result, err := client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	logging.LLMDebug("gemini response: %d chars (model %s)", len(text), c.model)
	return text, nil
}

func (c *GeminiClient) connect(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.client = client
	return client, nil
}
