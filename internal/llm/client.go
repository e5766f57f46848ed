// Package llm holds the hosted language-model clients used for final
// synthesis. The pipeline depends only on SynthesisClient; the concrete
// provider is chosen from configuration.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
)

// ErrMissingCredential means the selected provider has no API key. It is
// surfaced at the synthesis step, never earlier, so evidence work already
// done is not thrown away by an eager credential check.
var ErrMissingCredential = errors.New("hosted llm credential missing")

// SynthesisClient turns source material plus instructions into a final
// report.
type SynthesisClient interface {
	// Synthesize produces the report. input is the evidence digest or the
	// raw chunk text, instructions the topic-specific prompt.
	Synthesize(ctx context.Context, input, instructions string) (string, error)

	// Name identifies the backing provider for logs.
	Name() string
}

// NewClient builds the configured provider's client. The API key may be
// empty; the missing credential is reported when Synthesize is called.
func NewClient(cfg config.AIConfig) (SynthesisClient, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "deepseek", "":
		return NewDeepSeekClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
