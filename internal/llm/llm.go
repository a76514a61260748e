// Package llm adapts text-generation endpoints to a single streaming contract.
package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrMissingCredential is returned by constructors when no API key is configured.
var ErrMissingCredential = errors.New("llm: api credential missing")

// Generator streams the answer to a prompt as text fragments.
// The sequence is finite and can be ranged over once.
type Generator interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
	Name() string
}

const roastTemplate = `Roast this bug in 1–2 funny sentences with 1–2 emojis only. 
Bug: "%s"`

// RoastPrompt embeds a bug description into the fixed roast instruction.
func RoastPrompt(description string) string {
	return fmt.Sprintf(roastTemplate, description)
}

// Collect drains a stream into one string. Any stream error aborts and discards what was read.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for frag, err := range seq {
		if err != nil {
			return "", err
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Options struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	OpenAIURL    string
}

// New builds the generator for opts.Provider.
func New(ctx context.Context, opts Options) (Generator, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderGemini:
		g, err := NewGemini(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOpenAI:
		o, err := NewOpenAI(opts.OpenAIAPIKey, opts.OpenAIModel, opts.OpenAIURL)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}
}
