// Package ai defines the model capabilities the rest of the service depends on.
// Concrete providers live in subpackages.
package ai

import (
	"context"
	"errors"
)

const (
	ProviderGemini      = "gemini"
	ProviderHuggingFace = "huggingface"
)

var ErrEmptyResponse = errors.New("model returned empty response")

// Classifier scores each candidate label against a premise.
// The result has one score per candidate, in candidate order.
type Classifier interface {
	Classify(ctx context.Context, premise string, candidates []string) ([]float64, error)
}

type GenerationOptions struct {
	MaxOutputTokens int
	Temperature     float64
}

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
	Model() string
}
