package huggingface

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/insight/internal/ai"
)

type generationRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
}

type generationParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

type generationResult struct {
	GeneratedText string `json:"generated_text"`
}

// Generate runs text generation and returns the first generated sequence.
func (c *Client) Generate(ctx context.Context, prompt string, opts ai.GenerationOptions) (string, error) {
	params := generationParameters{MaxNewTokens: opts.MaxOutputTokens}
	if opts.Temperature > 0 {
		t := opts.Temperature
		params.Temperature = &t
	}

	var results []generationResult
	if err := c.post(ctx, generationRequest{Inputs: prompt, Parameters: params}, &results); err != nil {
		return "", fmt.Errorf("text generation: %w", err)
	}

	if len(results) == 0 {
		return "", ai.ErrEmptyResponse
	}

	output := strings.TrimSpace(results[0].GeneratedText)
	if output == "" {
		return "", ai.ErrEmptyResponse
	}

	c.logger.Debug("text generation response", zap.Int("response_length", utf8.RuneCountInString(output)))

	return output, nil
}
