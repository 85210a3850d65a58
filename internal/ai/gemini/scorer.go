package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/insight/internal/ai"
	"github.com/spigell/insight/internal/logger"
)

//go:embed scoring_prompt.md
var scoringTemplate string

// Scorer implements ai.Classifier on top of a text generator by asking the model
// for one relevance score per candidate.
type Scorer struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator ai.Generator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		logger:    logger.ForModel(log, ai.ProviderGemini, generator.Model()),
		maxLogLen: maxLogLength,
	}
}

func (s *Scorer) Classify(ctx context.Context, premise string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}

	candidatesJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	prompt := buildPrompt(premise, string(candidatesJSON), len(candidates))

	raw, err := s.generator.Generate(ctx, prompt, ai.GenerationOptions{})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini scoring response",
		zap.Int("candidates", len(candidates)),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	scores, err := parseScores(raw)
	if err != nil {
		return nil, err
	}

	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("gemini returned %d scores for %d candidates", len(scores), len(candidates))
	}

	return scores, nil
}

func buildPrompt(premise, candidatesJSON string, count int) string {
	template := scoringTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE}}\n\nJobs:\n{{CANDIDATES_JSON}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{PROFILE}}", premise)
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATES_JSON}}", candidatesJSON)
	prompt = strings.ReplaceAll(prompt, "{{COUNT}}", strconv.Itoa(count))
	return prompt
}

func parseScores(raw string) ([]float64, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	list, ok := data["scores"].([]any)
	if !ok {
		return nil, fmt.Errorf("parse gemini response: missing scores array")
	}

	scores := make([]float64, len(list))
	for i, v := range list {
		scores[i] = coerceFloat(v)
	}

	return scores, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
