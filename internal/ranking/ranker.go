package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/insight/internal/ai"
	apperrors "github.com/spigell/insight/internal/errors"
	"github.com/spigell/insight/internal/telemetry"
)

const DefaultTopN = 3

var tracer = telemetry.GetTracer("insight/ranking")

// Ranker orders job descriptions by relevance to a profile.
type Ranker struct {
	classifier ai.Classifier
	logger     *zap.Logger
}

func New(classifier ai.Classifier, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ranker{classifier: classifier, logger: logger}
}

// Rank returns the indices of the topN most relevant descriptions, best first.
// Equal scores keep their input order and NaN scores rank last. The result never
// holds duplicates and its length is min(topN, len(descriptions)).
func (r *Ranker) Rank(ctx context.Context, profileText string, descriptions []string, topN int) ([]int, error) {
	if len(descriptions) == 0 || topN <= 0 {
		return []int{}, nil
	}

	ctx, span := tracer.Start(ctx, "Rank")
	defer span.End()

	span.SetAttributes(
		telemetry.Int("ranking.candidates", len(descriptions)),
		telemetry.Int("ranking.top_n", topN),
	)

	scores, err := r.classifier.Classify(ctx, profileText, descriptions)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, apperrors.Unavailable("classifier request failed", err)
	}

	if len(scores) != len(descriptions) {
		err := fmt.Errorf("classifier returned %d scores for %d descriptions", len(scores), len(descriptions))
		telemetry.RecordError(span, err)
		return nil, apperrors.Unavailable("classifier returned malformed scores", err)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return higher(scores[order[a]], scores[order[b]])
	})

	if topN > len(order) {
		topN = len(order)
	}

	r.logger.Debug("ranked descriptions",
		zap.Int("candidates", len(descriptions)),
		zap.Int("selected", topN),
		zap.Float64("best_score", scores[order[0]]),
	)

	return order[:topN], nil
}

func higher(a, b float64) bool {
	switch {
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	default:
		return a > b
	}
}
