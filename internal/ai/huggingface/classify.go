package huggingface

import (
	"context"
	"fmt"
)

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classify runs zero-shot classification with the profile as the premise and the
// candidates as labels. The API returns labels sorted by score; they are mapped back
// to candidate positions so the result is parallel to candidates.
func (c *Client) Classify(ctx context.Context, premise string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}

	payload := zeroShotRequest{
		Inputs: premise,
		Parameters: zeroShotParameters{
			CandidateLabels: candidates,
			MultiLabel:      c.multiLabel,
		},
	}

	var resp zeroShotResponse
	if err := c.post(ctx, payload, &resp); err != nil {
		return nil, fmt.Errorf("zero-shot classification: %w", err)
	}

	return alignScores(candidates, resp)
}

func alignScores(candidates []string, resp zeroShotResponse) ([]float64, error) {
	if len(resp.Labels) != len(resp.Scores) {
		return nil, fmt.Errorf("zero-shot classification: %d labels with %d scores", len(resp.Labels), len(resp.Scores))
	}
	if len(resp.Labels) != len(candidates) {
		return nil, fmt.Errorf("zero-shot classification: %d scores for %d candidates", len(resp.Labels), len(candidates))
	}

	// Identical descriptions share a label; consume their positions in order.
	positions := make(map[string][]int, len(candidates))
	for i, label := range candidates {
		positions[label] = append(positions[label], i)
	}

	scores := make([]float64, len(candidates))
	for i, label := range resp.Labels {
		queue := positions[label]
		if len(queue) == 0 {
			return nil, fmt.Errorf("zero-shot classification: unexpected label at position %d", i)
		}
		scores[queue[0]] = resp.Scores[i]
		positions[label] = queue[1:]
	}

	return scores, nil
}
