// Package huggingface talks to the Hugging Face Inference API for zero-shot
// classification and text generation.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/insight/internal/ai"
	"github.com/spigell/insight/internal/logger"
)

const (
	apiURL         = "https://router.huggingface.co/hf-inference/models/"
	contentType    = "application/json"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512

	DefaultClassifierModel = "typeform/distilbert-base-uncased-mnli"
	DefaultGeneratorModel  = "google/flan-t5-base"
)

type Options struct {
	BaseURL string
	Token   string
	Model   string
	Timeout time.Duration
	// MultiLabel scores every candidate on its own instead of a softmax
	// across all candidates.
	MultiLabel bool
}

type Client struct {
	token      string
	model      string
	multiLabel bool
	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
}

func New(log *zap.Logger, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = apiURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		token:      strings.TrimSpace(opts.Token),
		model:      strings.TrimSpace(opts.Model),
		multiLabel: opts.MultiLabel,
		logger:     logger.ForModel(log, ai.ProviderHuggingFace, opts.Model),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		APIURL: base,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) post(ctx context.Context, payload any, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.APIURL, "/") + "/" + c.model

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}

	c.logger.Debug("make request", zap.String("url", url), zap.Int("body_length", len(body)))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s: %s", resp.Status, logger.TruncateForLog(string(data), maxErrorBody))
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
