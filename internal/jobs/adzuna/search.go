package adzuna

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	apperrors "github.com/spigell/insight/internal/errors"
	"github.com/spigell/insight/internal/jobs"
	"github.com/spigell/insight/internal/telemetry"
)

//go:embed schema.json
var responseSchema string

var (
	tracer       = telemetry.GetTracer("insight/jobs/adzuna")
	schemaLoader = gojsonschema.NewStringLoader(responseSchema)
)

type result struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	RedirectURL string   `json:"redirect_url"`
	SalaryMin   *float64 `json:"salary_min"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

func (r result) listing() jobs.Listing {
	return jobs.Listing{
		ExternalID:   r.ID,
		Title:        strings.TrimSpace(r.Title),
		CompanyName:  strings.TrimSpace(r.Company.DisplayName),
		LocationName: strings.TrimSpace(r.Location.DisplayName),
		Description:  r.Description,
		SalaryMin:    r.SalaryMin,
		ApplyURL:     r.RedirectURL,
	}
}

// FetchJobs requests the first page of listings. Any transport failure, non-200 status
// or malformed body is reported as an upstream failure.
func (c *Client) FetchJobs(ctx context.Context, resultsPerPage int) ([]jobs.Listing, error) {
	ctx, span := tracer.Start(ctx, "FetchJobs")
	defer span.End()

	span.SetAttributes(telemetry.Int("adzuna.results_per_page", resultsPerPage))

	listings, err := c.fetch(ctx, resultsPerPage)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, apperrors.Unavailable("job source request failed", err)
	}

	span.SetAttributes(telemetry.Int("adzuna.results", len(listings)))
	return listings, nil
}

func (c *Client) fetch(ctx context.Context, resultsPerPage int) ([]jobs.Listing, error) {
	endpoint := fmt.Sprintf("%s/%s/search/1", strings.TrimRight(c.APIURL, "/"), c.Country)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("User-Agent", c.UserAgent)
	req.URL.RawQuery = c.buildParams(resultsPerPage).Encode()

	c.logger.Debug("make request", zap.String("url", endpoint), zap.Int("results per page", resultsPerPage))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	items, err := parseResults(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []result
	cfg := &mapstructure.DecoderConfig{
		Result:           &results,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}

	listings := make([]jobs.Listing, 0, len(results))
	for _, r := range results {
		listings = append(listings, r.listing())
	}

	c.logger.Debug("got response from Adzuna", zap.Int("results", len(listings)))

	return listings, nil
}

// parseResults decodes the body generically and checks it against the response schema.
func parseResults(body io.Reader) ([]interface{}, error) {
	var document map[string]interface{}
	decoder := json.NewDecoder(body)
	decoder.UseNumber()
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validating response: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("unexpected response shape: %s", strings.Join(msgs, "; "))
	}

	items, _ := document["results"].([]interface{})
	return items, nil
}

func (c *Client) buildParams(resultsPerPage int) url.Values {
	q := url.Values{}
	q.Set("app_id", c.appID)
	q.Set("app_key", c.appKey)
	if resultsPerPage > 0 {
		q.Set("results_per_page", strconv.Itoa(resultsPerPage))
	}
	q.Set("content-type", contentType)

	return q
}
