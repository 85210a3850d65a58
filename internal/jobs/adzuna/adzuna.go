package adzuna

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL         = "https://api.adzuna.com/v1/api/jobs"
	defaultCountry = "au"
	userAgent      = "spigell/insight"
	contentType    = "application/json"
)

type Options struct {
	BaseURL string
	Country string
	AppID   string
	AppKey  string
	Timeout time.Duration
}

type Client struct {
	appID      string
	appKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	Country    string
}

func New(logger *zap.Logger, opts Options) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := opts.BaseURL
	if base == "" {
		base = apiURL
	}

	country := opts.Country
	if country == "" {
		country = defaultCountry
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		appID:  opts.AppID,
		appKey: opts.AppKey,
		logger: logger,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
		APIURL:    base,
		Country:   country,
	}
}
