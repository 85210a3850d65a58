// Package jobs holds the provider independent job listing model.
package jobs

import (
	"context"
	"strings"
)

// Listing is a normalized job posting from an external source.
type Listing struct {
	ExternalID   string   `json:"externalId"`
	Title        string   `json:"title"`
	CompanyName  string   `json:"companyName"`
	LocationName string   `json:"locationName"`
	Description  string   `json:"description"`
	SalaryMin    *float64 `json:"salaryMin,omitempty"`
	ApplyURL     string   `json:"applyUrl"`
}

// HasDescription reports whether the listing carries text usable for ranking.
func (l Listing) HasDescription() bool {
	return strings.TrimSpace(l.Description) != ""
}

// Source fetches one page of current listings.
type Source interface {
	FetchJobs(ctx context.Context, resultsPerPage int) ([]Listing, error)
}

// Descriptions returns the descriptions of listings in order.
func Descriptions(listings []Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.Description
	}
	return out
}
