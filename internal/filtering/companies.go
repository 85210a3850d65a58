package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/insight/internal/jobs"
)

type excludedCompaniesFilter struct {
	disabled  bool
	reason    string
	companies map[string]struct{}
	names     []string
}

// NewExcludedCompanies creates a filter that removes listings by companies configured in the config.
// Company names are compared case-insensitively.
func NewExcludedCompanies() Filter {
	return &excludedCompaniesFilter{}
}

func (f *excludedCompaniesFilter) Name() string { return "excluded_companies" }

func (f *excludedCompaniesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludedCompaniesFilter) IsEnabled() bool { return !f.disabled }

func (f *excludedCompaniesFilter) Validate(cfg *Config) error {
	f.companies = make(map[string]struct{})
	f.names = nil
	if cfg == nil {
		return nil
	}

	for _, name := range cfg.ExcludedCompanies {
		key := normalizeCompany(name)
		if key == "" {
			continue
		}
		f.companies[key] = struct{}{}
		f.names = append(f.names, strings.TrimSpace(name))
	}
	return nil
}

func (f *excludedCompaniesFilter) Apply(_ context.Context, deps Deps, listings []jobs.Listing) ([]jobs.Listing, Step, error) {
	initial := len(listings)
	if len(f.companies) == 0 {
		return listings, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept, excluded := keep(listings, func(l jobs.Listing) bool {
		_, blocked := f.companies[normalizeCompany(l.CompanyName)]
		return !blocked
	})

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding listings by companies",
			zap.Strings("excluded_companies", f.names),
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}

func (f *excludedCompaniesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["companies"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: !f.disabled, Reason: f.reason, Details: details}
}

func normalizeCompany(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
