package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/insight/internal/jobs"
)

type missingDescriptionFilter struct {
	disabled bool
	reason   string
}

// NewMissingDescription creates a filter that removes listings with nothing to rank on.
func NewMissingDescription() Filter {
	return &missingDescriptionFilter{}
}

func (f *missingDescriptionFilter) Name() string { return "missing_description" }

func (f *missingDescriptionFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *missingDescriptionFilter) IsEnabled() bool { return !f.disabled }

func (f *missingDescriptionFilter) Validate(*Config) error { return nil }

func (f *missingDescriptionFilter) Apply(_ context.Context, deps Deps, listings []jobs.Listing) ([]jobs.Listing, Step, error) {
	initial := len(listings)
	kept, excluded := keep(listings, jobs.Listing.HasDescription)

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding listings without description",
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}

func (f *missingDescriptionFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: !f.disabled, Reason: f.reason}
}
