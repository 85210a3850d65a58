package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/insight/internal/jobs"
)

type duplicatesFilter struct {
	disabled bool
	reason   string
}

// NewDuplicates creates a filter that keeps the first listing for every external id.
// Listings without an id are always kept.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *duplicatesFilter) IsEnabled() bool { return !f.disabled }

func (f *duplicatesFilter) Validate(*Config) error { return nil }

func (f *duplicatesFilter) Apply(_ context.Context, deps Deps, listings []jobs.Listing) ([]jobs.Listing, Step, error) {
	initial := len(listings)
	seen := make(map[string]struct{}, len(listings))

	kept, excluded := keep(listings, func(l jobs.Listing) bool {
		if l.ExternalID == "" {
			return true
		}
		if _, ok := seen[l.ExternalID]; ok {
			return false
		}
		seen[l.ExternalID] = struct{}{}
		return true
	})

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding duplicate listings",
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}

func (f *duplicatesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: !f.disabled, Reason: f.reason}
}
