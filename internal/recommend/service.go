package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/cache"
	"github.com/spigell/insight/internal/filtering"
	"github.com/spigell/insight/internal/jobs"
	"github.com/spigell/insight/internal/notify"
	"github.com/spigell/insight/internal/profile"
	"github.com/spigell/insight/internal/telemetry"
)

const (
	RawJobsKey = "raw-jobs"

	DefaultResultsPerPage = 10
	DefaultTopN           = 3
	DefaultTTL            = time.Hour
)

var tracer = telemetry.GetTracer("insight/recommend")

// RecommendationsKey is the per-user cache key for computed results.
func RecommendationsKey(userID uuid.UUID) string {
	return fmt.Sprintf("recommendations:%s", userID)
}

type Result struct {
	UserName        string         `json:"userName"`
	RecommendedJobs []jobs.Listing `json:"recommendedJobs"`
}

type Config struct {
	ResultsPerPage     int
	TopN               int
	JobsTTL            time.Duration
	RecommendationsTTL time.Duration
	Filters            filtering.Config
}

type profileReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*profile.Profile, error)
}

type ranker interface {
	Rank(ctx context.Context, profileText string, descriptions []string, topN int) ([]int, error)
}

type Deps struct {
	Source   jobs.Source
	Cache    *cache.Store
	Profiles profileReader
	Ranker   ranker
	// Filters builds the filtering steps for one computation. Steps keep
	// per-run state, so every call must return fresh instances.
	Filters   func() []filtering.Filter
	Publisher notify.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

type Service struct {
	source    jobs.Source
	cache     *cache.Store
	profiles  profileReader
	ranker    ranker
	filters   func() []filtering.Filter
	publisher notify.Publisher
	logger    *zap.Logger
	now       func() time.Time
	cfg       Config
}

func New(deps Deps, cfg Config) *Service {
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = DefaultResultsPerPage
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.JobsTTL <= 0 {
		cfg.JobsTTL = DefaultTTL
	}
	if cfg.RecommendationsTTL <= 0 {
		cfg.RecommendationsTTL = DefaultTTL
	}

	s := &Service{
		source:    deps.Source,
		cache:     deps.Cache,
		profiles:  deps.Profiles,
		ranker:    deps.Ranker,
		filters:   deps.Filters,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       deps.Now,
		cfg:       cfg,
	}

	if s.filters == nil {
		s.filters = filtering.Default
	}
	if s.publisher == nil {
		s.publisher = notify.Noop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// GetRecommendations returns the top ranked listings for the user. A cached result
// short-circuits all downstream work. Nothing is cached when any step fails.
func (s *Service) GetRecommendations(ctx context.Context, userID uuid.UUID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "GetRecommendations")
	defer span.End()

	key := RecommendationsKey(userID)
	logger := s.logger.With(zap.String("user_id", userID.String()))

	var cached Result
	if found, _ := s.cache.TryGet(ctx, key, &cached); found {
		span.SetAttributes(telemetry.Bool("cache.hit", true))
		logger.Debug("recommendations served from cache")
		return &cached, nil
	}
	span.SetAttributes(telemetry.Bool("cache.hit", false))

	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	listings, err := s.ListJobs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	candidates, err := filtering.Run(ctx, &s.cfg.Filters, filtering.Deps{Logger: logger}, s.filters(), listings)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	indices, err := s.ranker.Rank(ctx, p.Text(), jobs.Descriptions(candidates), s.cfg.TopN)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &Result{
		UserName:        p.Name,
		RecommendedJobs: make([]jobs.Listing, 0, len(indices)),
	}
	for _, idx := range indices {
		result.RecommendedJobs = append(result.RecommendedJobs, candidates[idx])
	}

	if !s.cache.TrySet(ctx, key, result, s.cfg.RecommendationsTTL) {
		logger.Debug("recommendations not cached; cache unavailable")
	}

	logger.Info("recommendations computed",
		zap.Int("available_jobs", len(listings)),
		zap.Int("candidates", len(candidates)),
		zap.Int("recommended", len(result.RecommendedJobs)),
		zap.Bool("empty_profile", p.Summary.IsEmpty()),
	)

	event := notify.Event{
		Type:      notify.EventRecommendationsComputed,
		UserID:    userID.String(),
		Timestamp: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, notify.RecommendationsKey(userID.String()), event); err != nil {
		logger.Warn("publishing recommendations event failed", zap.Error(err))
	}

	return result, nil
}

// ListJobs returns the current listings, preferring the shared cache entry.
func (s *Service) ListJobs(ctx context.Context) ([]jobs.Listing, error) {
	var listings []jobs.Listing
	if found, _ := s.cache.TryGet(ctx, RawJobsKey, &listings); found {
		return listings, nil
	}

	listings, err := s.source.FetchJobs(ctx, s.cfg.ResultsPerPage)
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []jobs.Listing{}
	}

	s.cache.TrySet(ctx, RawJobsKey, listings, s.cfg.JobsTTL)

	return listings, nil
}
