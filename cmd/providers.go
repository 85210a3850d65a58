package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/ai"
	"github.com/spigell/insight/internal/ai/gemini"
	"github.com/spigell/insight/internal/ai/huggingface"
	"github.com/spigell/insight/internal/cache"
	"github.com/spigell/insight/internal/database"
	"github.com/spigell/insight/internal/filtering"
	"github.com/spigell/insight/internal/jobs"
	"github.com/spigell/insight/internal/jobs/adzuna"
	"github.com/spigell/insight/internal/logger"
	"github.com/spigell/insight/internal/notify"
	"github.com/spigell/insight/internal/profile"
	"github.com/spigell/insight/internal/ranking"
	"github.com/spigell/insight/internal/recommend"
	"github.com/spigell/insight/internal/resume"
	"github.com/spigell/insight/internal/secrets"
	"github.com/spigell/insight/internal/storage"
	"github.com/spigell/insight/internal/telemetry"
)

// coreModule wires everything the recommendation and resume services need.
func coreModule(cfg *Config, log *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			newDatabase,
			newQueries,
			newCacheStore,
			newJobSource,
			newClassifier,
			newGenerator,
			newPublisher,
			newBlobStore,
			newRecommendService,
			newResumeService,
		),
		fx.Invoke(startTracing),
	)
}

func newDatabase(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (*sql.DB, error) {
	dsn, err := secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: cfg.Database.DSN,
		File:  cfg.Database.DSNFile,
		Env:   "DATABASE_URL",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set database.dsn, database.dsn-file or INSIGHT_DATABASE_DSN)", err)
	}

	db, err := database.Open(dsn, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				log.Warn("database is not reachable yet", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return db.Close()
		},
	})

	return db, nil
}

func newQueries(db *sql.DB) *database.Queries {
	return database.New(db)
}

func newCacheStore(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (*cache.Store, error) {
	var backend cache.Cache

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Cache.Provider)); provider {
	case cache.ProviderRedis:
		password, err := secrets.LoadOptional(secrets.Source{
			Name:  "redis password",
			Value: cfg.Cache.Redis.Password,
			File:  cfg.Cache.Redis.PasswordFile,
		})
		if err != nil {
			return nil, err
		}

		redis := cache.NewRedis(cache.Options{
			RedisAddr:     cfg.Cache.Redis.Addr,
			RedisPassword: password,
			RedisDB:       cfg.Cache.Redis.DB,
			DialTimeout:   cfg.Cache.Redis.DialTimeout,
		})
		backend = redis

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				// The service keeps answering without a cache.
				if err := redis.Ping(ctx); err != nil {
					log.Warn("redis is not reachable; requests will compute through", zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return redis.Close()
			},
		})
	case cache.ProviderMemory:
		backend = cache.NewMemory()
	case cache.ProviderNone, "":
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Cache.Provider)
	}

	return cache.NewStore(backend, logger.ForComponent(log, "cache"), cfg.Cache.OpTimeout), nil
}

func newJobSource(cfg *Config, log *zap.Logger) (jobs.Source, error) {
	appKey, err := secrets.Load(secrets.Source{
		Name:  "adzuna app key",
		Value: cfg.Jobs.Adzuna.AppKey,
		File:  cfg.Jobs.Adzuna.AppKeyFile,
		Env:   "ADZUNA_APP_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set jobs.adzuna.app-key-file or INSIGHT_JOBS_ADZUNA_APP_KEY)", err)
	}

	return adzuna.New(log, adzuna.Options{
		BaseURL: cfg.Jobs.Adzuna.BaseURL,
		Country: cfg.Jobs.Adzuna.Country,
		AppID:   firstNonEmpty(cfg.Jobs.Adzuna.AppID, os.Getenv("ADZUNA_APP_ID")),
		AppKey:  appKey,
		Timeout: cfg.Jobs.Adzuna.Timeout,
	}), nil
}

func newGeminiGenerator(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*gemini.Generator, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or INSIGHT_AI_GEMINI_API_KEY)", err)
	}

	return gemini.NewGenerator(ctx, log, gemini.Options{
		APIKey:       apiKey,
		Model:        cfg.Model,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		MaxLogLength: cfg.MaxLogLength,
	})
}

func newHuggingFace(cfg HuggingFaceConfig, model string, log *zap.Logger) (*huggingface.Client, error) {
	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "huggingface token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "HF_ACCESS_TOKEN",
	})
	if err != nil {
		return nil, err
	}

	return huggingface.New(log, huggingface.Options{
		BaseURL:    cfg.BaseURL,
		Token:      token,
		Model:      model,
		Timeout:    cfg.Timeout,
		MultiLabel: cfg.MultiLabel,
	}), nil
}

func newClassifier(cfg *Config, log *zap.Logger) (ai.Classifier, error) {
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Ranking.Provider)); provider {
	case ai.ProviderHuggingFace, "":
		client, err := newHuggingFace(cfg.AI.HuggingFace, cfg.AI.HuggingFace.ClassifierModel, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ai.ProviderGemini:
		generator, err := newGeminiGenerator(context.Background(), cfg.AI.Gemini, log)
		if err != nil {
			return nil, err
		}
		return gemini.NewScorer(generator, log, cfg.AI.Gemini.MaxLogLength), nil
	default:
		return nil, fmt.Errorf("unsupported ranking provider: %s", cfg.Ranking.Provider)
	}
}

func newGenerator(cfg *Config, log *zap.Logger) (ai.Generator, error) {
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Resume.Analysis.Provider)); provider {
	case ai.ProviderGemini, "":
		generator, err := newGeminiGenerator(context.Background(), cfg.AI.Gemini, log)
		if err != nil {
			return nil, err
		}
		return generator, nil
	case ai.ProviderHuggingFace:
		client, err := newHuggingFace(cfg.AI.HuggingFace, cfg.AI.HuggingFace.GeneratorModel, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", cfg.Resume.Analysis.Provider)
	}
}

func newPublisher(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (notify.Publisher, error) {
	var (
		publisher notify.Publisher
		err       error
	)

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Notify.Provider)); provider {
	case notify.ProviderNone, "":
		return notify.Noop{}, nil
	case notify.ProviderAMQP:
		publisher, err = notify.NewAMQP(cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Exchange, log)
	case notify.ProviderNATS:
		publisher, err = notify.NewNATS(cfg.Notify.NATS.URL, cfg.Notify.NATS.SubjectPrefix, log)
	default:
		return nil, fmt.Errorf("unsupported notify provider: %s", cfg.Notify.Provider)
	}
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

func newBlobStore(cfg *Config) (storage.Blob, error) {
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Storage.Provider)); provider {
	case storage.ProviderLocal, "":
		local, err := storage.NewLocal(cfg.Storage.Local.Root)
		if err != nil {
			return nil, err
		}
		return local, nil
	case storage.ProviderS3:
		secretKey, err := secrets.LoadOptional(secrets.Source{
			Name:  "s3 secret key",
			Value: cfg.Storage.S3.SecretKey,
			File:  cfg.Storage.S3.SecretKeyFile,
		})
		if err != nil {
			return nil, err
		}

		s3, err := storage.NewS3(context.Background(), storage.S3Options{
			Bucket:       cfg.Storage.S3.Bucket,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			AccessKey:    cfg.Storage.S3.AccessKey,
			SecretKey:    secretKey,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

// filterFactory returns fresh filtering steps with the configured ones disabled.
func filterFactory(disabled []string) func() []filtering.Filter {
	return func() []filtering.Filter {
		steps := filtering.Default()
		for _, name := range disabled {
			filtering.DisableByName(steps, name, "disabled in configuration")
		}
		return steps
	}
}

func newRecommendService(
	cfg *Config,
	log *zap.Logger,
	source jobs.Source,
	store *cache.Store,
	queries *database.Queries,
	classifier ai.Classifier,
	publisher notify.Publisher,
) *recommend.Service {
	filters := filterFactory(cfg.Filters.Disabled)
	for _, status := range filtering.Describe(filters()) {
		log.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return recommend.New(recommend.Deps{
		Source:    source,
		Cache:     store,
		Profiles:  profile.NewReader(queries),
		Ranker:    ranking.New(classifier, log),
		Filters:   filters,
		Publisher: publisher,
		Logger:    logger.ForComponent(log, "recommend"),
	}, recommend.Config{
		ResultsPerPage:     cfg.Jobs.ResultsPerPage,
		TopN:               cfg.Ranking.TopN,
		JobsTTL:            cfg.Cache.JobsTTL,
		RecommendationsTTL: cfg.Cache.RecommendationsTTL,
		Filters: filtering.Config{
			ExcludedCompanies: cfg.Filters.ExcludedCompanies,
		},
	})
}

func newResumeService(
	cfg *Config,
	log *zap.Logger,
	queries *database.Queries,
	blobs storage.Blob,
	generator ai.Generator,
	publisher notify.Publisher,
) (*resume.Service, error) {
	return resume.New(resume.Deps{
		Store:     queries,
		Blobs:     blobs,
		Generator: generator,
		Publisher: publisher,
		Logger:    log,
	}, resume.Config{
		MaxSize:         cfg.Resume.MaxSize,
		AllowedTypes:    cfg.Resume.AllowedTypes,
		MaxOutputTokens: cfg.Resume.Analysis.MaxOutputTokens,
		Temperature:     cfg.Resume.Analysis.Temperature,
		StaleAfter:      cfg.Resume.StaleAfter,
		SignedURLs:      cfg.Storage.SignedURLs,
		SignedURLTTL:    cfg.Storage.SignedURLTTL,
		MaxInputChars:   cfg.Resume.Analysis.MaxInputChars,
	})
}

func startTracing(lc fx.Lifecycle, cfg *Config, log *zap.Logger) {
	var shutdown func(context.Context) error

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, version, cfg.Telemetry.OTLPEndpoint)
			if err != nil {
				return fmt.Errorf("init tracer: %w", err)
			}
			if cfg.Telemetry.OTLPEndpoint != "" {
				log.Info("tracing enabled", zap.String("endpoint", cfg.Telemetry.OTLPEndpoint))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
