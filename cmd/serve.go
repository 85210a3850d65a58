package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/cache"
	"github.com/spigell/insight/internal/httpapi"
	"github.com/spigell/insight/internal/recommend"
	"github.com/spigell/insight/internal/resume"
	"github.com/spigell/insight/internal/secrets"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "address to listen on (default is server.address)")

	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func serve() {
	logger, err := buildLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the insight api", zap.String("version", version))

	app := fx.New(
		coreModule(config, logger),
		fx.Provide(newHTTPServer),
		fx.Invoke(func(*httpapi.Server) {}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logger.Fatal("starting the application", zap.Error(err))
	}

	sig := <-app.Done()
	logger.Info("shutting down", zap.String("signal", sig.String()))

	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("stopping the application", zap.Error(err))
	}
}

func newHTTPServer(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *Config,
	log *zap.Logger,
	db *sql.DB,
	store *cache.Store,
	recommender *recommend.Service,
	resumes *resume.Service,
) (*httpapi.Server, error) {
	secret, err := secrets.Load(secrets.Source{
		Name:  "jwt secret",
		Value: cfg.Auth.JWTSecret,
		File:  cfg.Auth.JWTSecretFile,
		Env:   "JWT_SECRET",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set auth.jwt-secret-file or INSIGHT_AUTH_JWT_SECRET)", err)
	}

	server := httpapi.New(httpapi.Deps{
		Recommender: recommender,
		Resumes:     resumes,
		Checks: []httpapi.HealthCheck{
			{Name: "database", Ping: db.PingContext},
			{Name: "cache", Ping: store.Ping},
		},
		Logger: log,
	}, httpapi.Options{
		JWTSecret:    []byte(secret),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.Listen(cfg.Server.Address); err != nil {
					log.Error("http server stopped", zap.Error(err))
					if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
						log.Error("requesting shutdown", zap.Error(err))
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})

	return server, nil
}
