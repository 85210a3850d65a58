// Package httpapi exposes the recommendation and resume services over HTTP.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/jobs"
	"github.com/spigell/insight/internal/logger"
	"github.com/spigell/insight/internal/recommend"
	"github.com/spigell/insight/internal/resume"
)

const (
	DefaultAddress     = ":5000"
	DefaultReadTimeout = 30 * time.Second
	// multipart framing on top of the body limit
	bodyLimitOverhead = 1 << 20
)

type Recommender interface {
	GetRecommendations(ctx context.Context, userID uuid.UUID) (*recommend.Result, error)
	ListJobs(ctx context.Context) ([]jobs.Listing, error)
}

type Resumes interface {
	Upload(ctx context.Context, in resume.UploadInput) (uuid.UUID, error)
	Analyse(ctx context.Context, userID, uploadID uuid.UUID) (*resume.Analysis, error)
	RetrieveFile(ctx context.Context, userID, uploadID uuid.UUID) (*resume.File, error)
	List(ctx context.Context, userID uuid.UUID) ([]resume.Upload, error)
	MaxSize() int64
}

// HealthCheck is reported by /healthz. A failing check does not fail the probe.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Options struct {
	JWTSecret    []byte
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Deps struct {
	Recommender Recommender
	Resumes     Resumes
	Checks      []HealthCheck
	Logger      *zap.Logger
}

type Server struct {
	app         *fiber.App
	recommender Recommender
	resumes     Resumes
	checks      []HealthCheck
	logger      *zap.Logger
}

func New(deps Deps, opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	s := &Server{
		recommender: deps.Recommender,
		resumes:     deps.Resumes,
		checks:      deps.Checks,
		logger:      logger.ForComponent(deps.Logger, "http"),
	}

	// Oversized uploads must still reach validation to get a 400 instead of a 413.
	maxSize := int64(resume.DefaultMaxSize)
	if deps.Resumes != nil {
		maxSize = deps.Resumes.MaxSize()
	}
	bodyLimit := int(2*maxSize) + bodyLimitOverhead

	s.app = fiber.New(fiber.Config{
		AppName:               "insight",
		BodyLimit:             bodyLimit,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.routes(opts.JWTSecret)

	return s
}

func (s *Server) routes(secret []byte) {
	s.app.Use(s.requestLogger)

	s.app.Get("/healthz", s.health)

	api := s.app.Group("/api")
	api.Get("/jobs", s.listJobs)

	auth := RequireUser(secret)
	api.Get("/recommendations", auth, s.recommendations)
	api.Post("/resume/upload", auth, s.uploadResume)
	api.Get("/resume", auth, s.listResumes)
	api.Get("/resume/analysis/:id", auth, s.resumeAnalysis)
	api.Get("/resume/file/:id", auth, s.resumeFile)
}

// App exposes the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(address string) error {
	if address == "" {
		address = DefaultAddress
	}
	s.logger.Info("http server listening", zap.String("address", address))
	return s.app.Listen(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		// The error handler runs after this middleware returns.
		status = statusOf(err)
	}

	s.logger.Debug("http request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
	)

	return err
}
