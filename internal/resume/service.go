package resume

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/insight/internal/ai"
	"github.com/spigell/insight/internal/database"
	apperrors "github.com/spigell/insight/internal/errors"
	"github.com/spigell/insight/internal/logger"
	"github.com/spigell/insight/internal/notify"
	"github.com/spigell/insight/internal/storage"
	"github.com/spigell/insight/internal/telemetry"
)

const (
	DefaultMaxOutputTokens = 500
	DefaultTemperature     = 0.3
	DefaultStaleAfter      = 10 * time.Minute
	DefaultSignedURLTTL    = 15 * time.Minute
	DefaultMaxInputChars   = 20000

	failureWriteTimeout = 5 * time.Second
)

var tracer = telemetry.GetTracer("insight/resume")

// Store is the persistence the pipeline needs. *database.Queries satisfies it.
type Store interface {
	CreateResumeUpload(ctx context.Context, arg database.CreateResumeUploadParams) (database.ResumeUpload, error)
	GetResumeUpload(ctx context.Context, arg database.GetResumeUploadParams) (database.ResumeUpload, error)
	ClaimResumeUpload(ctx context.Context, arg database.ClaimResumeUploadParams) (database.ResumeUpload, error)
	CompleteResumeUpload(ctx context.Context, arg database.CompleteResumeUploadParams) (int64, error)
	FailResumeUpload(ctx context.Context, arg database.FailResumeUploadParams) (int64, error)
	ListResumeUploadsByUser(ctx context.Context, userID uuid.UUID) ([]database.ResumeUpload, error)
}

type Config struct {
	MaxSize         int64
	AllowedTypes    []string
	MaxOutputTokens int
	Temperature     float64
	// StaleAfter is how long an in_progress claim blocks other workers.
	StaleAfter    time.Duration
	SignedURLs    bool
	SignedURLTTL  time.Duration
	MaxInputChars int
}

type Deps struct {
	Store     Store
	Blobs     storage.Blob
	Generator ai.Generator
	Publisher notify.Publisher
	Logger    *zap.Logger
	Now       func() time.Time
}

type Service struct {
	store     Store
	blobs     storage.Blob
	generator ai.Generator
	publisher notify.Publisher
	logger    *zap.Logger
	now       func() time.Time
	cfg       Config
}

func New(deps Deps, cfg Config) (*Service, error) {
	allowed, err := NormalizeAllowedTypes(cfg.AllowedTypes)
	if err != nil {
		return nil, err
	}
	cfg.AllowedTypes = allowed

	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = DefaultSignedURLTTL
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = DefaultMaxInputChars
	}

	s := &Service{
		store:     deps.Store,
		blobs:     deps.Blobs,
		generator: deps.Generator,
		publisher: deps.Publisher,
		logger:    logger.ForComponent(deps.Logger, "resume"),
		now:       deps.Now,
		cfg:       cfg,
	}
	if s.publisher == nil {
		s.publisher = notify.Noop{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s, nil
}

// MaxSize is the effective upload ceiling in bytes.
func (s *Service) MaxSize() int64 {
	return s.cfg.MaxSize
}

// Upload validates and stores a resume and records it as pending.
func (s *Service) Upload(ctx context.Context, in UploadInput) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "Upload")
	defer span.End()

	mimeType, err := validateUpload(in, s.cfg.AllowedTypes, s.cfg.MaxSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return uuid.Nil, apperrors.InvalidInput(err.Error(), err)
	}

	name := safeName(in.FileName)
	key := fmt.Sprintf("resumes/%s/%d-%s", in.UserID, s.now().UnixMilli(), name)

	locator, err := s.blobs.Put(ctx, key, in.Data, mimeType)
	if err != nil {
		telemetry.RecordError(span, err)
		return uuid.Nil, apperrors.Storage("storing resume failed", err)
	}

	row, err := s.store.CreateResumeUpload(ctx, database.CreateResumeUploadParams{
		UserID:           in.UserID,
		Filename:         name,
		OriginalFilename: in.FileName,
		Mime:             mimeType,
		SizeBytes:        int64(len(in.Data)),
		StorageProvider:  s.blobs.Provider(),
		ObjectKey:        locator,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
		defer cancel()
		if delErr := s.blobs.Delete(cleanupCtx, locator); delErr != nil {
			s.logger.Warn("removing orphaned resume blob failed", zap.String("object_key", locator), zap.Error(delErr))
		}
		return uuid.Nil, apperrors.Storage("recording resume failed", err)
	}

	span.SetAttributes(telemetry.String("upload.id", row.ID.String()), telemetry.Int("upload.size", len(in.Data)))
	s.logger.Info("resume uploaded",
		zap.String("upload_id", row.ID.String()),
		zap.String("user_id", in.UserID.String()),
		zap.String("mime", mimeType),
		zap.Int("size_bytes", len(in.Data)),
	)
	s.publishStatus(ctx, row.UserID, row.ID, StatusPending, "")

	return row.ID, nil
}

// Analyse returns the analysis of an upload owned by userID, running the
// model when none is stored yet. Concurrent callers get a Conflict while one
// analysis is in progress.
func (s *Service) Analyse(ctx context.Context, userID, uploadID uuid.UUID) (*Analysis, error) {
	ctx, span := tracer.Start(ctx, "Analyse")
	defer span.End()
	span.SetAttributes(telemetry.String("upload.id", uploadID.String()))

	log := s.logger.With(zap.String("upload_id", uploadID.String()), zap.String("user_id", userID.String()))

	row, err := s.get(ctx, userID, uploadID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if Status(row.Status) == StatusCompleted {
		analysis, err := decodeAnalysis(row.Analysis)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		span.SetAttributes(telemetry.Bool("analysis.stored", true))
		return analysis, nil
	}

	row, err = s.store.ClaimResumeUpload(ctx, database.ClaimResumeUploadParams{
		ID:         uploadID,
		UserID:     userID,
		StaleAfter: s.now().Add(-s.cfg.StaleAfter),
	})
	if errors.Is(err, sql.ErrNoRows) {
		err = apperrors.Conflict("analysis already in progress", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, apperrors.Storage("claiming upload failed", err)
	}
	s.publishStatus(ctx, userID, uploadID, StatusInProgress, "")

	analysis, err := s.runAnalysis(ctx, row)
	if errors.Is(err, errClaimLost) {
		telemetry.RecordError(span, err)
		log.Warn("analysis claim was taken over; result discarded")
		return nil, err
	}
	if err != nil {
		telemetry.RecordError(span, err)
		s.markFailed(ctx, log, row, err)
		return nil, err
	}

	log.Info("resume analysed", zap.Int("analysis_chars", len(analysis.Content)))
	s.publishStatus(ctx, userID, uploadID, StatusCompleted, "")

	return analysis, nil
}

func (s *Service) runAnalysis(ctx context.Context, row database.ResumeUpload) (*Analysis, error) {
	data, err := s.blobs.Get(ctx, row.ObjectKey)
	if err != nil {
		return nil, apperrors.Storage("reading resume failed", err)
	}

	text, err := ExtractText(row.Filename, row.Mime, data)
	if err != nil {
		return nil, apperrors.InvalidInput("could not extract text from resume", fmt.Errorf("%w: %w", ErrExtractionFailed, err))
	}

	prompt := BuildPrompt(text, s.cfg.MaxInputChars)
	raw, err := s.generator.Generate(ctx, prompt, ai.GenerationOptions{
		MaxOutputTokens: s.cfg.MaxOutputTokens,
		Temperature:     s.cfg.Temperature,
	})
	if err != nil {
		return nil, apperrors.Unavailable("analysis model unavailable", fmt.Errorf("%w: %w", ErrModelUnavailable, err))
	}

	content := cleanOutput(raw, prompt)
	if content == "" {
		return nil, apperrors.Unavailable("analysis model unavailable", fmt.Errorf("%w: %w", ErrModelUnavailable, ai.ErrEmptyResponse))
	}

	analysis := &Analysis{Content: content, Timestamp: s.now().UTC()}
	encoded, err := json.Marshal(analysis)
	if err != nil {
		return nil, apperrors.Internal("encoding analysis failed", err)
	}

	saved, err := s.store.CompleteResumeUpload(ctx, database.CompleteResumeUploadParams{
		ID:        row.ID,
		ClaimedAt: row.UpdatedAt,
		Analysis:  encoded,
	})
	if err != nil {
		return nil, apperrors.Storage("saving analysis failed", err)
	}
	if saved == 0 {
		return nil, apperrors.Conflict("analysis already in progress", errClaimLost)
	}

	return analysis, nil
}

func (s *Service) markFailed(ctx context.Context, log *zap.Logger, row database.ResumeUpload, cause error) {
	// The caller may already be gone; the failed status must still land.
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	marked, err := s.store.FailResumeUpload(failCtx, database.FailResumeUploadParams{ID: row.ID, ClaimedAt: row.UpdatedAt})
	switch {
	case err != nil:
		log.Error("marking upload failed did not persist", zap.Error(err))
	case marked == 0:
		log.Warn("upload claim was taken over; failed status not written")
	}
	log.Warn("resume analysis failed", zap.String("error_type", string(apperrors.TypeOf(cause))), zap.Error(cause))
	s.publishStatus(failCtx, row.UserID, row.ID, StatusFailed, apperrors.MessageOf(cause))
}

// RetrieveFile returns the stored document, or a signed URL for it when enabled
// and supported by the blob provider.
func (s *Service) RetrieveFile(ctx context.Context, userID, uploadID uuid.UUID) (*File, error) {
	ctx, span := tracer.Start(ctx, "RetrieveFile")
	defer span.End()

	row, err := s.get(ctx, userID, uploadID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	file := &File{Name: row.OriginalFilename, MimeType: row.Mime}

	if s.cfg.SignedURLs {
		url, err := s.blobs.SignedURL(ctx, row.ObjectKey, s.cfg.SignedURLTTL)
		switch {
		case err == nil:
			file.URL = url
			return file, nil
		case errors.Is(err, storage.ErrSignedURLUnsupported):
		default:
			s.logger.Warn("signing resume url failed; serving bytes", zap.String("upload_id", uploadID.String()), zap.Error(err))
		}
	}

	data, err := s.blobs.Get(ctx, row.ObjectKey)
	if errors.Is(err, storage.ErrNotFound) {
		err = apperrors.NotFound("resume file not found", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, apperrors.Storage("reading resume failed", err)
	}
	file.Data = data

	return file, nil
}

// List returns the uploads of a user, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Upload, error) {
	rows, err := s.store.ListResumeUploadsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Storage("listing uploads failed", err)
	}

	uploads := make([]Upload, 0, len(rows))
	for _, row := range rows {
		uploads = append(uploads, Upload{
			ID:        row.ID,
			FileName:  row.OriginalFilename,
			MimeType:  row.Mime,
			SizeBytes: row.SizeBytes,
			Status:    Status(row.Status),
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}

	return uploads, nil
}

func (s *Service) get(ctx context.Context, userID, uploadID uuid.UUID) (database.ResumeUpload, error) {
	row, err := s.store.GetResumeUpload(ctx, database.GetResumeUploadParams{ID: uploadID, UserID: userID})
	if errors.Is(err, sql.ErrNoRows) {
		return row, apperrors.NotFound("upload not found", err)
	}
	if err != nil {
		return row, apperrors.Storage("loading upload failed", err)
	}
	return row, nil
}

func decodeAnalysis(raw []byte) (*Analysis, error) {
	var analysis Analysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, apperrors.Storage("stored analysis is unreadable", err)
	}
	return &analysis, nil
}

func (s *Service) publishStatus(ctx context.Context, userID, uploadID uuid.UUID, status Status, message string) {
	event := notify.Event{
		Type:      notify.EventResumeStatus,
		UserID:    userID.String(),
		UploadID:  uploadID.String(),
		Status:    string(status),
		Message:   message,
		Timestamp: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, notify.ResumeKey(uploadID.String()), event); err != nil {
		s.logger.Warn("publishing resume status failed", zap.String("upload_id", uploadID.String()), zap.Error(err))
	}
}
