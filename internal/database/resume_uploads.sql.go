package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const resumeUploadColumns = `id, user_id, filename, original_filename, mime, size_bytes, storage_provider, object_key, status, analysis, created_at, updated_at`

func scanResumeUpload(row interface{ Scan(dest ...interface{}) error }) (ResumeUpload, error) {
	var i ResumeUpload
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Filename,
		&i.OriginalFilename,
		&i.Mime,
		&i.SizeBytes,
		&i.StorageProvider,
		&i.ObjectKey,
		&i.Status,
		&i.Analysis,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createResumeUpload = `-- name: CreateResumeUpload :one
INSERT INTO resume_uploads (user_id, filename, original_filename, mime, size_bytes, storage_provider, object_key, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
RETURNING ` + resumeUploadColumns + `
`

type CreateResumeUploadParams struct {
	UserID           uuid.UUID
	Filename         string
	OriginalFilename string
	Mime             string
	SizeBytes        int64
	StorageProvider  string
	ObjectKey        string
}

func (q *Queries) CreateResumeUpload(ctx context.Context, arg CreateResumeUploadParams) (ResumeUpload, error) {
	row := q.db.QueryRowContext(ctx, createResumeUpload,
		arg.UserID,
		arg.Filename,
		arg.OriginalFilename,
		arg.Mime,
		arg.SizeBytes,
		arg.StorageProvider,
		arg.ObjectKey,
	)
	return scanResumeUpload(row)
}

const getResumeUpload = `-- name: GetResumeUpload :one
SELECT ` + resumeUploadColumns + ` FROM resume_uploads
WHERE id = $1 AND user_id = $2
`

type GetResumeUploadParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// GetResumeUpload only returns rows owned by UserID.
func (q *Queries) GetResumeUpload(ctx context.Context, arg GetResumeUploadParams) (ResumeUpload, error) {
	row := q.db.QueryRowContext(ctx, getResumeUpload, arg.ID, arg.UserID)
	return scanResumeUpload(row)
}

const claimResumeUpload = `-- name: ClaimResumeUpload :one
UPDATE resume_uploads
SET status = 'in_progress', analysis = NULL, updated_at = now()
WHERE id = $1 AND user_id = $2
  AND (status IN ('pending', 'failed') OR (status = 'in_progress' AND updated_at < $3))
RETURNING ` + resumeUploadColumns + `
`

type ClaimResumeUploadParams struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	StaleAfter time.Time
}

// ClaimResumeUpload moves a claimable upload to in_progress. sql.ErrNoRows means
// another worker holds the claim or the upload is already completed.
func (q *Queries) ClaimResumeUpload(ctx context.Context, arg ClaimResumeUploadParams) (ResumeUpload, error) {
	row := q.db.QueryRowContext(ctx, claimResumeUpload, arg.ID, arg.UserID, arg.StaleAfter)
	return scanResumeUpload(row)
}

const completeResumeUpload = `-- name: CompleteResumeUpload :execrows
UPDATE resume_uploads
SET status = 'completed', analysis = $3, updated_at = now()
WHERE id = $1 AND status = 'in_progress' AND updated_at = $2
`

// ClaimedAt is the updated_at returned by ClaimResumeUpload. A worker whose
// claim was taken over affects zero rows.
type CompleteResumeUploadParams struct {
	ID        uuid.UUID
	ClaimedAt time.Time
	Analysis  []byte
}

func (q *Queries) CompleteResumeUpload(ctx context.Context, arg CompleteResumeUploadParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeResumeUpload, arg.ID, arg.ClaimedAt, arg.Analysis)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const failResumeUpload = `-- name: FailResumeUpload :execrows
UPDATE resume_uploads
SET status = 'failed', analysis = NULL, updated_at = now()
WHERE id = $1 AND status = 'in_progress' AND updated_at = $2
`

type FailResumeUploadParams struct {
	ID        uuid.UUID
	ClaimedAt time.Time
}

func (q *Queries) FailResumeUpload(ctx context.Context, arg FailResumeUploadParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, failResumeUpload, arg.ID, arg.ClaimedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listResumeUploadsByUser = `-- name: ListResumeUploadsByUser :many
SELECT ` + resumeUploadColumns + ` FROM resume_uploads
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListResumeUploadsByUser(ctx context.Context, userID uuid.UUID) ([]ResumeUpload, error) {
	rows, err := q.db.QueryContext(ctx, listResumeUploadsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ResumeUpload
	for rows.Next() {
		i, err := scanResumeUpload(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
