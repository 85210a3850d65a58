package resume

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrInvalidFileType  = errors.New("invalid file type")
	ErrFileTooLarge     = errors.New("file too large")
	ErrEmptyFile        = errors.New("file is empty")
	ErrExtractionFailed = errors.New("text extraction failed")
	ErrModelUnavailable = errors.New("analysis model unavailable")

	errClaimLost = errors.New("analysis claim was taken over")
)

// Analysis is the persisted model feedback for an upload.
type Analysis struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type UploadInput struct {
	UserID   uuid.UUID
	FileName string
	MimeType string
	Data     []byte
}

// Upload is the status overview of a stored resume.
type Upload struct {
	ID        uuid.UUID `json:"id"`
	FileName  string    `json:"filename"`
	MimeType  string    `json:"mime"`
	SizeBytes int64     `json:"sizeBytes"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// File is either the document bytes or a URL the client can fetch it from.
type File struct {
	Name     string
	MimeType string
	Data     []byte
	URL      string
}
