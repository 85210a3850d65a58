package database

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	CreatedAt time.Time
}

type ResumeUpload struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Filename         string
	OriginalFilename string
	Mime             string
	SizeBytes        int64
	StorageProvider  string
	ObjectKey        string
	Status           string
	Analysis         []byte
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
