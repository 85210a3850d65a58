package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "resumes/u1/1700000000000-cv.pdf", want: "resumes/u1/1700000000000-cv.pdf"},
		{key: "resumes//u1/./cv.pdf", want: "resumes/u1/cv.pdf"},
		{key: "resumes\\u1\\cv.pdf", want: "resumes/u1/cv.pdf"},
		{key: "../etc/passwd", wantErr: true},
		{key: "resumes/../../secret", wantErr: true},
		{key: "/abs/path", wantErr: true},
		{key: "  ", wantErr: true},
		{key: ".", wantErr: true},
	}

	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %q, %v", tt.key, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanKey(%q): expected %q, got %q, %v", tt.key, tt.want, got, err)
		}
	}
}

func TestLocalRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocal(root)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	ctx := context.Background()

	locator, err := store.Put(ctx, "resumes/u1/1-cv.pdf", []byte("%PDF-1.4"), "application/pdf")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if locator != "resumes/u1/1-cv.pdf" {
		t.Fatalf("unexpected locator %q", locator)
	}

	if _, err := os.Stat(filepath.Join(root, "resumes", "u1", "1-cv.pdf")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	data, err := store.Get(ctx, locator)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected get result %q, %v", data, err)
	}

	if _, err := store.SignedURL(ctx, locator, time.Minute); !errors.Is(err, ErrSignedURLUnsupported) {
		t.Fatalf("expected signed url to be unsupported, got %v", err)
	}

	if err := store.Delete(ctx, locator); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, locator); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.Delete(ctx, locator); err != nil {
		t.Fatalf("deleting a missing blob must succeed, got %v", err)
	}
}

func TestLocalRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	if _, err := store.Put(context.Background(), "../outside.pdf", []byte("x"), ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, err := store.Get(context.Background(), "../../etc/passwd"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
