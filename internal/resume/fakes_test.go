package resume

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/insight/internal/ai"
	"github.com/spigell/insight/internal/database"
	"github.com/spigell/insight/internal/notify"
	"github.com/spigell/insight/internal/storage"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type memStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]database.ResumeUpload
	now       func() time.Time
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		rows: make(map[uuid.UUID]database.ResumeUpload),
		now:  func() time.Time { return testNow },
	}
}

func (m *memStore) CreateResumeUpload(_ context.Context, arg database.CreateResumeUploadParams) (database.ResumeUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return database.ResumeUpload{}, m.createErr
	}

	row := database.ResumeUpload{
		ID:               uuid.New(),
		UserID:           arg.UserID,
		Filename:         arg.Filename,
		OriginalFilename: arg.OriginalFilename,
		Mime:             arg.Mime,
		SizeBytes:        arg.SizeBytes,
		StorageProvider:  arg.StorageProvider,
		ObjectKey:        arg.ObjectKey,
		Status:           string(StatusPending),
		CreatedAt:        m.now().Add(time.Duration(len(m.rows)) * time.Second),
		UpdatedAt:        m.now(),
	}
	m.rows[row.ID] = row
	return row, nil
}

func (m *memStore) GetResumeUpload(_ context.Context, arg database.GetResumeUploadParams) (database.ResumeUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[arg.ID]
	if !ok || row.UserID != arg.UserID {
		return database.ResumeUpload{}, sql.ErrNoRows
	}
	return row, nil
}

func (m *memStore) ClaimResumeUpload(_ context.Context, arg database.ClaimResumeUploadParams) (database.ResumeUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[arg.ID]
	if !ok || row.UserID != arg.UserID {
		return database.ResumeUpload{}, sql.ErrNoRows
	}

	switch Status(row.Status) {
	case StatusPending, StatusFailed:
	case StatusInProgress:
		if !row.UpdatedAt.Before(arg.StaleAfter) {
			return database.ResumeUpload{}, sql.ErrNoRows
		}
	default:
		return database.ResumeUpload{}, sql.ErrNoRows
	}

	row.Status = string(StatusInProgress)
	row.Analysis = nil
	row.UpdatedAt = m.now()
	m.rows[row.ID] = row
	return row, nil
}

func (m *memStore) CompleteResumeUpload(_ context.Context, arg database.CompleteResumeUploadParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[arg.ID]
	if !ok || Status(row.Status) != StatusInProgress || !row.UpdatedAt.Equal(arg.ClaimedAt) {
		return 0, nil
	}
	row.Status = string(StatusCompleted)
	row.Analysis = arg.Analysis
	row.UpdatedAt = m.now()
	m.rows[row.ID] = row
	return 1, nil
}

func (m *memStore) FailResumeUpload(ctx context.Context, arg database.FailResumeUploadParams) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[arg.ID]
	if !ok || Status(row.Status) != StatusInProgress || !row.UpdatedAt.Equal(arg.ClaimedAt) {
		return 0, nil
	}
	row.Status = string(StatusFailed)
	row.Analysis = nil
	row.UpdatedAt = m.now()
	m.rows[row.ID] = row
	return 1, nil
}

// takeOver simulates a second worker reclaiming a stale in_progress upload.
func (m *memStore) takeOver(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.rows[id]
	row.Status = string(StatusInProgress)
	row.UpdatedAt = at
	m.rows[id] = row
}

func (m *memStore) ListResumeUploadsByUser(_ context.Context, userID uuid.UUID) ([]database.ResumeUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []database.ResumeUpload
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) status(id uuid.UUID) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status(m.rows[id].Status)
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	signed  bool
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (b *memBlob) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	b.objects[key] = append([]byte(nil), data...)
	return key, nil
}

func (b *memBlob) Get(_ context.Context, locator string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[locator]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (b *memBlob) SignedURL(_ context.Context, locator string, ttl time.Duration) (string, error) {
	if !b.signed {
		return "", storage.ErrSignedURLUnsupported
	}
	return fmt.Sprintf("https://blobs.example.test/%s?expires=%d", locator, int(ttl.Seconds())), nil
}

func (b *memBlob) Delete(_ context.Context, locator string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, locator)
	return nil
}

func (b *memBlob) Provider() string { return "memory" }

func (b *memBlob) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fn      func(ctx context.Context, prompt string) (string, error)
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, _ ai.GenerationOptions) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	fn := g.fn
	g.mu.Unlock()
	return fn(ctx, prompt)
}

func (g *stubGenerator) Model() string { return "stub" }

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	keys   []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

// buildPDF returns a single page PDF showing text with a standard font.
func buildPDF(t *testing.T, text string) []byte {
	t.Helper()

	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)

	return buf.Bytes()
}

// buildDocx returns a minimal Word document with one paragraph per entry.
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var body strings.Builder
	for _, p := range paragraphs {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s</w:t></w:r></w:p>", p)
	}

	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	return buf.Bytes()
}
