package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/spigell/insight/internal/errors"
	"github.com/spigell/insight/internal/jobs"
	"github.com/spigell/insight/internal/recommend"
	"github.com/spigell/insight/internal/resume"
)

var testSecret = []byte("test-secret")

type fakeRecommender struct {
	mu     sync.Mutex
	result *recommend.Result
	err    error
	jobs   []jobs.Listing
	users  []uuid.UUID
}

func (f *fakeRecommender) GetRecommendations(_ context.Context, userID uuid.UUID) (*recommend.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return f.result, f.err
}

func (f *fakeRecommender) ListJobs(context.Context) ([]jobs.Listing, error) {
	return f.jobs, f.err
}

type fakeResumes struct {
	uploads  []resume.UploadInput
	id       uuid.UUID
	analysis *resume.Analysis
	file     *resume.File
	list     []resume.Upload
	err      error
}

func (f *fakeResumes) Upload(_ context.Context, in resume.UploadInput) (uuid.UUID, error) {
	f.uploads = append(f.uploads, in)
	return f.id, f.err
}

func (f *fakeResumes) Analyse(context.Context, uuid.UUID, uuid.UUID) (*resume.Analysis, error) {
	return f.analysis, f.err
}

func (f *fakeResumes) RetrieveFile(context.Context, uuid.UUID, uuid.UUID) (*resume.File, error) {
	return f.file, f.err
}

func (f *fakeResumes) List(context.Context, uuid.UUID) ([]resume.Upload, error) {
	return f.list, f.err
}

func (f *fakeResumes) MaxSize() int64 { return resume.DefaultMaxSize }

func newTestServer(rec *fakeRecommender, res *fakeResumes, checks ...HealthCheck) *Server {
	if rec == nil {
		rec = &fakeRecommender{}
	}
	if res == nil {
		res = &fakeResumes{}
	}
	return New(Deps{Recommender: rec, Resumes: res, Checks: checks}, Options{JWTSecret: testSecret})
}

func signToken(t *testing.T, method jwt.SigningMethod, userID string, expiresAt time.Time) string {
	t.Helper()

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiresAt)}}
	claims.User.ID = userID

	token, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func do(t *testing.T, s *Server, req *http.Request) (int, map[string]any) {
	t.Helper()

	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)
	return resp.StatusCode, decoded
}

func TestHealthReportsChecks(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil, nil,
		HealthCheck{Name: "db", Ping: func(context.Context) error { return nil }},
		HealthCheck{Name: "cache", Ping: func(context.Context) error { return errors.New("cache disabled") }},
	)

	status, body := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	checks := body["checks"].(map[string]any)
	if checks["db"] != "ok" || checks["cache"] != "unavailable: cache disabled" {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestJobsArePublic(t *testing.T) {
	t.Parallel()

	rec := &fakeRecommender{jobs: []jobs.Listing{{ExternalID: "1", Title: "Go Developer"}}}
	s := newTestServer(rec, nil)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/jobs", nil), -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	var listings []jobs.Listing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(listings) != 1 || listings[0].Title != "Go Developer" {
		t.Fatalf("unexpected response %d %+v", resp.StatusCode, listings)
	}
}

func TestAuthentication(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	valid := signToken(t, jwt.SigningMethodHS256, userID.String(), time.Now().Add(time.Hour))

	tests := []struct {
		name    string
		header  string
		value   string
		status  int
		message string
	}{
		{name: "jwt_token header", header: TokenHeader, value: valid, status: http.StatusOK},
		{name: "bearer", header: "Authorization", value: "Bearer " + valid, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized, message: "missing token"},
		{
			name:    "expired",
			header:  TokenHeader,
			value:   signToken(t, jwt.SigningMethodHS256, userID.String(), time.Now().Add(-time.Minute)),
			status:  http.StatusUnauthorized,
			message: "token expired",
		},
		{
			name:    "wrong algorithm",
			header:  TokenHeader,
			value:   signToken(t, jwt.SigningMethodHS512, userID.String(), time.Now().Add(time.Hour)),
			status:  http.StatusUnauthorized,
			message: "invalid token",
		},
		{
			name:    "not a uuid",
			header:  TokenHeader,
			value:   signToken(t, jwt.SigningMethodHS256, "42", time.Now().Add(time.Hour)),
			status:  http.StatusUnauthorized,
			message: "invalid token",
		},
		{name: "garbage", header: TokenHeader, value: "a.b.c", status: http.StatusUnauthorized, message: "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &fakeRecommender{result: &recommend.Result{UserName: "Jane"}}
			s := newTestServer(rec, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			status, body := do(t, s, req)
			if status != tt.status {
				t.Fatalf("expected %d, got %d (%v)", tt.status, status, body)
			}
			if tt.message != "" && body["error"] != tt.message {
				t.Fatalf("expected message %q, got %v", tt.message, body["error"])
			}
			if status == http.StatusOK {
				if body["userName"] != "Jane" || len(rec.users) != 1 || rec.users[0] != userID {
					t.Fatalf("unexpected recommendation call: %v %v", body, rec.users)
				}
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err     error
		status  int
		message string
	}{
		{err: apperrors.NotFound("user not found", nil), status: http.StatusNotFound, message: "user not found"},
		{err: apperrors.InvalidInput("bad input", nil), status: http.StatusBadRequest, message: "bad input"},
		{err: apperrors.Conflict("analysis already in progress", nil), status: http.StatusConflict, message: "analysis already in progress"},
		{err: apperrors.Unavailable("job source request failed", errors.New("dial tcp")), status: http.StatusBadGateway, message: msgUpstream},
		{err: apperrors.Storage("loading profile failed", errors.New("pq: relation missing")), status: http.StatusInternalServerError, message: msgServerError},
		{err: errors.New("boom"), status: http.StatusInternalServerError, message: msgServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status, "-", tt.message), func(t *testing.T) {
			t.Parallel()

			s := newTestServer(&fakeRecommender{err: tt.err}, nil)
			req := httptest.NewRequest(http.MethodGet, "/api/recommendations", nil)
			req.Header.Set(TokenHeader, signToken(t, jwt.SigningMethodHS256, uuid.NewString(), time.Now().Add(time.Hour)))

			status, body := do(t, s, req)
			if status != tt.status || body["error"] != tt.message {
				t.Fatalf("expected %d %q, got %d %v", tt.status, tt.message, status, body)
			}
		})
	}
}

func multipartRequest(t *testing.T, token, field, fileName, contentType string, data []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/resume/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(TokenHeader, token)
	return req
}

func TestUploadResume(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token := signToken(t, jwt.SigningMethodHS256, userID.String(), time.Now().Add(time.Hour))

	t.Run("created", func(t *testing.T) {
		t.Parallel()

		res := &fakeResumes{id: uuid.New()}
		s := newTestServer(nil, res)

		status, body := do(t, s, multipartRequest(t, token, "resume", "cv.pdf", "application/pdf", []byte("%PDF-1.4")))
		if status != http.StatusCreated || body["id"] != res.id.String() {
			t.Fatalf("unexpected response %d %v", status, body)
		}
		if len(res.uploads) != 1 {
			t.Fatalf("expected one upload, got %d", len(res.uploads))
		}
		got := res.uploads[0]
		if got.UserID != userID || got.FileName != "cv.pdf" || got.MimeType != "application/pdf" || string(got.Data) != "%PDF-1.4" {
			t.Fatalf("unexpected upload input %+v", got)
		}
	})

	t.Run("oversized", func(t *testing.T) {
		t.Parallel()

		res := &fakeResumes{id: uuid.New()}
		s := newTestServer(nil, res)

		status, body := do(t, s, multipartRequest(t, token, "resume", "cv.pdf", "application/pdf", make([]byte, 6<<20)))
		if status != http.StatusBadRequest || body["error"] != "file too large" {
			t.Fatalf("expected 400, got %d %v", status, body)
		}
		if len(res.uploads) != 0 {
			t.Fatalf("service must not be called")
		}
	})

	t.Run("missing field", func(t *testing.T) {
		t.Parallel()

		res := &fakeResumes{}
		s := newTestServer(nil, res)

		status, _ := do(t, s, multipartRequest(t, token, "document", "cv.pdf", "application/pdf", []byte("%PDF")))
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", status)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()

		res := &fakeResumes{err: apperrors.InvalidInput("invalid file type: only pdf files are accepted", resume.ErrInvalidFileType)}
		s := newTestServer(nil, res)

		status, body := do(t, s, multipartRequest(t, token, "resume", "cv.txt", "text/plain", []byte("hi")))
		if status != http.StatusBadRequest || body["error"] != "invalid file type: only pdf files are accepted" {
			t.Fatalf("unexpected response %d %v", status, body)
		}
	})
}

func TestResumeAnalysis(t *testing.T) {
	t.Parallel()

	token := signToken(t, jwt.SigningMethodHS256, uuid.NewString(), time.Now().Add(time.Hour))
	stamp := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	s := newTestServer(nil, &fakeResumes{analysis: &resume.Analysis{Content: "Quantify results.", Timestamp: stamp}})

	req := httptest.NewRequest(http.MethodGet, "/api/resume/analysis/"+uuid.NewString(), nil)
	req.Header.Set(TokenHeader, token)
	status, body := do(t, s, req)
	if status != http.StatusOK || body["analysis"] != "Quantify results." || body["timestamp"] != "2025-03-14T09:30:00Z" {
		t.Fatalf("unexpected response %d %v", status, body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/resume/analysis/not-a-uuid", nil)
	req.Header.Set(TokenHeader, token)
	if status, _ := do(t, s, req); status != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", status)
	}
}

func TestResumeFile(t *testing.T) {
	t.Parallel()

	token := signToken(t, jwt.SigningMethodHS256, uuid.NewString(), time.Now().Add(time.Hour))

	t.Run("bytes", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(nil, &fakeResumes{file: &resume.File{Name: "cv.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}})
		req := httptest.NewRequest(http.MethodGet, "/api/resume/file/"+uuid.NewString(), nil)
		req.Header.Set(TokenHeader, token)

		resp, err := s.App().Test(req, -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK || string(data) != "%PDF-1.4" {
			t.Fatalf("unexpected response %d %q", resp.StatusCode, data)
		}
		if resp.Header.Get("Content-Type") != "application/pdf" || resp.Header.Get("Content-Disposition") != `inline; filename=cv.pdf` {
			t.Fatalf("unexpected headers %v", resp.Header)
		}
	})

	t.Run("signed url", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(nil, &fakeResumes{file: &resume.File{URL: "https://blobs.example.test/cv.pdf?sig=1"}})
		req := httptest.NewRequest(http.MethodGet, "/api/resume/file/"+uuid.NewString(), nil)
		req.Header.Set(TokenHeader, token)

		resp, err := s.App().Test(req, -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "https://blobs.example.test/cv.pdf?sig=1" {
			t.Fatalf("unexpected redirect %d %q", resp.StatusCode, resp.Header.Get("Location"))
		}
	})

	t.Run("not owned", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(nil, &fakeResumes{err: apperrors.NotFound("upload not found", nil)})
		req := httptest.NewRequest(http.MethodGet, "/api/resume/file/"+uuid.NewString(), nil)
		req.Header.Set(TokenHeader, token)

		if status, body := do(t, s, req); status != http.StatusNotFound || body["error"] != "upload not found" {
			t.Fatalf("unexpected response %d %v", status, body)
		}
	})
}
