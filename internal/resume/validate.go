package resume

import (
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	mimePDF         = "application/pdf"
	mimeDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeOctetStream = "application/octet-stream"

	DefaultMaxSize = 5 << 20
)

// supportedTypes maps a file extension to its canonical MIME type.
var supportedTypes = map[string]string{
	"pdf":  mimePDF,
	"docx": mimeDOCX,
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DefaultAllowedTypes is the upload allow-list when none is configured.
func DefaultAllowedTypes() []string {
	return []string{"pdf"}
}

// NormalizeAllowedTypes lowercases the configured extensions and drops unsupported ones.
func NormalizeAllowedTypes(types []string) ([]string, error) {
	var out []string
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "."))
		if t == "" {
			continue
		}
		if _, ok := supportedTypes[t]; !ok {
			return nil, fmt.Errorf("unsupported resume type %q", t)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return DefaultAllowedTypes(), nil
	}
	return out, nil
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// validateUpload checks the input against the allow-list and size ceiling and
// returns the canonical MIME type for the stored record.
func validateUpload(in UploadInput, allowed []string, maxSize int64) (string, error) {
	ext := extension(in.FileName)
	if !contains(allowed, ext) {
		return "", fmt.Errorf("%w: only %s files are accepted", ErrInvalidFileType, strings.Join(allowed, ", "))
	}

	canonical := supportedTypes[ext]
	if declared := mediaType(in.MimeType); declared != "" && declared != mimeOctetStream && declared != canonical {
		return "", fmt.Errorf("%w: %s does not match .%s", ErrInvalidFileType, declared, ext)
	}

	if int64(len(in.Data)) > maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, len(in.Data), maxSize)
	}

	if len(in.Data) == 0 {
		return "", ErrEmptyFile
	}

	return canonical, nil
}

func mediaType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(v)
	}
	return mt
}

// safeName keeps the base name of an uploaded file with unsafe characters replaced.
func safeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeNameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "resume"
	}
	return base
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
