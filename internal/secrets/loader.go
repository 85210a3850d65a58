// Package secrets resolves credentials from files, inline configuration or
// well-known environment variables.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNotConfigured = errors.New("not configured")

// Source lists the places a secret may come from, in lookup order:
// File, then Value, then the Env variable.
type Source struct {
	// Name is used in error messages.
	Name  string
	File  string
	Value string
	// Env names a fallback variable, e.g. GEMINI_API_KEY.
	Env string
}

func (s Source) name() string {
	if name := strings.TrimSpace(s.Name); name != "" {
		return name
	}
	return "secret"
}

func (s Source) configured() bool {
	return strings.TrimSpace(s.File) != "" ||
		strings.TrimSpace(s.Value) != "" ||
		(s.Env != "" && strings.TrimSpace(os.Getenv(s.Env)) != "")
}

// Load returns the first usable, trimmed secret. A configured file that cannot be
// read or is empty is an error and never falls through to the other sources.
func Load(src Source) (string, error) {
	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", src.name(), file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", src.name(), file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if src.Env != "" {
		if secret := strings.TrimSpace(os.Getenv(src.Env)); secret != "" {
			return secret, nil
		}
	}

	return "", fmt.Errorf("%s is %w", src.name(), ErrNotConfigured)
}

// LoadOptional is Load that yields an empty secret when no source is set.
func LoadOptional(src Source) (string, error) {
	if !src.configured() {
		return "", nil
	}
	return Load(src)
}
