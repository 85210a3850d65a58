package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/spigell/insight/internal/database"
	apperrors "github.com/spigell/insight/internal/errors"
)

// Summary is the part of a profile used for relevance ranking.
type Summary struct {
	Skills     []string `json:"skills"`
	Experience []string `json:"experience"`
}

// Text renders the summary as the classifier premise.
func (s Summary) Text() string {
	return fmt.Sprintf("Skills: %s\nExperience: %s", strings.Join(s.Skills, ", "), strings.Join(s.Experience, ", "))
}

// IsEmpty reports whether the summary has neither skills nor experience.
func (s Summary) IsEmpty() bool {
	return len(s.Skills) == 0 && len(s.Experience) == 0
}

type Profile struct {
	UserID  uuid.UUID
	Name    string
	Summary Summary
}

func (p *Profile) Text() string {
	return p.Summary.Text()
}

type querier interface {
	GetUserProfile(ctx context.Context, userID uuid.UUID) (database.GetUserProfileRow, error)
}

type Reader struct {
	queries querier
}

func NewReader(queries querier) *Reader {
	return &Reader{queries: queries}
}

// Get loads the user's name and profile summary. A user without a profile row
// gets an empty summary.
func (r *Reader) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	row, err := r.queries.GetUserProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user not found", err)
	}
	if err != nil {
		return nil, apperrors.Storage("reading profile", err)
	}

	return &Profile{
		UserID: row.ID,
		Name:   row.Name,
		Summary: Summary{
			Skills:     compact(row.Skills),
			Experience: compact(row.Experience),
		},
	}, nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
