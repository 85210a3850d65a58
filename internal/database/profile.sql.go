package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const getUserProfile = `-- name: GetUserProfile :one
SELECT u.id, u.name, COALESCE(p.skills, '{}'::text[]), COALESCE(p.experience, '{}'::text[])
FROM users u
LEFT JOIN profile p ON u.id = p.user_id
WHERE u.id = $1
`

type GetUserProfileRow struct {
	ID         uuid.UUID
	Name       string
	Skills     []string
	Experience []string
}

func (q *Queries) GetUserProfile(ctx context.Context, userID uuid.UUID) (GetUserProfileRow, error) {
	row := q.db.QueryRowContext(ctx, getUserProfile, userID)
	var i GetUserProfileRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		pq.Array(&i.Skills),
		pq.Array(&i.Experience),
	)
	return i, err
}
