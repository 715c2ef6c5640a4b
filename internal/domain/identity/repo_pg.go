package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
)

type repoPG struct {
	pool db.Querier
}

func NewRepoPG(pool db.Querier) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, username, password_hash, user_type, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, user_type, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.Active,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return db.Classify(err, entity)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, query, key string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, query, key))
	if err != nil {
		if apperr.IsKind(db.Classify(err, entity), apperr.KindNotFound) {
			return nil, apperr.NotFound(entity, key)
		}
		return nil, fmt.Errorf("get user %s: %w", key, err)
	}
	return u, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.get(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username)
}

func (r *repoPG) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return db.Classify(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+userCols+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}
