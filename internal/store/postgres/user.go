package postgres

import (
	"context"
	"errors"
	"strings"

	"otpboard/api/internal/model"
	"otpboard/api/internal/store"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id::text, username, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	username := strings.TrimSpace(u.Username)
	if username == "" {
		return model.User{}, store.ValidationError("username_required")
	}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return model.User{}, store.ValidationError("email_required")
	}

	out, err := scanUser(s.pool.QueryRow(ctx, `
		insert into public.users (username, email, password_hash)
		values ($1, $2, $3)
		returning `+userColumns,
		username, email, u.PasswordHash))
	if err != nil {
		return model.User{}, err
	}
	return *out, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where lower(username) = lower($1)
	`, username))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `
		select `+userColumns+`
		from public.users
		where id = $1::uuid
	`, id))
}
