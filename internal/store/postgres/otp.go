package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"otpboard/api/internal/model"
	"otpboard/api/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateOTP(ctx context.Context, o model.OTP) (model.OTP, error) {
	if strings.TrimSpace(o.UserID) == "" {
		return model.OTP{}, store.ValidationError("user_id_required")
	}
	if strings.TrimSpace(o.Code) == "" {
		return model.OTP{}, store.ValidationError("code_required")
	}

	var createdAt any
	if !o.CreatedAt.IsZero() {
		createdAt = o.CreatedAt
	}

	out := o
	err := s.pool.QueryRow(ctx, `
		insert into public.otps (user_id, code, created_at)
		values ($1::uuid, $2, coalesce($3::timestamptz, now()))
		returning id::text, created_at
	`, o.UserID, o.Code, createdAt).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return model.OTP{}, mapPgErr(err)
	}
	return out, nil
}

// ConsumeOTP deletes and returns the oldest live record matching the lookup.
// SKIP LOCKED lets two concurrent verifications of the same code resolve to
// one winner instead of blocking.
func (s *Store) ConsumeOTP(ctx context.Context, q store.OTPLookup) (*model.OTP, error) {
	var o model.OTP
	err := s.pool.QueryRow(ctx, `
		delete from public.otps
		where id = (
			select id
			from public.otps
			where code = $1
			  and ($2::text = '' or user_id = nullif($2::text, '')::uuid)
			  and created_at > $3
			order by created_at asc
			limit 1
			for update skip locked
		)
		returning id::text, user_id::text, code, created_at
	`, q.Code, q.UserID, q.IssuedAfter).Scan(&o.ID, &o.UserID, &o.Code, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &o, nil
}

func (s *Store) PurgeOTPsBefore(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		delete from public.otps
		where created_at <= $1
	`, before)
	if err != nil {
		return 0, mapPgErr(err)
	}
	return int(tag.RowsAffected()), nil
}
