package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"otpboard/api/internal/model"
	"otpboard/api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB skips unless DATABASE_URL is set. It resets the public schema
// and applies the embedded migrations.
func setupTestDB(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set, skipping PostgreSQL tests")
	}

	s, err := NewStore(databaseURL)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ctx := context.Background()
	_, err = s.pool.Exec(ctx, `
		drop schema public cascade;
		create schema public;
		grant all on schema public to public;
	`)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	return s
}

func createUser(t *testing.T, s *Store, username string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return u
}

func TestPostgresStore_Users(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	u := createUser(t, s, "alice")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err := s.CreateUser(ctx, model.User{Username: "ALICE", Email: "other@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetUserByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = s.GetUserByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_ConsumeOTP(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	u := createUser(t, s, "bob")

	now := time.Now()
	_, err := s.CreateOTP(ctx, model.OTP{UserID: u.ID, Code: "123456", CreatedAt: now.Add(-time.Minute)})
	require.NoError(t, err)

	// Expired lookup window.
	_, err = s.ConsumeOTP(ctx, store.OTPLookup{Code: "123456", IssuedAfter: now})
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.ConsumeOTP(ctx, store.OTPLookup{Code: "123456", IssuedAfter: now.Add(-10 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	_, err = s.ConsumeOTP(ctx, store.OTPLookup{Code: "123456", IssuedAfter: now.Add(-10 * time.Minute)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateOTP(ctx, model.OTP{UserID: u.ID, Code: "654321"})
	require.NoError(t, err)
	_, err = s.ConsumeOTP(ctx, store.OTPLookup{Code: "654321", UserID: "00000000-0000-0000-0000-000000000000", IssuedAfter: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.PurgeOTPsBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostgresStore_CreateOTPRejectsUnknownUser(t *testing.T) {
	s := setupTestDB(t)

	_, err := s.CreateOTP(context.Background(), model.OTP{UserID: "00000000-0000-0000-0000-000000000000", Code: "111111"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresStore_BoardCards(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.CreateBoard(ctx, model.Board{BoardID: "A", Title: "Todo", Cards: []model.Card{{ID: "1", Title: "x"}}})
	require.NoError(t, err)
	_, err = s.CreateBoard(ctx, model.Board{BoardID: "B", Title: "Done"})
	require.NoError(t, err)

	_, err = s.CreateBoard(ctx, model.Board{BoardID: "A", Title: "dup"})
	assert.ErrorIs(t, err, store.ErrConflict)

	b, err := s.AddCard(ctx, "A", model.Card{ID: "2", Title: "y"})
	require.NoError(t, err)
	assert.Len(t, b.Cards, 2)
	assert.Equal(t, int64(2), b.Version)

	require.NoError(t, s.MoveCard(ctx, "A", "B", model.Card{ID: "1", Title: "x"}))

	boards, err := s.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 2)
	assert.Equal(t, []model.Card{{ID: "2", Title: "y"}}, boards[0].Cards)
	assert.Equal(t, []model.Card{{ID: "1", Title: "x"}}, boards[1].Cards)

	err = s.MoveCard(ctx, "A", "missing", model.Card{ID: "2", Title: "y"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	a, err := s.GetBoard(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, a.Cards, 1)

	assert.ErrorIs(t, s.DeleteCard(ctx, "B", "99"), store.ErrNotFound)
	require.NoError(t, s.DeleteCard(ctx, "B", "1"))
	bb, err := s.GetBoard(ctx, "B")
	require.NoError(t, err)
	assert.Empty(t, bb.Cards)
}

func TestPostgresStore_ConcurrentOppositeMoves(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.CreateBoard(ctx, model.Board{BoardID: "A", Title: "a", Cards: []model.Card{{ID: "a1", Title: "a1"}}})
	require.NoError(t, err)
	_, err = s.CreateBoard(ctx, model.Board{BoardID: "B", Title: "b", Cards: []model.Card{{ID: "b1", Title: "b1"}}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = s.MoveCard(ctx, "A", "B", model.Card{ID: "a1", Title: "a1"})
	}()
	go func() {
		defer wg.Done()
		errs[1] = s.MoveCard(ctx, "B", "A", model.Card{ID: "b1", Title: "b1"})
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	a, err := s.GetBoard(ctx, "A")
	require.NoError(t, err)
	b, err := s.GetBoard(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, []model.Card{{ID: "b1", Title: "b1"}}, a.Cards)
	assert.Equal(t, []model.Card{{ID: "a1", Title: "a1"}}, b.Cards)
}

func TestPostgresStore_ConcurrentAddCard(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	created, err := s.CreateBoard(ctx, model.Board{BoardID: "A", Title: "a"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AddCard(ctx, "A", model.Card{ID: fmt.Sprint(i), Title: fmt.Sprintf("card %d", i)})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "add card %d", i)
	}

	b, err := s.GetBoard(ctx, "A")
	require.NoError(t, err)
	require.Len(t, b.Cards, n)
	assert.Equal(t, created.Version+n, b.Version)

	seen := make(map[string]bool, n)
	for _, c := range b.Cards {
		seen[c.ID] = true
	}
	assert.Len(t, seen, n)
}
