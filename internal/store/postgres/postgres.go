package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"otpboard/api/internal/model"
	"otpboard/api/internal/store"
	"otpboard/api/internal/store/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies the embedded goose migrations. Closing the temporary
// *sql.DB does not close the pool.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const boardColumns = `id::text, board_id, title, cards, version, created_at, updated_at`

func scanBoard(row pgx.Row) (model.Board, error) {
	var b model.Board
	var cardsJSON []byte
	if err := row.Scan(&b.ID, &b.BoardID, &b.Title, &cardsJSON, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Board{}, err
	}
	b.Cards = []model.Card{}
	if len(cardsJSON) > 0 {
		if err := json.Unmarshal(cardsJSON, &b.Cards); err != nil {
			return model.Board{}, fmt.Errorf("%w: decode cards of board %s: %w", store.ErrStorage, b.BoardID, err)
		}
	}
	return b, nil
}

func (s *Store) CreateBoard(ctx context.Context, b model.Board) (model.Board, error) {
	b, err := store.NormalizeBoard(b)
	if err != nil {
		return model.Board{}, err
	}

	cardsJSON, err := json.Marshal(b.Cards)
	if err != nil {
		return model.Board{}, err
	}

	out, err := scanBoard(s.pool.QueryRow(ctx, `
		insert into public.boards (board_id, title, cards)
		values ($1, $2, $3::jsonb)
		returning `+boardColumns,
		b.BoardID, b.Title, string(cardsJSON)))
	if err != nil {
		return model.Board{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetBoard(ctx context.Context, boardID string) (*model.Board, error) {
	b, err := scanBoard(s.pool.QueryRow(ctx, `
		select `+boardColumns+`
		from public.boards
		where board_id = $1
	`, boardID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &b, nil
}

func (s *Store) ListBoards(ctx context.Context) ([]model.Board, error) {
	rows, err := s.pool.Query(ctx, `
		select `+boardColumns+`
		from public.boards
		order by board_id asc
	`)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := []model.Board{}
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) AddCard(ctx context.Context, boardID string, c model.Card) (model.Board, error) {
	c, err := store.NormalizeCard(c)
	if err != nil {
		return model.Board{}, err
	}

	var out model.Board
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockBoards(ctx, tx, boardID)
		if err != nil {
			return err
		}
		b, ok := locked[boardID]
		if !ok {
			return store.ErrNotFound
		}

		b.Cards = append(b.Cards, c)
		out, err = saveCards(ctx, tx, b)
		return err
	})
	if err != nil {
		return model.Board{}, err
	}
	return out, nil
}

func (s *Store) DeleteCard(ctx context.Context, boardID, cardID string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockBoards(ctx, tx, boardID)
		if err != nil {
			return err
		}
		b, ok := locked[boardID]
		if !ok {
			return store.ErrNotFound
		}

		cards, _, found := store.RemoveCard(b.Cards, cardID)
		if !found {
			return store.ErrNotFound
		}
		b.Cards = cards
		_, err = saveCards(ctx, tx, b)
		return err
	})
}

// MoveCard locks both boards and rewrites them in one transaction, so either
// both the removal and the append commit or neither does.
func (s *Store) MoveCard(ctx context.Context, srcBoardID, dstBoardID string, c model.Card) error {
	c, err := store.NormalizeCard(c)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockBoards(ctx, tx, srcBoardID, dstBoardID)
		if err != nil {
			return err
		}
		src, ok := locked[srcBoardID]
		if !ok {
			return store.ErrNotFound
		}
		dst, ok := locked[dstBoardID]
		if !ok {
			return store.ErrNotFound
		}

		remaining, _, found := store.RemoveCard(src.Cards, c.ID)
		if !found {
			return store.ErrNotFound
		}

		if srcBoardID == dstBoardID {
			src.Cards = append(remaining, c)
			_, err := saveCards(ctx, tx, src)
			return err
		}

		src.Cards = remaining
		if _, err := saveCards(ctx, tx, src); err != nil {
			return err
		}
		dst.Cards = append(dst.Cards, c)
		_, err = saveCards(ctx, tx, dst)
		return err
	})
}

// lockBoards selects the given boards FOR UPDATE in board_id order so two
// concurrent moves in opposite directions cannot deadlock.
func lockBoards(ctx context.Context, tx pgx.Tx, boardIDs ...string) (map[string]model.Board, error) {
	rows, err := tx.Query(ctx, `
		select `+boardColumns+`
		from public.boards
		where board_id = any($1)
		order by board_id asc
		for update
	`, boardIDs)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := make(map[string]model.Board, len(boardIDs))
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, mapPgErr(err)
		}
		out[b.BoardID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

// saveCards writes the card list back only if the board still has the
// version that was read.
func saveCards(ctx context.Context, tx pgx.Tx, b model.Board) (model.Board, error) {
	cardsJSON, err := json.Marshal(b.Cards)
	if err != nil {
		return model.Board{}, err
	}

	out, err := scanBoard(tx.QueryRow(ctx, `
		update public.boards
		set cards = $2::jsonb,
		    version = version + 1,
		    updated_at = now()
		where id = $1::uuid
		  and version = $3
		returning `+boardColumns,
		b.ID, string(cardsJSON), b.Version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Board{}, store.ErrVersionConflict
		}
		return model.Board{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgErr(err)
	}
	return nil
}

func mapPgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrStorage) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrConflict
		case "23503", "22P02":
			// Missing parent row or a malformed uuid: nothing can match.
			return store.ErrNotFound
		case "23514":
			return store.ValidationError(pgErr.ConstraintName)
		default:
			return fmt.Errorf("%w: db_error %s: %s", store.ErrStorage, pgErr.Code, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %w", store.ErrStorage, err)
}
