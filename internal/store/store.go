package store

import (
	"context"
	"errors"
	"time"

	"otpboard/api/internal/model"
)

var (
	ErrNotFound        = errors.New("not_found")
	ErrConflict        = errors.New("conflict")
	ErrVersionConflict = errors.New("version_conflict")
	ErrStorage         = errors.New("storage_unavailable")
)

// OTPLookup selects a live OTP record. UserID is optional; when empty the
// lookup is keyed by code alone.
type OTPLookup struct {
	Code        string
	UserID      string
	IssuedAfter time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type OTPStore interface {
	CreateOTP(ctx context.Context, o model.OTP) (model.OTP, error)
	// ConsumeOTP atomically deletes the oldest record matching the lookup and returns it.
	ConsumeOTP(ctx context.Context, q OTPLookup) (*model.OTP, error)
	PurgeOTPsBefore(ctx context.Context, before time.Time) (int, error)
}

// BoardStore addresses boards by their human-assigned BoardID. Mutations on a
// single board are serialized; MoveCard applies both sides or neither.
type BoardStore interface {
	CreateBoard(ctx context.Context, b model.Board) (model.Board, error)
	GetBoard(ctx context.Context, boardID string) (*model.Board, error)
	ListBoards(ctx context.Context) ([]model.Board, error)
	AddCard(ctx context.Context, boardID string, c model.Card) (model.Board, error)
	DeleteCard(ctx context.Context, boardID, cardID string) error
	MoveCard(ctx context.Context, srcBoardID, dstBoardID string, c model.Card) error
}

type Store interface {
	UserStore
	OTPStore
	BoardStore
}
