package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"otpboard/api/internal/model"
	"otpboard/api/internal/store"
)

// Store keeps everything in process memory. A single mutex serializes every
// mutation, which gives each board a single writer and makes MoveCard atomic.
type Store struct {
	mu sync.Mutex

	users  map[string]model.User
	otps   map[string]model.OTP
	boards map[string]model.Board // keyed by BoardID

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]model.User),
		otps:   make(map[string]model.OTP),
		boards: make(map[string]model.Board),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateBoard(_ context.Context, b model.Board) (model.Board, error) {
	b, err := store.NormalizeBoard(b)
	if err != nil {
		return model.Board{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[b.BoardID]; ok {
		return model.Board{}, store.ErrConflict
	}

	now := s.now()
	b.ID = newID()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now
	s.boards[b.BoardID] = b
	return b.Clone(), nil
}

func (s *Store) GetBoard(_ context.Context, boardID string) (*model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[boardID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := b.Clone()
	return &out, nil
}

func (s *Store) ListBoards(_ context.Context) ([]model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Board, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BoardID < out[j].BoardID
	})
	return out, nil
}

func (s *Store) AddCard(_ context.Context, boardID string, c model.Card) (model.Board, error) {
	c, err := store.NormalizeCard(c)
	if err != nil {
		return model.Board{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[boardID]
	if !ok {
		return model.Board{}, store.ErrNotFound
	}

	cards := make([]model.Card, 0, len(b.Cards)+1)
	cards = append(cards, b.Cards...)
	b.Cards = append(cards, c)
	s.touch(&b)
	s.boards[boardID] = b
	return b.Clone(), nil
}

func (s *Store) DeleteCard(_ context.Context, boardID, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boards[boardID]
	if !ok {
		return store.ErrNotFound
	}

	cards, _, found := store.RemoveCard(b.Cards, cardID)
	if !found {
		return store.ErrNotFound
	}
	b.Cards = cards
	s.touch(&b)
	s.boards[boardID] = b
	return nil
}

func (s *Store) MoveCard(_ context.Context, srcBoardID, dstBoardID string, c model.Card) error {
	c, err := store.NormalizeCard(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.boards[srcBoardID]
	if !ok {
		return store.ErrNotFound
	}
	dst, ok := s.boards[dstBoardID]
	if !ok {
		return store.ErrNotFound
	}

	remaining, _, found := store.RemoveCard(src.Cards, c.ID)
	if !found {
		return store.ErrNotFound
	}

	if srcBoardID == dstBoardID {
		src.Cards = append(remaining, c)
		s.touch(&src)
		s.boards[srcBoardID] = src
		return nil
	}

	src.Cards = remaining
	cards := make([]model.Card, 0, len(dst.Cards)+1)
	cards = append(cards, dst.Cards...)
	dst.Cards = append(cards, c)

	// Both sides are written under the same lock; nothing can observe the gap.
	s.touch(&src)
	s.touch(&dst)
	s.boards[srcBoardID] = src
	s.boards[dstBoardID] = dst
	return nil
}

func (s *Store) touch(b *model.Board) {
	b.Version++
	b.UpdatedAt = s.now()
}
