package store

import (
	"strings"

	"otpboard/api/internal/model"
)

// ValidationError carries a machine-readable code such as "card_id_required".
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// NormalizeCard trims the card fields and rejects cards without id or title.
func NormalizeCard(c model.Card) (model.Card, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	if c.ID == "" {
		return model.Card{}, ValidationError("card_id_required")
	}
	if c.Title == "" {
		return model.Card{}, ValidationError("card_title_required")
	}
	return c, nil
}

// NormalizeBoard trims the board fields and validates the initial cards.
func NormalizeBoard(b model.Board) (model.Board, error) {
	b.BoardID = strings.TrimSpace(b.BoardID)
	b.Title = strings.TrimSpace(b.Title)
	if b.BoardID == "" {
		return model.Board{}, ValidationError("board_id_required")
	}
	if b.Title == "" {
		return model.Board{}, ValidationError("title_required")
	}
	cards := make([]model.Card, 0, len(b.Cards))
	for _, c := range b.Cards {
		nc, err := NormalizeCard(c)
		if err != nil {
			return model.Board{}, err
		}
		cards = append(cards, nc)
	}
	b.Cards = cards
	return b, nil
}

// RemoveCard returns the board's cards without the first card matching cardID,
// the removed card, and whether a match was found. The input slice is not modified.
func RemoveCard(cards []model.Card, cardID string) ([]model.Card, model.Card, bool) {
	for i, c := range cards {
		if c.ID != cardID {
			continue
		}
		out := make([]model.Card, 0, len(cards)-1)
		out = append(out, cards[:i]...)
		out = append(out, cards[i+1:]...)
		return out, c, true
	}
	return cards, model.Card{}, false
}
