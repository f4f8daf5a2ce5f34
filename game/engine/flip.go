package engine

import (
	"fmt"
	"time"
)

// canFlip returns the deck index of cardID if the card may be flipped now
func (gs *GameState) canFlip(cardID string) (int, bool) {
	if gs.Status != StatusPlaying || gs.IsBusy {
		return -1, false
	}
	if len(gs.FlippedCards) >= MaxFlippedCards {
		return -1, false
	}

	idx := gs.FindCard(cardID)
	if idx < 0 {
		return -1, false
	}
	card := gs.Deck[idx]
	if card.IsFlipped || card.IsMatched {
		return -1, false
	}
	return idx, true
}

// flip turns the card face up and adds it to the current selection
func (gs *GameState) flip(idx int) {
	gs.Deck[idx].IsFlipped = true
	gs.FlippedCards = append(gs.FlippedCards, gs.Deck[idx])
}

// resolvePair applies the match or mismatch outcome to the two selected cards,
// clears the selection and the busy lock, and records the move.
func (gs *GameState) resolvePair(now time.Time) HistoryEntry {
	first, second := gs.FlippedCards[0], gs.FlippedCards[1]
	matched := first.PairID == second.PairID

	for _, selected := range []Card{first, second} {
		idx := gs.FindCard(selected.ID)
		if idx < 0 {
			continue
		}
		if matched {
			gs.Deck[idx].IsMatched = true
			gs.Deck[idx].IsFlipped = true
		} else {
			gs.Deck[idx].IsFlipped = false
		}
	}

	gs.FlippedCards = []Card{}
	gs.IsBusy = false
	gs.MatchedPairs = CountMatchedPairs(gs.Deck)

	entry := HistoryEntry{
		MoveNumber: gs.MovesCount,
		CardIDs:    []string{first.ID, second.ID},
		Faces:      []string{first.Face, second.Face},
		Matched:    matched,
		Timestamp:  now,
	}
	gs.History = append(gs.History, entry)
	return entry
}

// settle decides the status after a resolution and updates the message.
// It returns the new status.
func (gs *GameState) settle(config *GameConfig, now time.Time) Status {
	last := gs.History[len(gs.History)-1]
	if last.Matched {
		gs.Message = config.Messages.Match
	} else {
		gs.Message = config.Messages.Mismatch
	}

	switch {
	case AllMatched(gs.Deck):
		gs.Status = StatusWon
		gs.FinishedAt = &now
		gs.Message = fmt.Sprintf(config.Messages.Victory, gs.MovesCount)
	case config.MaxMoves > 0 && gs.MovesCount >= config.MaxMoves:
		gs.Status = StatusLost
		gs.FinishedAt = &now
		gs.Message = config.Messages.Defeat
	default:
		gs.Status = StatusPlaying
	}
	return gs.Status
}

// FindCard returns the deck index of the card with the given id, or -1
func (gs *GameState) FindCard(cardID string) int {
	for i := range gs.Deck {
		if gs.Deck[i].ID == cardID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the state
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	c := *gs
	c.Deck = append([]Card{}, gs.Deck...)
	c.FlippedCards = append([]Card{}, gs.FlippedCards...)
	c.History = make([]HistoryEntry, len(gs.History))
	for i, h := range gs.History {
		h.CardIDs = append([]string(nil), h.CardIDs...)
		h.Faces = append([]string(nil), h.Faces...)
		c.History[i] = h
	}
	if gs.StartedAt != nil {
		t := *gs.StartedAt
		c.StartedAt = &t
	}
	if gs.FinishedAt != nil {
		t := *gs.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// Masked returns a copy in which face-down cards do not reveal their face or pair
func (gs *GameState) Masked() *GameState {
	c := gs.Clone()
	if c == nil {
		return nil
	}
	for i := range c.Deck {
		if c.Deck[i].FaceDown() {
			c.Deck[i].Face = ""
			c.Deck[i].PairID = ""
		}
	}
	return c
}

// normalize checks a restored state against the deck invariants and rebuilds the
// selection from the deck so the two can never disagree.
func (gs *GameState) normalize() error {
	if gs.Status == "" {
		gs.Status = StatusIdle
	}
	switch gs.Status {
	case StatusIdle, StatusPlaying, StatusWon, StatusLost:
	default:
		return fmt.Errorf("state validation: unknown status %q", gs.Status)
	}

	if err := ValidateDeck(gs.Deck); err != nil {
		return fmt.Errorf("state validation: %w", err)
	}

	var selected []Card
	byID := make(map[string]Card, len(gs.Deck))
	for _, card := range gs.Deck {
		byID[card.ID] = card
	}
	for _, prev := range gs.FlippedCards {
		card, ok := byID[prev.ID]
		if !ok || !card.IsFlipped || card.IsMatched {
			return fmt.Errorf("state validation: flipped card %q is not face up and unmatched", prev.ID)
		}
		selected = append(selected, card)
	}
	if len(selected) > MaxFlippedCards {
		return fmt.Errorf("state validation: %d cards selected, at most %d allowed", len(selected), MaxFlippedCards)
	}
	if gs.IsBusy != (len(selected) == MaxFlippedCards) {
		return fmt.Errorf("state validation: busy flag does not match %d selected cards", len(selected))
	}

	gs.FlippedCards = append([]Card{}, selected...)
	if gs.History == nil {
		gs.History = []HistoryEntry{}
	}
	gs.MatchedPairs = CountMatchedPairs(gs.Deck)
	return nil
}
