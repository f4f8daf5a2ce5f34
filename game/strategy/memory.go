// Package strategy implements a player that remembers every face it has seen.
//
// The player only uses information a human would have: faces of cards that
// are, or were at some point, face up. It works on the masked public state.
package strategy

import "github.com/peymanfazeli/Memory-game/game/engine"

// MemoryStrategy picks flips for a perfect-memory player.
//
// Order of preference for the first flip of a move:
//  1. a card whose partner is already known
//  2. a card never seen before
//  3. any face-down card
//
// For the second flip it takes the known partner of the first card if there is
// one, otherwise a card never seen before.
type MemoryStrategy struct {
	gameID string
	seen   map[string]string // card id -> face, unmatched cards only
}

// NewMemoryStrategy creates a strategy with an empty memory
func NewMemoryStrategy() *MemoryStrategy {
	return &MemoryStrategy{seen: make(map[string]string)}
}

// Reset forgets everything
func (s *MemoryStrategy) Reset() {
	s.gameID = ""
	s.seen = make(map[string]string)
}

// Known returns how many unmatched cards the strategy remembers
func (s *MemoryStrategy) Known() int {
	return len(s.seen)
}

// Observe records the faces visible in state. A new game id clears the memory.
func (s *MemoryStrategy) Observe(state *engine.GameState) {
	if state == nil {
		return
	}
	if state.GameID != s.gameID {
		s.Reset()
		s.gameID = state.GameID
	}

	for _, card := range state.Deck {
		switch {
		case card.IsMatched:
			delete(s.seen, card.ID)
		case card.IsFlipped && card.Face != "":
			s.seen[card.ID] = card.Face
		}
	}
}

// NextFlip returns the id of the card to flip next, or "" when no flip makes sense:
// the game is not in progress, a pair is resolving, or nothing is face down.
func (s *MemoryStrategy) NextFlip(state *engine.GameState) string {
	if state == nil || state.Status != engine.StatusPlaying || state.IsBusy {
		return ""
	}
	s.Observe(state)

	faceDown := make([]engine.Card, 0, len(state.Deck))
	for _, card := range state.Deck {
		if card.FaceDown() {
			faceDown = append(faceDown, card)
		}
	}
	if len(faceDown) == 0 {
		return ""
	}

	if len(state.FlippedCards) == 1 {
		first := state.FlippedCards[0]
		if id := s.partnerOf(first.ID, first.Face, faceDown); id != "" {
			return id
		}
		return s.unseenOrFirst(faceDown)
	}

	if id := s.knownPair(faceDown); id != "" {
		return id
	}
	return s.unseenOrFirst(faceDown)
}

// partnerOf finds a face-down card remembered with the given face
func (s *MemoryStrategy) partnerOf(cardID, face string, faceDown []engine.Card) string {
	for _, card := range faceDown {
		if card.ID != cardID && s.seen[card.ID] == face {
			return card.ID
		}
	}
	return ""
}

// knownPair returns one card of a remembered pair, preferring deck order
func (s *MemoryStrategy) knownPair(faceDown []engine.Card) string {
	byFace := make(map[string]string, len(s.seen))
	for _, card := range faceDown {
		face, ok := s.seen[card.ID]
		if !ok {
			continue
		}
		if _, found := byFace[face]; found {
			return byFace[face]
		}
		byFace[face] = card.ID
	}
	return ""
}

func (s *MemoryStrategy) unseenOrFirst(faceDown []engine.Card) string {
	for _, card := range faceDown {
		if _, ok := s.seen[card.ID]; !ok {
			return card.ID
		}
	}
	return faceDown[0].ID
}
