package engine

import "fmt"

// CountMatchedPairs counts the pairs whose two cards are both matched
func CountMatchedPairs(deck []Card) int {
	count := 0
	for _, card := range deck {
		if card.IsMatched {
			count++
		}
	}
	return count / 2
}

// AllMatched reports whether every card of a non-empty deck is matched
func AllMatched(deck []Card) bool {
	if len(deck) == 0 {
		return false
	}
	for _, card := range deck {
		if !card.IsMatched {
			return false
		}
	}
	return true
}

// CountFaceDown counts the cards whose face is hidden
func CountFaceDown(deck []Card) int {
	count := 0
	for _, card := range deck {
		if card.FaceDown() {
			count++
		}
	}
	return count
}

// ValidateDeck checks the structural invariants of a deck: an even number of cards,
// unique ids, every pair id on exactly two cards sharing a face, and matched cards face up.
func ValidateDeck(deck []Card) error {
	if len(deck)%2 != 0 {
		return fmt.Errorf("deck has an odd number of cards (%d)", len(deck))
	}

	ids := make(map[string]bool, len(deck))
	pairs := make(map[string][]Card, len(deck)/2)
	for _, card := range deck {
		if card.ID == "" {
			return fmt.Errorf("card with empty id")
		}
		if ids[card.ID] {
			return fmt.Errorf("duplicate card id %q", card.ID)
		}
		ids[card.ID] = true
		if card.IsMatched && !card.IsFlipped {
			return fmt.Errorf("card %q is matched but face down", card.ID)
		}
		pairs[card.PairID] = append(pairs[card.PairID], card)
	}

	for pairID, cards := range pairs {
		if len(cards) != 2 {
			return fmt.Errorf("pair %q has %d cards, want 2", pairID, len(cards))
		}
		if cards[0].Face != cards[1].Face {
			return fmt.Errorf("pair %q has mismatched faces", pairID)
		}
		if cards[0].IsMatched != cards[1].IsMatched {
			return fmt.Errorf("pair %q is only half matched", pairID)
		}
	}
	return nil
}
