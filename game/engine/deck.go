package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
)

// ErrInvalidConfiguration is returned when a deck cannot be built from the requested pair count
var ErrInvalidConfiguration = errors.New("invalid configuration")

// DefaultFaces is the built-in palette, in selection order
var DefaultFaces = []string{
	"🐶", "🐱", "🦊", "🐻", "🐼",
	"🐸", "🐵", "🦁", "🐷", "🐰",
	"🐯", "🐮", "🐔", "🐙", "🐢",
	"🐞", "🦋", "🐝", "🐠", "🐳",
}

// DeckGenerator builds shuffled decks of card pairs from a face palette
type DeckGenerator struct {
	faces []string
	rng   *rand.Rand // nil uses the package-level source
}

// NewDeckGenerator creates a generator over the given palette.
// A nil palette selects DefaultFaces; a nil rng selects the package-level source.
func NewDeckGenerator(faces []string, rng *rand.Rand) *DeckGenerator {
	if len(faces) == 0 {
		faces = DefaultFaces
	}
	return &DeckGenerator{faces: faces, rng: rng}
}

// GenerateDeck builds a deck from DefaultFaces
func GenerateDeck(pairsCount int) ([]Card, error) {
	return NewDeckGenerator(nil, nil).Generate(pairsCount)
}

// Generate returns 2*pairsCount cards in uniformly random order
func (g *DeckGenerator) Generate(pairsCount int) ([]Card, error) {
	if err := ValidatePalette(g.faces); err != nil {
		return nil, err
	}
	if pairsCount < MinPairs || pairsCount > len(g.faces) {
		return nil, fmt.Errorf("%w: pairs count must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinPairs, len(g.faces), pairsCount)
	}

	cards := make([]Card, 0, pairsCount*2)
	for i, face := range g.faces[:pairsCount] {
		pairID := strconv.Itoa(i)
		cards = append(cards,
			Card{ID: pairID + "-a", PairID: pairID, Face: face},
			Card{ID: pairID + "-b", PairID: pairID, Face: face},
		)
	}

	g.shuffle(cards)
	return cards, nil
}

// shuffle is a Fisher-Yates shuffle
func (g *DeckGenerator) shuffle(cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := g.intN(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func (g *DeckGenerator) intN(n int) int {
	if g.rng != nil {
		return g.rng.IntN(n)
	}
	return rand.IntN(n)
}

// ValidatePalette checks that faces are non-empty and distinct
func ValidatePalette(faces []string) error {
	if len(faces) == 0 {
		return fmt.Errorf("%w: face palette is empty", ErrInvalidConfiguration)
	}
	seen := make(map[string]bool, len(faces))
	for i, face := range faces {
		if face == "" {
			return fmt.Errorf("%w: face %d is empty", ErrInvalidConfiguration, i+1)
		}
		if seen[face] {
			return fmt.Errorf("%w: face %q appears more than once", ErrInvalidConfiguration, face)
		}
		seen[face] = true
	}
	return nil
}
