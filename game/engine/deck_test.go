package engine

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeck_Properties(t *testing.T) {
	for pairs := MinPairs; pairs <= len(DefaultFaces); pairs++ {
		t.Run(strconv.Itoa(pairs), func(t *testing.T) {
			deck, err := GenerateDeck(pairs)
			require.NoError(t, err)
			require.Len(t, deck, 2*pairs)

			ids := map[string]bool{}
			pairCount := map[string]int{}
			faces := map[string]string{}
			for _, card := range deck {
				assert.False(t, ids[card.ID], "duplicate id %s", card.ID)
				ids[card.ID] = true
				pairCount[card.PairID]++
				if face, ok := faces[card.PairID]; ok {
					assert.Equal(t, face, card.Face)
				}
				faces[card.PairID] = card.Face
				assert.False(t, card.IsFlipped)
				assert.False(t, card.IsMatched)
			}
			assert.Len(t, pairCount, pairs)
			for pairID, n := range pairCount {
				assert.Equal(t, 2, n, "pair %s", pairID)
			}
			assert.NoError(t, ValidateDeck(deck))
		})
	}
}

func TestGenerateDeck_UsesFirstFacesInOrder(t *testing.T) {
	deck, err := GenerateDeck(3)
	require.NoError(t, err)

	got := map[string]bool{}
	for _, card := range deck {
		got[card.Face] = true
	}
	assert.Equal(t, map[string]bool{DefaultFaces[0]: true, DefaultFaces[1]: true, DefaultFaces[2]: true}, got)
}

func TestGenerateDeck_InvalidPairsCount(t *testing.T) {
	for _, pairs := range []int{0, -1, len(DefaultFaces) + 1} {
		_, err := GenerateDeck(pairs)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "pairs=%d", pairs)
	}
}

func TestDeckGenerator_CustomPalette(t *testing.T) {
	gen := NewDeckGenerator([]string{"A", "B"}, nil)

	deck, err := gen.Generate(2)
	require.NoError(t, err)
	assert.Len(t, deck, 4)

	_, err = gen.Generate(3)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestDeckGenerator_SeededIsReproducible(t *testing.T) {
	a, err := NewDeckGenerator(nil, rand.New(rand.NewPCG(7, 11))).Generate(8)
	require.NoError(t, err)
	b, err := NewDeckGenerator(nil, rand.New(rand.NewPCG(7, 11))).Generate(8)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// Every card should land in every position with equal frequency. The chi-square
// statistic per card has three degrees of freedom; 16.27 is the 0.999 quantile.
func TestDeckGenerator_ShuffleUniformity(t *testing.T) {
	const (
		pairs    = 2
		trials   = 40000
		critical = 16.27
	)
	gen := NewDeckGenerator(nil, rand.New(rand.NewPCG(42, 1024)))
	size := 2 * pairs

	counts := map[string][]int{}
	for i := 0; i < trials; i++ {
		deck, err := gen.Generate(pairs)
		require.NoError(t, err)
		for pos, card := range deck {
			if counts[card.ID] == nil {
				counts[card.ID] = make([]int, size)
			}
			counts[card.ID][pos]++
		}
	}

	expected := float64(trials) / float64(size)
	require.Len(t, counts, size)
	for id, positions := range counts {
		chi := 0.0
		for _, observed := range positions {
			d := float64(observed) - expected
			chi += d * d / expected
		}
		assert.Less(t, chi, critical, "card %s positions %v", id, positions)
	}
}

func TestValidatePalette(t *testing.T) {
	assert.NoError(t, ValidatePalette(DefaultFaces))
	assert.ErrorIs(t, ValidatePalette(nil), ErrInvalidConfiguration)
	assert.ErrorIs(t, ValidatePalette([]string{"A", ""}), ErrInvalidConfiguration)
	assert.ErrorIs(t, ValidatePalette([]string{"A", "B", "A"}), ErrInvalidConfiguration)
}

func TestValidateDeck(t *testing.T) {
	valid := []Card{
		{ID: "0-a", PairID: "0", Face: "X"},
		{ID: "0-b", PairID: "0", Face: "X"},
	}
	assert.NoError(t, ValidateDeck(valid))

	tests := []struct {
		name string
		deck []Card
	}{
		{"odd", valid[:1]},
		{"duplicate id", []Card{{ID: "x", PairID: "0", Face: "X"}, {ID: "x", PairID: "0", Face: "X"}}},
		{"triple pair", []Card{
			{ID: "1", PairID: "0", Face: "X"}, {ID: "2", PairID: "0", Face: "X"},
			{ID: "3", PairID: "0", Face: "X"}, {ID: "4", PairID: "1", Face: "Y"},
		}},
		{"face mismatch", []Card{{ID: "1", PairID: "0", Face: "X"}, {ID: "2", PairID: "0", Face: "Y"}}},
		{"matched face down", []Card{
			{ID: "1", PairID: "0", Face: "X", IsMatched: true},
			{ID: "2", PairID: "0", Face: "X", IsMatched: true, IsFlipped: true},
		}},
		{"half matched", []Card{
			{ID: "1", PairID: "0", Face: "X", IsMatched: true, IsFlipped: true},
			{ID: "2", PairID: "0", Face: "X"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateDeck(tt.deck))
		})
	}
}
