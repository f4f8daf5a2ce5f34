package engine

import "time"

// Status represents the lifecycle status of a game
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"

	// Validation constants
	MinPairs           = 1
	MinRevealDelayMs   = 50
	MaxRevealDelayMs   = 10000
	DefaultRevealDelay = 800 * time.Millisecond
	MaxFlippedCards    = 2
)

// Card represents a single card in the deck
type Card struct {
	ID        string `json:"id"`
	PairID    string `json:"pair_id"`
	Face      string `json:"face"`
	IsFlipped bool   `json:"is_flipped"`
	IsMatched bool   `json:"is_matched"`
}

// FaceDown reports whether the card's face is hidden from the player
func (c Card) FaceDown() bool {
	return !c.IsFlipped && !c.IsMatched
}

// GameConfig represents a game preset loaded from JSON
type GameConfig struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	PairsCount    int          `json:"pairs_count"`
	RevealDelayMs int          `json:"reveal_delay_ms"`
	MaxMoves      int          `json:"max_moves,omitempty"` // 0 disables the move limit
	Faces         []string     `json:"faces,omitempty"`     // empty uses DefaultFaces
	Messages      GameMessages `json:"messages"`
}

// GameMessages holds the player-facing texts of a preset.
// Victory is a format string receiving the move count.
type GameMessages struct {
	Welcome  string `json:"welcome"`
	Match    string `json:"match"`
	Mismatch string `json:"mismatch"`
	Victory  string `json:"victory"`
	Defeat   string `json:"defeat,omitempty"`
}

// RevealDelay returns the delay between the second flip and its resolution
func (c *GameConfig) RevealDelay() time.Duration {
	if c == nil || c.RevealDelayMs <= 0 {
		return DefaultRevealDelay
	}
	return time.Duration(c.RevealDelayMs) * time.Millisecond
}

// Palette returns the faces available to the deck generator
func (c *GameConfig) Palette() []string {
	if c == nil || len(c.Faces) == 0 {
		return DefaultFaces
	}
	return c.Faces
}

// GameState represents the complete game state
type GameState struct {
	GameID       string         `json:"game_id"`
	Deck         []Card         `json:"deck"`
	FlippedCards []Card         `json:"flipped_cards"`
	MovesCount   int            `json:"moves_count"`
	MatchedPairs int            `json:"matched_pairs"`
	PairsCount   int            `json:"pairs_count"`
	IsBusy       bool           `json:"is_busy"`
	Status       Status         `json:"status"`
	Message      string         `json:"message"`
	ConfigName   string         `json:"config_name"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
	History      []HistoryEntry `json:"history"`
}

// HistoryEntry records one resolved move (a pair of flips)
type HistoryEntry struct {
	MoveNumber int       `json:"move_number"`
	CardIDs    []string  `json:"card_ids"`
	Faces      []string  `json:"faces"`
	Matched    bool      `json:"matched"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventType identifies a change notification emitted by the engine
type EventType string

const (
	EventGameStarted    EventType = "game_started"
	EventCardFlipped    EventType = "card_flipped"
	EventPairMatched    EventType = "pair_matched"
	EventPairMismatched EventType = "pair_mismatched"
	EventGameWon        EventType = "game_won"
	EventGameLost       EventType = "game_lost"
)

// Event is delivered to subscribers after every state change.
// State is a snapshot taken right after the change.
type Event struct {
	Type      EventType  `json:"type"`
	GameID    string     `json:"game_id"`
	CardIDs   []string   `json:"card_ids,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	State     *GameState `json:"state,omitempty"`
}

// Listener receives engine events
type Listener func(Event)
