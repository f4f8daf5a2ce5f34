package service

import (
	"time"

	"github.com/peymanfazeli/Memory-game/game/engine"
)

// SessionInfo provides information about a game session.
// GameState is the public view: face-down cards carry no face or pair id.
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.GameState  `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// FlipResult contains the result of a flip request
type FlipResult struct {
	Accepted  bool              `json:"accepted"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	// Reason explains a rejected flip; rejections are not errors
	Reason string `json:"reason,omitempty"`
}

// Rejection reasons reported in FlipResult.Reason
const (
	ReasonNotPlaying    = "game_not_in_progress"
	ReasonBusy          = "resolving_pair"
	ReasonUnknownCard   = "unknown_card"
	ReasonAlreadyFaceUp = "card_already_face_up"
	ReasonMatched       = "card_already_matched"
)

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.HistoryEntry `json:"moves"`
	TotalMoves  int                   `json:"total_moves"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	TotalPages  int                   `json:"total_pages"`
	HasNext     bool                  `json:"has_next"`
	HasPrevious bool                  `json:"has_previous"`
}

// ConfigInfo provides information about a game preset
type ConfigInfo struct {
	Filename      string `json:"filename"`
	ConfigID      string `json:"config_id"` // The identifier to use for session creation
	Name          string `json:"name"`      // Display name
	Description   string `json:"description"`
	PairsCount    int    `json:"pairs_count"`
	PaletteSize   int    `json:"palette_size"` // Largest pair count the preset supports
	CustomPalette bool   `json:"custom_palette,omitempty"`
	RevealDelayMs int    `json:"reveal_delay_ms"`
	MaxMoves      int    `json:"max_moves,omitempty"`
}
