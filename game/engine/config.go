package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfiguration)
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfiguration)
	}
	if config.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidConfiguration)
	}

	// Validate palette and pair count
	faces := config.Palette()
	if err := ValidatePalette(faces); err != nil {
		return err
	}
	if config.PairsCount < MinPairs || config.PairsCount > len(faces) {
		return fmt.Errorf("%w: pairs_count must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinPairs, len(faces), config.PairsCount)
	}

	// Validate timing
	if config.RevealDelayMs < MinRevealDelayMs || config.RevealDelayMs > MaxRevealDelayMs {
		return fmt.Errorf("%w: reveal_delay_ms must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinRevealDelayMs, MaxRevealDelayMs, config.RevealDelayMs)
	}

	if config.MaxMoves < 0 {
		return fmt.Errorf("%w: max_moves cannot be negative, got %d", ErrInvalidConfiguration, config.MaxMoves)
	}
	if config.MaxMoves > 0 && config.MaxMoves < config.PairsCount {
		return fmt.Errorf("%w: max_moves (%d) is lower than pairs_count (%d), the game cannot be won",
			ErrInvalidConfiguration, config.MaxMoves, config.PairsCount)
	}

	// Validate messages
	if config.Messages.Welcome == "" {
		return fmt.Errorf("%w: messages.welcome is required", ErrInvalidConfiguration)
	}
	if config.Messages.Victory == "" {
		return fmt.Errorf("%w: messages.victory is required", ErrInvalidConfiguration)
	}
	if err := ValidateVictoryMessage(config.Messages.Victory); err != nil {
		return err
	}
	if config.MaxMoves > 0 && config.Messages.Defeat == "" {
		return fmt.Errorf("%w: messages.defeat is required when max_moves is set", ErrInvalidConfiguration)
	}

	return nil
}

// ValidateVictoryMessage checks that msg formats the move count with exactly one %d.
// A literal percent sign is written as %%; any other verb is rejected.
func ValidateVictoryMessage(msg string) error {
	moves := 0
	for i := 0; i < len(msg); i++ {
		if msg[i] != '%' {
			continue
		}
		if i+1 == len(msg) {
			return fmt.Errorf("%w: messages.victory ends with a lone %%", ErrInvalidConfiguration)
		}
		i++
		switch msg[i] {
		case '%':
		case 'd':
			moves++
		default:
			return fmt.Errorf("%w: messages.victory may only use %%d, found %q",
				ErrInvalidConfiguration, "%"+string(msg[i]))
		}
	}
	if moves != 1 {
		return fmt.Errorf("%w: messages.victory must contain %%d exactly once for the move count, found %d",
			ErrInvalidConfiguration, moves)
	}
	return nil
}

// LoadGameConfig loads a game configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigByName loads a preset by name from the configs directory
func LoadConfigByName(configName string) (*GameConfig, error) {
	if !strings.HasSuffix(configName, ".json") {
		configName = configName + ".json"
	}

	config, err := LoadGameConfig(filepath.Join("configs", configName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file '%s' not found", configName)
		}
		return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
	}
	return config, nil
}

// DefaultConfig returns the built-in classic preset
func DefaultConfig() *GameConfig {
	return &GameConfig{
		Name:          "Classic",
		Description:   "Six pairs of animal cards with the standard reveal delay",
		PairsCount:    6,
		RevealDelayMs: int(DefaultRevealDelay.Milliseconds()),
		Messages: GameMessages{
			Welcome:  "Find all the matching pairs!",
			Match:    "It's a match!",
			Mismatch: "Not a match, try again.",
			Victory:  "You won in %d moves!",
			Defeat:   "Out of moves! Game over.",
		},
	}
}
