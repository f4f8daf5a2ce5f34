// Command validate checks the game preset JSON files in a configs directory.
// It reports every problem it finds instead of stopping at the first one:
//   - JSON structure, unknown fields and required fields
//   - Pair count against the face palette (built-in or custom)
//   - Duplicate or empty faces in a custom palette
//   - Reveal delay bounds and move limits that make the game unwinnable
//   - Required messages and the move count verb in the victory message
//
// It exits with a non-zero status if any preset is invalid.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/peymanfazeli/Memory-game/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Info lists facts about a valid preset, Warnings list legal but questionable settings.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single preset file
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var config engine.GameConfig
	if err := dec.Decode(&config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	validatePreset(&config, &result)

	// the engine has the final say; this only triggers if the checks above miss a rule
	if result.Valid {
		if err := engine.ValidateGameConfig(&config); err != nil {
			result.fail("Rejected by engine: %v", err)
		}
	}

	if result.Valid {
		palette := "built-in"
		if len(config.Faces) > 0 {
			palette = "custom"
		}
		result.Info = append(result.Info,
			fmt.Sprintf("✓ Name: %s", config.Name),
			fmt.Sprintf("✓ Pairs: %d (%d cards)", config.PairsCount, 2*config.PairsCount),
			fmt.Sprintf("✓ Palette: %s, %d faces", palette, len(config.Palette())),
			fmt.Sprintf("✓ Reveal delay: %dms", config.RevealDelayMs),
		)
		if config.MaxMoves > 0 {
			result.Info = append(result.Info, fmt.Sprintf("✓ Move limit: %d", config.MaxMoves))
		} else {
			result.Info = append(result.Info, "✓ Move limit: none")
		}
	}

	return result
}

// validatePreset records every rule the preset breaks
func validatePreset(config *engine.GameConfig, result *ValidationResult) {
	if strings.TrimSpace(config.Name) == "" {
		result.fail("name is required")
	}
	if strings.TrimSpace(config.Description) == "" {
		result.fail("description is required")
	}

	// Palette
	faces := config.Palette()
	seen := make(map[string]int, len(faces))
	for i, face := range faces {
		if face == "" {
			result.fail("Empty face at position %d", i+1)
			continue
		}
		if prev, dup := seen[face]; dup {
			result.fail("Duplicate face %q at positions %d and %d", face, prev+1, i+1)
			continue
		}
		seen[face] = i
		if utf8.RuneCountInString(face) > 4 {
			result.warn("Face %q is long and may not fit on a card", face)
		}
	}

	if config.PairsCount < engine.MinPairs || config.PairsCount > len(faces) {
		result.fail("pairs_count must be between %d and %d, got %d", engine.MinPairs, len(faces), config.PairsCount)
	}

	// Timing
	if config.RevealDelayMs < engine.MinRevealDelayMs || config.RevealDelayMs > engine.MaxRevealDelayMs {
		result.fail("reveal_delay_ms must be between %d and %d, got %d",
			engine.MinRevealDelayMs, engine.MaxRevealDelayMs, config.RevealDelayMs)
	}

	// Move limit
	switch {
	case config.MaxMoves < 0:
		result.fail("max_moves cannot be negative, got %d", config.MaxMoves)
	case config.MaxMoves > 0 && config.MaxMoves < config.PairsCount:
		result.fail("max_moves (%d) is lower than pairs_count (%d), the game cannot be won", config.MaxMoves, config.PairsCount)
	case config.MaxMoves > 0 && config.MaxMoves < 2*config.PairsCount-1:
		// with perfect memory the worst case is 2n-1 moves
		result.warn("max_moves (%d) can defeat a player who never forgets a card", config.MaxMoves)
	}

	// Messages
	if config.Messages.Welcome == "" {
		result.fail("Missing required message: welcome")
	}
	if config.Messages.Victory == "" {
		result.fail("Missing required message: victory")
	} else if err := engine.ValidateVictoryMessage(config.Messages.Victory); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), engine.ErrInvalidConfiguration.Error()+": "))
	}
	if config.MaxMoves > 0 && config.Messages.Defeat == "" {
		result.fail("Missing required message: defeat (max_moves is set)")
	}
	if config.MaxMoves == 0 && config.Messages.Defeat != "" {
		result.warn("defeat message is never shown without max_moves")
	}
	if config.Messages.Match == "" {
		result.warn("match message is empty")
	}
	if config.Messages.Mismatch == "" {
		result.warn("mismatch message is empty")
	}
}

// validateDir validates every *.json file in dir, in name order
func validateDir(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no presets found in %s", dir)
	}
	sort.Strings(files)

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, validateConfig(file))
	}
	return results, nil
}

// report prints the results and returns whether every preset is valid
func report(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(w, "  ⚠️  "+warning)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "check game preset files",
		ArgsUsage: "[configs dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "configs", Usage: "preset directory", Sources: cli.EnvVars("CONFIG_DIR")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.String("dir")
			if cmd.Args().Present() {
				dir = cmd.Args().First()
			}

			results, err := validateDir(dir)
			if err != nil {
				return err
			}
			if !report(cmd.Root().Writer, results) {
				return errors.New("some configurations are invalid")
			}
			return nil
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("validation failed")
	}
}
