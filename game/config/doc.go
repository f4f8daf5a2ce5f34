// Package config provides game preset management for the memory game.
//
// The config package handles:
//   - Loading presets from JSON files named <config_id>.json
//   - Validation of every preset read or saved, face palette and pair count included
//   - Default preset selection (the chosen default, then classic, then the easiest preset)
//   - Listing presets easiest first, with the size of each palette
//
// Preset Format:
//
// Presets are stored as JSON files in the configs directory. Each one defines
// the pair count, the reveal delay in milliseconds, an optional move limit,
// an optional face palette and the player-facing messages.
//
// Available Presets:
//   - classic: six pairs, standard delay
//   - easy: four pairs, slow reveal
//   - hard: twelve pairs with a move limit
//   - challenge: all twenty faces, short reveal, tight move limit
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	preset, err := manager.LoadConfig("easy")
//	defaultPreset := manager.GetDefault()
//	presets, err := manager.ListConfigs()
package config
