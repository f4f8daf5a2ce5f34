// Package engine provides the core game logic for the memory matching game.
//
// The engine package implements:
//   - Deck generation with an unbiased shuffle over a face palette
//   - The turn state machine: flip, busy lock, delayed pair resolution
//   - Win and move-limit loss detection
//   - Change notifications for presentation layers
//   - Configuration loading and validation
//
// Core Types:
//
// The Engine interface defines the main contract for game operations,
// implemented by GameEngine. GameState is the snapshot handed to renderers,
// while GameConfig holds a preset loaded from JSON.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(engine.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	state, err := gameEngine.StartGame(6)
//	if err != nil {
//		log.Fatal(err)
//	}
//	gameEngine.RequestFlip(state.Deck[0].ID)
//	gameEngine.RequestFlip(state.Deck[1].ID)
//
// Game Rules:
//
// The player flips two cards per move. After the reveal delay the pair is
// compared: equal pair ids stay face up as matched, anything else flips back.
// While a pair is waiting for resolution every flip request is ignored.
// Matching every pair wins the game; a preset with max_moves loses the game
// once that many moves were made without clearing the board.
//
// Starting a new game while a resolution is pending discards that resolution.
// Tests drive the delay deterministically through a Scheduler (see enginetest).
package engine
