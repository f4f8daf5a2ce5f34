// Package service provides the business logic layer for the memory game.
//
// The service package implements:
//   - Multi-session game management
//   - Preset loading through a ConfigManager
//   - Flip processing with rejection reasons
//   - Move history pagination
//   - Public (masked) views of the game state for transports
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages preset loading and validation.
// EventSink receives every engine event, already masked, for push transports.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP/NATS)
// and the game engine. Each session owns its own engine instance; nothing is
// shared between sessions.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	info, err := gameService.CreateSession(ctx, "easy", 0)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Flip(ctx, info.ID, "0-a")
package service
