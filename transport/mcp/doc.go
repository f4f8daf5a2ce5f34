// Package mcp exposes memory game sessions to AI agents over the Model Context Protocol.
//
// The Client registers its tools on a mark3labs/mcp-go server and answers every
// call by proxying to the REST API, so the MCP surface never holds game state
// of its own.
//
// MCP Tools:
//   - create_session: Create a session and deal a game (config_id, pairs_count)
//   - list_sessions: List all active sessions
//   - get_session: Session details with the board
//   - game_state: The board, with face-down cards shown as [??]
//   - flip_card: Flip one card by id
//   - start_game: Deal a new game
//   - reset_game: Deal again with the current pair count
//   - move_history: Resolved moves with pagination
//   - list_configs: Available presets
//   - game_instructions: Rules and a playing strategy
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
