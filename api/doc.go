// Package api provides the HTTP REST API for memory game sessions.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session and deal a game ({config_id?, pairs_count?})
//   - GET /api/sessions - List sessions (sort=created|accessed, order=asc|desc, limit)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Public state snapshot
//   - POST /api/sessions/{id}/start - Deal a new game ({pairs_count?})
//   - POST /api/sessions/{id}/flip - Flip a card ({card_id})
//   - POST /api/sessions/{id}/reset - Deal again with the current pair count
//   - GET /api/sessions/{id}/history - Resolved moves (page, limit, order)
//
// Configuration:
//   - GET /api/configs - List presets
//   - POST /api/configs - Save a preset
//   - GET /api/configs/{name} - Get a preset
//
// Other:
//   - GET /health - Liveness
//   - GET /ws?session={id} - Live event stream (see transport/websocket)
//
// A flip that the game does not allow is answered with 200 and
// {"accepted": false, "reason": "..."}; it is not an error.
//
// Errors are returned as {"error": "message"}: 404 for unknown sessions and
// presets, 400 for invalid pair counts or presets, 500 otherwise.
//
// Usage:
//
//	server := api.NewServer(gameService, hub)
//	http.ListenAndServe(":8080", server)
package api
