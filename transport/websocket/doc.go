// Package websocket provides the real-time transport for memory game sessions.
//
// A central Hub owns every connection. Clients join a session with
// /ws?session=<id> and receive a "connected" frame once registered, then one
// JSON frame per engine event:
//
//	{"session_id": "abc1", "event": "card_flipped", "game_state": {...}, "data": {"card_ids": ["3-a"]}}
//
// The game state is the masked public view, so face-down cards never reveal
// their face. The Hub implements service.EventSink and is attached to the
// session manager; publishing never blocks the engine.
//
// Clients may also play over the socket:
//
//	{"action": "flip", "card_id": "3-a"}
//	{"action": "start", "pairs_count": 8}
//
// Replies ("flip_result" or "error") go only to the sender, while the resulting
// state changes reach every client of the session through the event stream.
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithCommandHandler(gameService))
//	go hub.Run(ctx)
//	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
