package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound queue sizes
	sendBufferSize      = 256
	broadcastBufferSize = 256

	// Time allowed for a client command to run
	commandTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Message represents a WebSocket message sent to clients
type Message struct {
	SessionID string            `json:"session_id"`
	GameState *engine.GameState `json:"game_state,omitempty"`
	Event     string            `json:"event,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
}

// Command is a request sent by a client
type Command struct {
	Action     string `json:"action"` // "flip" or "start"
	CardID     string `json:"card_id,omitempty"`
	PairsCount int    `json:"pairs_count,omitempty"`
}

// EventData carries the event details that are not part of the game state
type EventData struct {
	CardIDs   []string  `json:"card_ids,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandHandler executes client commands. service.GameService satisfies it.
type CommandHandler interface {
	Flip(ctx context.Context, sessionID, cardID string) (*service.FlipResult, error)
	StartGame(ctx context.Context, sessionID string, pairsCount int) (*engine.GameState, error)
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type reply struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	// Registered clients by session ID
	sessions map[string]map[*Client]bool

	// Outbound messages for every client of a session
	broadcast chan *Message

	// Outbound messages for a single client
	replies chan reply

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	commands CommandHandler
}

// Option configures a Hub
type Option func(*Hub)

// WithCommandHandler lets clients send flip and start commands
func WithCommandHandler(handler CommandHandler) Option {
	return func(h *Hub) {
		h.commands = handler
	}
}

// NewHub creates a new WebSocket hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBufferSize),
		replies:    make(chan reply, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetCommandHandler sets the handler for client commands. Call it before Run.
func (h *Hub) SetCommandHandler(handler CommandHandler) {
	h.commands = handler
}

// Run starts the hub's event loop and returns when ctx is cancelled.
// A hub runs once; connections served after it stops are closed straight away.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.sessions {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case r := <-h.replies:
			if h.sessions[r.client.sessionID][r.client] {
				h.deliver(r.client, r.data)
			}
		}
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	select {
	case <-h.done:
		http.Error(w, "websocket hub is shut down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		sessionID: sessionID,
	}

	// The greeting is queued before registration so it is the first frame the
	// client sees, and it is only written once the client is registered.
	if greeting, err := json.Marshal(&Message{SessionID: sessionID, Event: "connected"}); err == nil {
		client.send <- greeting
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// Publish forwards an engine event to the clients of a session.
// It never blocks: when the hub is saturated the event is dropped.
func (h *Hub) Publish(sessionID string, event engine.Event) {
	h.enqueue(&Message{
		SessionID: sessionID,
		GameState: event.State,
		Event:     string(event.Type),
		Data: EventData{
			CardIDs:   event.CardIDs,
			Message:   event.Message,
			Timestamp: event.Timestamp,
		},
	})
}

// BroadcastToSession sends a game state update to all clients in a session
func (h *Hub) BroadcastToSession(sessionID string, state *engine.GameState) {
	h.enqueue(&Message{
		SessionID: sessionID,
		GameState: state,
		Event:     "state_update",
	})
}

func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn().Str("session", message.SessionID).Str("event", message.Event).Msg("websocket broadcast queue full, dropping message")
	}
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	log.Debug().Str("session", client.sessionID).Int("clients", len(h.sessions[client.sessionID])).Msg("websocket client registered")
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	if clients, ok := h.sessions[client.sessionID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)

			// Clean up empty sessions
			if len(clients) == 0 {
				delete(h.sessions, client.sessionID)
			}

			log.Debug().Str("session", client.sessionID).Int("clients", len(clients)).Msg("websocket client unregistered")
		}
	}
}

// broadcastMessage sends a message to all clients in a session
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("session", message.SessionID).Msg("failed to marshal broadcast message")
		return
	}

	for client := range h.sessions[message.SessionID] {
		h.deliver(client, data)
	}
}

// deliver queues data for one client, dropping the client if it cannot keep up
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.unregisterClient(client)
	}
}

// handleCommand runs a client command and queues the reply for that client only
func (c *Client) handleCommand(raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.reply("error", map[string]string{"error": "invalid command"})
		return
	}
	if c.hub.commands == nil {
		c.reply("error", map[string]string{"error": "commands are not enabled"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch cmd.Action {
	case "flip":
		result, err := c.hub.commands.Flip(ctx, c.sessionID, cmd.CardID)
		if err != nil {
			c.reply("error", map[string]string{"error": err.Error()})
			return
		}
		c.reply("flip_result", result)

	case "start":
		if _, err := c.hub.commands.StartGame(ctx, c.sessionID, cmd.PairsCount); err != nil {
			c.reply("error", map[string]string{"error": err.Error()})
		}

	default:
		c.reply("error", map[string]string{"error": "unknown action: " + cmd.Action})
	}
}

func (c *Client) reply(event string, data interface{}) {
	payload, err := json.Marshal(&Message{SessionID: c.sessionID, Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("session", c.sessionID).Msg("failed to marshal reply")
		return
	}
	select {
	case c.hub.replies <- reply{client: c, data: payload}:
	default:
		log.Warn().Str("session", c.sessionID).Msg("websocket reply queue full, dropping reply")
	}
}

// readPump pumps commands from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			// Run already closed every registered client
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("session", c.sessionID).Msg("websocket read error")
			}
			break
		}
		c.handleCommand(raw)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
// Every message is written as its own frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
