package nats

import (
	"encoding/json"
	"strings"
	"time"

	natsio "github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/peymanfazeli/Memory-game/game/engine"
)

// SubjectPrefix is the root of every subject the publisher writes to
const SubjectPrefix = "memory.sessions"

// Conn is the part of *nats.Conn the publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
}

// EventMessage is the JSON payload published for each engine event
type EventMessage struct {
	SessionID string            `json:"session_id"`
	Event     engine.EventType  `json:"event"`
	GameID    string            `json:"game_id,omitempty"`
	CardIDs   []string          `json:"card_ids,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	GameState *engine.GameState `json:"game_state,omitempty"`
}

// Publisher forwards engine events to NATS. It implements service.EventSink.
type Publisher struct {
	conn Conn
}

// Connect dials a NATS server with reconnect settings suited to a long-running game server
func Connect(url string, opts ...natsio.Option) (*natsio.Conn, error) {
	defaults := []natsio.Option{
		natsio.Name("memory-game"),
		natsio.Timeout(10 * time.Second),
		natsio.ReconnectWait(2 * time.Second),
		natsio.MaxReconnects(-1),
		natsio.DisconnectErrHandler(func(_ *natsio.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		natsio.ReconnectHandler(func(c *natsio.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	return natsio.Connect(url, append(defaults, opts...)...)
}

// NewPublisher creates a publisher on an open connection
func NewPublisher(conn Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Subject returns the subject for an event of a session: memory.sessions.<id>.<event>
func Subject(sessionID string, eventType engine.EventType) string {
	return SubjectPrefix + "." + subjectToken(sessionID) + "." + subjectToken(string(eventType))
}

// subjectToken replaces characters that have a meaning in NATS subjects
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Publish sends the event. Failures are logged, never returned, so the engine is not held up.
func (p *Publisher) Publish(sessionID string, event engine.Event) {
	data, err := json.Marshal(EventMessage{
		SessionID: sessionID,
		Event:     event.Type,
		GameID:    event.GameID,
		CardIDs:   event.CardIDs,
		Message:   event.Message,
		Timestamp: event.Timestamp,
		GameState: event.State,
	})
	if err != nil {
		log.Error().Err(err).Str("session", sessionID).Msg("failed to marshal nats event")
		return
	}

	subject := Subject(sessionID, event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Str("subject", subject).Msg("failed to publish nats event")
	}
}
