package nats

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsio "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peymanfazeli/Memory-game/game/engine"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	messages []published
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{subject: subject, data: data})
	return nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "memory.sessions.ab12.card_flipped", Subject("ab12", engine.EventCardFlipped))
	assert.Equal(t, "memory.sessions.a_b_.game_won", Subject("a.b*", engine.EventGameWon))
	assert.Equal(t, "memory.sessions._.pair_matched", Subject("", engine.EventPairMatched))
}

func TestPublish(t *testing.T) {
	conn := &fakeConn{}
	pub := NewPublisher(conn)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pub.Publish("ab12", engine.Event{
		Type:      engine.EventPairMismatched,
		GameID:    "g1",
		CardIDs:   []string{"0-a", "1-b"},
		Message:   "Not a match, try again.",
		Timestamp: ts,
		State:     &engine.GameState{GameID: "g1", Status: engine.StatusPlaying, MovesCount: 1},
	})

	require.Len(t, conn.messages, 1)
	assert.Equal(t, "memory.sessions.ab12.pair_mismatched", conn.messages[0].subject)

	var msg EventMessage
	require.NoError(t, json.Unmarshal(conn.messages[0].data, &msg))
	assert.Equal(t, "ab12", msg.SessionID)
	assert.Equal(t, engine.EventPairMismatched, msg.Event)
	assert.Equal(t, []string{"0-a", "1-b"}, msg.CardIDs)
	assert.True(t, ts.Equal(msg.Timestamp))
	require.NotNil(t, msg.GameState)
	assert.Equal(t, 1, msg.GameState.MovesCount)
}

func TestPublishErrorIsSwallowed(t *testing.T) {
	pub := NewPublisher(&fakeConn{err: errors.New("nats: connection closed")})

	assert.NotPanics(t, func() {
		pub.Publish("ab12", engine.Event{Type: engine.EventGameStarted})
	})
}

func TestConnectFailsWithoutServer(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", natsio.Timeout(200*time.Millisecond), natsio.MaxReconnects(0))
	assert.Error(t, err)
}
