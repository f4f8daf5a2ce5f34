package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peymanfazeli/Memory-game/api"
	"github.com/peymanfazeli/Memory-game/game/config"
	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/service"
	"github.com/peymanfazeli/Memory-game/game/session"
	"github.com/peymanfazeli/Memory-game/game/strategy"
)

// quickReveal resolves pairs almost immediately so games finish fast
var quickReveal = engine.SchedulerFunc(func(d time.Duration, f func()) engine.Timer {
	return time.AfterFunc(time.Millisecond, f)
})

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	configs, err := config.NewManager(filepath.Join("..", "..", "configs"))
	require.NoError(t, err)

	sessions := session.NewManager(session.WithEngineOptions(engine.WithScheduler(quickReveal)))
	svc := service.NewGameService(sessions, configs)

	srv := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(srv.Close)
	return srv
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := cmd.Run(ctx, append([]string{"autoplay"}, args...))
	return out.String(), err
}

func TestClient_CreateAndFlip(t *testing.T) {
	srv := startServer(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	state, err := client.CreateSession(ctx, "easy", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, client.SessionID())
	assert.Equal(t, engine.StatusPlaying, state.Status)
	assert.Len(t, state.Deck, 8)
	for _, card := range state.Deck {
		assert.Empty(t, card.Face, "face-down cards must be masked")
	}

	result, err := client.Flip(ctx, state.Deck[0].ID)
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.NotEmpty(t, result.GameState.Deck[0].Face)

	again, err := client.Flip(ctx, state.Deck[0].ID)
	require.NoError(t, err)
	assert.False(t, again.Accepted)
	assert.NotEmpty(t, again.Reason)
}

func TestClient_Errors(t *testing.T) {
	srv := startServer(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	_, err := client.CreateSession(ctx, "no-such-preset", 0)
	assert.Error(t, err)

	client.UseSession("zzzz")
	_, err = client.GetState(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestPlay_WinsWithPerfectMemory(t *testing.T) {
	srv := startServer(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	state, err := client.CreateSession(ctx, "easy", 0)
	require.NoError(t, err)

	result, err := play(ctx, client, strategy.NewMemoryStrategy(), state,
		playOptions{maxFlips: 100, poll: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusWon, result.status)
	assert.Equal(t, 4, result.pairs)
	assert.GreaterOrEqual(t, result.moves, 4)
	assert.LessOrEqual(t, result.moves, 8)
}

func TestPlay_GivesUp(t *testing.T) {
	srv := startServer(t)
	client := NewClient(srv.URL)
	ctx := context.Background()

	state, err := client.CreateSession(ctx, "easy", 0)
	require.NoError(t, err)

	_, err = play(ctx, client, strategy.NewMemoryStrategy(), state,
		playOptions{maxFlips: 3, poll: 5 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gave up after 3 flips")
}

func TestPlay_StopsOnCancel(t *testing.T) {
	srv := startServer(t)
	client := NewClient(srv.URL)

	state, err := client.CreateSession(context.Background(), "easy", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = play(ctx, client, strategy.NewMemoryStrategy(), state,
		playOptions{maxFlips: 100, poll: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCommand_PlaysSeveralGames(t *testing.T) {
	srv := startServer(t)

	out, err := runCommand(t,
		"--url", srv.URL,
		"--config", "easy",
		"--session-file=",
		"--games", "3",
		"--poll", "5ms",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Games: 3, Won: 3")
	assert.Contains(t, out, "Average moves:")
}

func TestCommand_RemembersSession(t *testing.T) {
	srv := startServer(t)
	sessionFile := filepath.Join(t.TempDir(), "session")

	out, err := runCommand(t, "--url", srv.URL, "--config", "easy", "--session-file", sessionFile, "--poll", "5ms")
	require.NoError(t, err)

	saved, err := os.ReadFile(sessionFile)
	require.NoError(t, err)
	assert.Len(t, saved, 4)
	assert.Contains(t, out, "Session: "+string(saved))

	out, err = runCommand(t, "--url", srv.URL, "--session-file", sessionFile, "--poll", "5ms")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: "+string(saved))
	assert.Contains(t, out, "Won: 1")
}
