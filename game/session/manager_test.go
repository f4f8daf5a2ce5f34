package session

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/engine/enginetest"
)

func createTestConfig() *engine.GameConfig {
	config := engine.DefaultConfig()
	config.Name = "Session Test"
	config.PairsCount = 3
	return config
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
	states []*engine.GameState
}

func (r *recordingSink) Publish(sessionID string, ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sessionID+":"+string(ev.Type))
	r.states = append(r.states, ev.State)
}

func (r *recordingSink) snapshot() ([]string, []*engine.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([]*engine.GameState(nil), r.states...)
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	t.Run("generated id", func(t *testing.T) {
		session, err := manager.Create("", config)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{4}$`), session.ID)
		assert.NotNil(t, session.Engine)
		assert.Equal(t, engine.StatusIdle, session.Engine.GetState().Status)
		assert.WithinDuration(t, time.Now(), session.CreatedAt, time.Second)
	})

	t.Run("explicit id", func(t *testing.T) {
		session, err := manager.Create("Game1", config)
		require.NoError(t, err)
		assert.Equal(t, "Game1", session.ID)
	})

	t.Run("duplicate id is case-insensitive", func(t *testing.T) {
		_, err := manager.Create("GAME1", config)
		assert.ErrorIs(t, err, ErrSessionAlreadyExists)
	})

	t.Run("path characters rejected", func(t *testing.T) {
		_, err := manager.Create("../etc", config)
		assert.ErrorIs(t, err, ErrInvalidSessionID)
	})

	t.Run("invalid config", func(t *testing.T) {
		bad := createTestConfig()
		bad.PairsCount = 0
		_, err := manager.Create("bad", bad)
		assert.ErrorIs(t, err, engine.ErrInvalidConfiguration)
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	created, err := manager.Create("AbCd", createTestConfig())
	require.NoError(t, err)

	for _, id := range []string{"AbCd", "abcd", "ABCD"} {
		got, err := manager.Get(id)
		require.NoError(t, err, id)
		assert.Same(t, created, got)
	}

	_, err = manager.Get("zzzz")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	first, err := manager.GetOrCreate("s1", config)
	require.NoError(t, err)
	second, err := manager.GetOrCreate("s1", config)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, manager.Count())
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	_, err := manager.Create("del1", createTestConfig())
	require.NoError(t, err)

	require.NoError(t, manager.Delete("DEL1"))
	_, err = manager.Get("del1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, manager.Delete("del1"), ErrSessionNotFound)

	_, err = manager.Create("mem1", createTestConfig())
	require.NoError(t, err)
	require.NoError(t, manager.DeleteFromMemory("mem1"))
	assert.ErrorIs(t, manager.DeleteFromMemory("mem1"), ErrSessionNotFound)
}

func TestManager_List(t *testing.T) {
	manager := NewManager()
	assert.Empty(t, manager.List())

	for i := 0; i < 3; i++ {
		_, err := manager.Create(fmt.Sprintf("list%d", i), createTestConfig())
		require.NoError(t, err)
	}
	assert.Len(t, manager.List(), 3)
	assert.Equal(t, 3, manager.Count())
}

func TestManager_CleanupExpired(t *testing.T) {
	manager := NewManager()
	old, err := manager.Create("old", createTestConfig())
	require.NoError(t, err)
	_, err = manager.Create("new", createTestConfig())
	require.NoError(t, err)

	old.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	assert.Equal(t, 1, manager.CleanupExpiredSessions(time.Hour))
	_, err = manager.Get("old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = manager.Get("new")
	assert.NoError(t, err)
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, err := manager.Create("touch", createTestConfig())
	require.NoError(t, err)
	before := session.LastAccessedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, manager.UpdateLastAccessed("TOUCH"))
	assert.True(t, session.LastAccessedAt.After(before))

	assert.ErrorIs(t, manager.UpdateLastAccessed("missing"), ErrSessionNotFound)
}

func TestManager_EventSinkReceivesMaskedEvents(t *testing.T) {
	sched := enginetest.NewManualScheduler()
	sink := &recordingSink{}
	manager := NewManager(WithEventSink(sink), WithEngineOptions(engine.WithScheduler(sched)))

	session, err := manager.Create("evt1", createTestConfig())
	require.NoError(t, err)
	state, err := session.Engine.StartGame(2)
	require.NoError(t, err)

	var pair []string
	for _, card := range state.Deck {
		if card.PairID == "0" {
			pair = append(pair, card.ID)
		}
	}
	require.True(t, session.Engine.RequestFlip(pair[0]))
	require.True(t, session.Engine.RequestFlip(pair[1]))
	sched.FireAll()

	events, states := sink.snapshot()
	assert.Equal(t, []string{
		"evt1:game_started",
		"evt1:card_flipped",
		"evt1:card_flipped",
		"evt1:pair_matched",
	}, events)

	for _, card := range states[0].Deck {
		assert.Empty(t, card.Face, "face-down cards are masked")
	}
	last := states[len(states)-1]
	for _, card := range last.Deck {
		if card.PairID != "" {
			assert.True(t, card.IsMatched)
		}
	}
	assert.Equal(t, 1, last.MatchedPairs)
}

func TestManager_DeletedSessionStopsPublishing(t *testing.T) {
	sched := enginetest.NewManualScheduler()
	sink := &recordingSink{}
	manager := NewManager(WithEventSink(sink), WithEngineOptions(engine.WithScheduler(sched)))

	session, err := manager.Create("gone", createTestConfig())
	require.NoError(t, err)
	state, err := session.Engine.StartGame(2)
	require.NoError(t, err)
	require.True(t, session.Engine.RequestFlip(state.Deck[0].ID))
	require.True(t, session.Engine.RequestFlip(state.Deck[1].ID))

	require.NoError(t, manager.Delete("gone"))
	before, _ := sink.snapshot()
	sched.FireAll()

	after, _ := sink.snapshot()
	assert.Equal(t, before, after)
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	config := createTestConfig()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%02d", i)
			session, err := manager.Create(id, config)
			if !assert.NoError(t, err) {
				return
			}
			_, err = session.Engine.StartGame(2)
			assert.NoError(t, err)
			_, err = manager.Get(id)
			assert.NoError(t, err)
			assert.NoError(t, manager.UpdateLastAccessed(id))
			manager.List()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, manager.Count())
}

func TestManager_SessionIsolation(t *testing.T) {
	manager := NewManager()
	a, err := manager.Create("iso-a", createTestConfig())
	require.NoError(t, err)
	b, err := manager.Create("iso-b", createTestConfig())
	require.NoError(t, err)

	state, err := a.Engine.StartGame(2)
	require.NoError(t, err)
	require.True(t, a.Engine.RequestFlip(state.Deck[0].ID))

	assert.Equal(t, engine.StatusIdle, b.Engine.GetState().Status)
	assert.Len(t, a.Engine.GetState().FlippedCards, 1)
}

func TestManager_SessionIDGeneration(t *testing.T) {
	manager := NewManager()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		session, err := manager.Create("", createTestConfig())
		require.NoError(t, err)
		assert.False(t, seen[session.ID], "duplicate id %s", session.ID)
		seen[session.ID] = true
	}
}
