package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peymanfazeli/Memory-game/game/config"
	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/engine/enginetest"
	"github.com/peymanfazeli/Memory-game/game/service"
)

func newTestPersistence(t *testing.T, opts ...engine.Option) (*FilePersistence, *config.Manager) {
	t.Helper()
	configManager, err := config.NewManager("../../configs")
	require.NoError(t, err)

	persistence, err := NewFilePersistence(t.TempDir(), configManager, opts...)
	require.NoError(t, err)
	return persistence, configManager
}

func newTestSession(t *testing.T, id string, gameConfig *engine.GameConfig, opts ...engine.Option) *service.Session {
	t.Helper()
	eng, err := engine.NewEngine(gameConfig, opts...)
	require.NoError(t, err)
	return &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         gameConfig,
		CreatedAt:      time.Now().Add(-time.Minute).Round(time.Second),
		LastAccessedAt: time.Now().Round(time.Second),
	}
}

func TestFilePersistence_SaveAndLoad(t *testing.T) {
	persistence, configManager := newTestPersistence(t)
	session := newTestSession(t, "test1", configManager.GetDefault())

	state, err := session.Engine.StartGame(3)
	require.NoError(t, err)
	require.True(t, session.Engine.RequestFlip(state.Deck[0].ID))

	require.NoError(t, persistence.Save(session))
	assert.True(t, persistence.Exists("test1"))

	loaded, err := persistence.Load("test1")
	require.NoError(t, err)
	assert.Equal(t, "test1", loaded.ID)
	assert.Equal(t, session.Config.Name, loaded.Config.Name)
	assert.True(t, session.CreatedAt.Equal(loaded.CreatedAt))
	assert.True(t, session.LastAccessedAt.Equal(loaded.LastAccessedAt))

	original := session.Engine.GetState()
	restored := loaded.Engine.GetState()
	assert.Equal(t, original.GameID, restored.GameID)
	assert.Equal(t, original.Deck, restored.Deck)
	assert.Equal(t, original.FlippedCards, restored.FlippedCards)
	assert.Equal(t, engine.StatusPlaying, restored.Status)
}

func TestFilePersistence_ResumesPendingResolution(t *testing.T) {
	sched := enginetest.NewManualScheduler()
	persistence, configManager := newTestPersistence(t, engine.WithScheduler(sched))
	session := newTestSession(t, "busy", configManager.GetDefault(), engine.WithScheduler(enginetest.NewManualScheduler()))

	state, err := session.Engine.StartGame(2)
	require.NoError(t, err)
	var pair []string
	for _, card := range state.Deck {
		if card.PairID == "1" {
			pair = append(pair, card.ID)
		}
	}
	require.True(t, session.Engine.RequestFlip(pair[0]))
	require.True(t, session.Engine.RequestFlip(pair[1]))
	require.NoError(t, persistence.Save(session))

	loaded, err := persistence.Load("busy")
	require.NoError(t, err)
	assert.True(t, loaded.Engine.IsBusy())
	require.Equal(t, 1, sched.Pending())

	sched.FireAll()
	restored := loaded.Engine.GetState()
	assert.False(t, restored.IsBusy)
	assert.Equal(t, 1, restored.MatchedPairs)
	assert.Equal(t, 1, restored.MovesCount)
}

func TestFilePersistence_Errors(t *testing.T) {
	persistence, _ := newTestPersistence(t)

	_, err := persistence.Load("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, persistence.Delete("missing"), ErrSessionNotFound)
	assert.Error(t, persistence.Save(nil))

	require.NoError(t, os.WriteFile(persistence.getFilePath("corrupt"), []byte("{not json"), 0644))
	_, err = persistence.Load("corrupt")
	assert.Error(t, err)

	noState, _ := json.Marshal(PersistedSessionData{ID: "empty", ConfigName: "classic"})
	require.NoError(t, os.WriteFile(persistence.getFilePath("empty"), noState, 0644))
	_, err = persistence.Load("empty")
	assert.Error(t, err)

	unknownConfig, _ := json.Marshal(PersistedSessionData{ID: "cfg", ConfigName: "nope", GameState: &engine.GameState{}})
	require.NoError(t, os.WriteFile(persistence.getFilePath("cfg"), unknownConfig, 0644))
	_, err = persistence.Load("cfg")
	assert.ErrorIs(t, err, service.ErrConfigNotFound)

	badState, _ := json.Marshal(PersistedSessionData{
		ID:         "odd",
		ConfigName: "classic",
		GameState:  &engine.GameState{Deck: []engine.Card{{ID: "0-a", PairID: "0", Face: "X"}}},
	})
	require.NoError(t, os.WriteFile(persistence.getFilePath("odd"), badState, 0644))
	_, err = persistence.Load("odd")
	assert.Error(t, err)
}

func TestFilePersistence_FileStructure(t *testing.T) {
	persistence, configManager := newTestPersistence(t)
	session := newTestSession(t, "layout", configManager.GetDefault())
	_, err := session.Engine.StartGame(2)
	require.NoError(t, err)
	require.NoError(t, persistence.Save(session))

	raw, err := os.ReadFile(filepath.Join(persistence.sessionsDir, "layout.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "layout", doc["id"])
	assert.Equal(t, "classic", doc["config_name"], "config id, not display name")
	gameState, ok := doc["game_state"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, gameState["deck"], 4)
	assert.Equal(t, "playing", gameState["status"])

	// no temp files left behind
	entries, err := os.ReadDir(persistence.sessionsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFilePersistence_ListAllAndDelete(t *testing.T) {
	persistence, configManager := newTestPersistence(t)
	for _, id := range []string{"a1", "b2"} {
		require.NoError(t, persistence.Save(newTestSession(t, id, configManager.GetDefault())))
	}
	require.NoError(t, os.Mkdir(filepath.Join(persistence.sessionsDir, "subdir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(persistence.sessionsDir, "notes.txt"), []byte("x"), 0644))

	ids, err := persistence.ListAll()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "b2"}, ids)

	require.NoError(t, persistence.Delete("a1"))
	assert.False(t, persistence.Exists("a1"))
	ids, err = persistence.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, ids)
}
