package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peymanfazeli/Memory-game/game/engine"
)

func createValidConfig() *engine.GameConfig {
	return &engine.GameConfig{
		Name:          "Test Config",
		Description:   "Test configuration",
		PairsCount:    4,
		RevealDelayMs: 300,
		Messages: engine.GameMessages{
			Welcome:  "Welcome!",
			Match:    "Match!",
			Mismatch: "Miss!",
			Victory:  "Won in %d moves",
		},
	}
}

func writeConfigFile(t *testing.T, dir, name string, config any) {
	t.Helper()
	data, err := json.MarshalIndent(config, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0644))
}

func TestNewManager(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		dir := t.TempDir()
		classic := createValidConfig()
		classic.Name = "Classic"
		writeConfigFile(t, dir, "classic", classic)

		manager, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "Classic", manager.GetDefault().Name)
	})

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := NewManager("/non/existent/path")
		assert.Error(t, err)
	})

	t.Run("empty directory falls back to built-in preset", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		require.NoError(t, err)

		def := manager.GetDefault()
		require.NotNil(t, def)
		assert.Equal(t, "default", def.Name)
		assert.NoError(t, engine.ValidateGameConfig(def))
	})

	t.Run("first valid preset when classic is missing", func(t *testing.T) {
		dir := t.TempDir()
		easy := createValidConfig()
		easy.Name = "Easy"
		writeConfigFile(t, dir, "easy", easy)

		manager, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "Easy", manager.GetDefault().Name)
	})
}

func TestManager_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "valid", createValidConfig())
	writeConfigFile(t, dir, "invalid", map[string]any{"name": "Broken", "pairs_count": 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{nope"), 0644))

	manager, err := NewManager(dir)
	require.NoError(t, err)

	config, err := manager.LoadConfig("valid")
	require.NoError(t, err)
	assert.Equal(t, "Test Config", config.Name)

	config, err = manager.LoadConfig("valid.json")
	require.NoError(t, err)
	assert.Equal(t, 4, config.PairsCount)

	_, err = manager.LoadConfig("missing")
	assert.ErrorIs(t, err, ErrConfigNotFound)

	_, err = manager.LoadConfig("invalid")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = manager.LoadConfig("garbage")
	assert.Error(t, err)
}

func TestManager_ListConfigs(t *testing.T) {
	dir := t.TempDir()
	easy := createValidConfig()
	easy.Name = "Easy"
	easy.PairsCount = 3
	writeConfigFile(t, dir, "easy", easy)

	hard := createValidConfig()
	hard.Name = "Hard"
	hard.PairsCount = 10
	hard.MaxMoves = 25
	hard.Messages.Defeat = "Out of moves"
	writeConfigFile(t, dir, "hard", hard)

	writeConfigFile(t, dir, "broken", map[string]any{"name": "Broken"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	manager, err := NewManager(dir)
	require.NoError(t, err)

	configs, err := manager.ListConfigs()
	require.NoError(t, err)
	require.Len(t, configs, 2)

	byID := map[string]int{}
	for i, c := range configs {
		byID[c.ConfigID] = i
	}
	h := configs[byID["hard"]]
	assert.Equal(t, "hard.json", h.Filename)
	assert.Equal(t, "Hard", h.Name)
	assert.Equal(t, 10, h.PairsCount)
	assert.Equal(t, 25, h.MaxMoves)
	assert.Equal(t, 300, h.RevealDelayMs)
	assert.Equal(t, 3, configs[byID["easy"]].PairsCount)
}

func TestManager_SetDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())
	other := createValidConfig()
	other.Name = "Other"
	writeConfigFile(t, dir, "other", other)

	manager, err := NewManager(dir)
	require.NoError(t, err)

	require.NoError(t, manager.SetDefault("other"))
	assert.Equal(t, "Other", manager.GetDefault().Name)
	assert.ErrorIs(t, manager.SetDefault("missing"), ErrConfigNotFound)
}

func TestManager_SaveConfig(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	config := createValidConfig()
	config.Name = "Saved"
	require.NoError(t, manager.SaveConfig("saved", config))
	assert.FileExists(t, filepath.Join(dir, "saved.json"))

	loaded, err := manager.LoadConfig("saved")
	require.NoError(t, err)
	assert.Equal(t, "Saved", loaded.Name)

	bad := createValidConfig()
	bad.PairsCount = 0
	assert.ErrorIs(t, manager.SaveConfig("bad", bad), ErrInvalidConfig)
	assert.NoFileExists(t, filepath.Join(dir, "bad.json"))
}

func TestManager_CachingAndRefresh(t *testing.T) {
	dir := t.TempDir()
	config := createValidConfig()
	writeConfigFile(t, dir, "classic", config)

	manager, err := NewManager(dir)
	require.NoError(t, err)

	first, err := manager.LoadConfig("classic")
	require.NoError(t, err)

	config.Description = "Changed on disk"
	writeConfigFile(t, dir, "classic", config)

	cached, err := manager.LoadConfig("classic")
	require.NoError(t, err)
	assert.Same(t, first, cached)

	require.NoError(t, manager.RefreshCache())
	fresh, err := manager.LoadConfig("classic")
	require.NoError(t, err)
	assert.Equal(t, "Changed on disk", fresh.Description)
	assert.Equal(t, "Changed on disk", manager.GetDefault().Description)
}

func TestManager_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())
	manager, err := NewManager(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.LoadConfig("classic")
			assert.NoError(t, err)
			_, err = manager.ListConfigs()
			assert.NoError(t, err)
			assert.NotNil(t, manager.GetDefault())
		}()
	}
	wg.Wait()
}

func TestManager_ListConfigsReportsPalettes(t *testing.T) {
	dir := t.TempDir()
	hard := createValidConfig()
	hard.Name = "Hard"
	hard.PairsCount = 12
	writeConfigFile(t, dir, "hard", hard)

	symbols := createValidConfig()
	symbols.Name = "Symbols"
	symbols.Faces = []string{"★", "♥", "♦", "♣", "♠"}
	writeConfigFile(t, dir, "symbols", symbols)

	duplicated := createValidConfig()
	duplicated.Faces = []string{"A", "B", "A", "C", "D"}
	writeConfigFile(t, dir, "duplicated", duplicated)

	tooFewFaces := createValidConfig()
	tooFewFaces.Faces = []string{"A", "B", "C"}
	writeConfigFile(t, dir, "too-few-faces", tooFewFaces)

	manager, err := NewManager(dir)
	require.NoError(t, err)

	configs, err := manager.ListConfigs()
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "symbols", configs[0].ConfigID, "easiest preset comes first")
	assert.Equal(t, 5, configs[0].PaletteSize)
	assert.True(t, configs[0].CustomPalette)

	assert.Equal(t, "hard", configs[1].ConfigID)
	assert.Equal(t, len(engine.DefaultFaces), configs[1].PaletteSize)
	assert.False(t, configs[1].CustomPalette)

	_, err = manager.LoadConfig("duplicated")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = manager.LoadConfig("too-few-faces")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManager_SaveConfigChecksPalette(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *engine.GameConfig)
	}{
		{"duplicate face", func(c *engine.GameConfig) { c.Faces = []string{"A", "B", "B", "C"} }},
		{"empty face", func(c *engine.GameConfig) { c.Faces = []string{"A", "", "C", "D"} }},
		{"more pairs than faces", func(c *engine.GameConfig) { c.Faces = []string{"A", "B", "C"} }},
		{"more pairs than default faces", func(c *engine.GameConfig) { c.PairsCount = len(engine.DefaultFaces) + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset := createValidConfig()
			tt.mutate(preset)
			assert.ErrorIs(t, manager.SaveConfig("palette", preset), ErrInvalidConfig)
			assert.NoFileExists(t, filepath.Join(dir, "palette.json"))
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected presets leave no files behind")
}

func TestManager_SaveConfigRejectsUnsafeIDs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "presets")
	require.NoError(t, os.Mkdir(dir, 0755))
	manager, err := NewManager(dir)
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "nested/preset", "with space", ".json"} {
		assert.ErrorIs(t, manager.SaveConfig(id, createValidConfig()), ErrInvalidConfig, id)
	}
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape.json"))

	_, err = manager.LoadConfig("../presets/classic")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestManager_SaveConfigStoresCopy(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	require.NoError(t, err)

	preset := createValidConfig()
	preset.Faces = []string{"A", "B", "C", "D"}
	require.NoError(t, manager.SaveConfig("letters", preset))

	preset.Faces[0] = "Z"
	preset.PairsCount = 1

	loaded, err := manager.LoadConfig("letters")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, loaded.Faces)
	assert.Equal(t, 4, loaded.PairsCount)
}

func TestManager_DefaultSurvivesRefresh(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "classic", createValidConfig())
	easy := createValidConfig()
	easy.Name = "Easy"
	writeConfigFile(t, dir, "easy", easy)

	manager, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, manager.SetDefault("easy"))

	easy.Description = "Edited"
	require.NoError(t, manager.SaveConfig("easy", easy))
	assert.Equal(t, "Edited", manager.GetDefault().Description)

	require.NoError(t, manager.RefreshCache())
	assert.Equal(t, "Easy", manager.GetDefault().Name)

	require.NoError(t, os.Remove(filepath.Join(dir, "easy.json")))
	require.NoError(t, manager.RefreshCache())
	assert.Equal(t, "Test Config", manager.GetDefault().Name, "falls back to classic")
}
