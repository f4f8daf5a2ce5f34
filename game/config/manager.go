package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = errors.New("invalid configuration")
)

const (
	presetExt = ".json"

	// preferredDefault is the preset used for new sessions unless SetDefault picks another
	preferredDefault = "classic"
)

// presetIDPattern keeps preset ids usable as file names inside the preset directory
var presetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Manager loads memory game presets from a directory of JSON files.
// Each preset is checked with engine.ValidateGameConfig, which covers its face
// palette and pair count, before it is cached or written.
type Manager struct {
	dir string

	mu        sync.RWMutex
	presets   map[string]*engine.GameConfig
	defaultID string // empty when the built-in preset is the default
	def       *engine.GameConfig
}

// NewManager creates a preset manager for dir and selects the default preset
func NewManager(dir string) (*Manager, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("preset directory does not exist: %s", dir)
	}

	m := &Manager{
		dir:     dir,
		presets: make(map[string]*engine.GameConfig),
	}
	m.selectDefault()
	return m, nil
}

// presetID strips an optional .json suffix and rejects ids that are not plain file names
func presetID(name string) (string, bool) {
	id := strings.TrimSuffix(name, presetExt)
	return id, presetIDPattern.MatchString(id)
}

// LoadConfig returns the preset with the given id, reading it from disk on first use
func (m *Manager) LoadConfig(name string) (*engine.GameConfig, error) {
	id, ok := presetID(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}

	m.mu.RLock()
	preset, cached := m.presets[id]
	m.mu.RUnlock()
	if cached {
		return preset, nil
	}

	preset, err := m.readPreset(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.presets[id]; ok {
		return existing, nil
	}
	m.presets[id] = preset
	return preset, nil
}

// readPreset decodes and validates one preset file
func (m *Manager) readPreset(id string) (*engine.GameConfig, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, id+presetExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, id)
		}
		return nil, fmt.Errorf("failed to read preset %q: %w", id, err)
	}

	var preset engine.GameConfig
	if err := json.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset %q: %w", id, err)
	}
	if err := checkPreset(id, &preset); err != nil {
		return nil, err
	}
	return &preset, nil
}

// checkPreset validates a preset and names the offending preset in the error
func checkPreset(id string, preset *engine.GameConfig) error {
	if err := engine.ValidateGameConfig(preset); err != nil {
		return fmt.Errorf("%w: preset %q: %v", ErrInvalidConfig, id, err)
	}
	return nil
}

// ListConfigs describes every valid preset in the directory, easiest first.
// Files that fail validation are logged and left out.
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	var infos []*service.ConfigInfo
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != presetExt {
			continue
		}
		id, ok := presetID(entry.Name())
		if !ok {
			log.Warn().Str("file", entry.Name()).Msg("skipping preset with an unusable file name")
			continue
		}

		preset, err := m.LoadConfig(id)
		if err != nil {
			log.Warn().Err(err).Str("config", id).Msg("skipping invalid preset")
			continue
		}
		infos = append(infos, describe(id, preset))
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].PairsCount != infos[j].PairsCount {
			return infos[i].PairsCount < infos[j].PairsCount
		}
		return infos[i].ConfigID < infos[j].ConfigID
	})
	return infos, nil
}

func describe(id string, preset *engine.GameConfig) *service.ConfigInfo {
	return &service.ConfigInfo{
		Filename:      id + presetExt,
		ConfigID:      id,
		Name:          preset.Name,
		Description:   preset.Description,
		PairsCount:    preset.PairsCount,
		PaletteSize:   len(preset.Palette()),
		CustomPalette: len(preset.Faces) > 0,
		RevealDelayMs: preset.RevealDelayMs,
		MaxMoves:      preset.MaxMoves,
	}
}

// GetDefault returns the preset used when a session names none
func (m *Manager) GetDefault() *engine.GameConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.def
}

// SetDefault makes the named preset the default. The choice survives RefreshCache.
func (m *Manager) SetDefault(name string) error {
	preset, err := m.LoadConfig(name)
	if err != nil {
		return err
	}
	id, _ := presetID(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
	m.def = preset
	return nil
}

// RefreshCache drops every cached preset and selects the default again from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.presets = make(map[string]*engine.GameConfig)
	m.mu.Unlock()

	m.selectDefault()
	return nil
}

// selectDefault tries the chosen default, then classic, then the easiest valid preset,
// then the built-in preset
func (m *Manager) selectDefault() {
	m.mu.RLock()
	candidates := []string{m.defaultID, preferredDefault}
	m.mu.RUnlock()

	for _, id := range candidates {
		if id == "" {
			continue
		}
		if preset, err := m.LoadConfig(id); err == nil {
			m.setDefault(id, preset)
			return
		}
	}

	if infos, err := m.ListConfigs(); err == nil && len(infos) > 0 {
		if preset, err := m.LoadConfig(infos[0].ConfigID); err == nil {
			m.setDefault(infos[0].ConfigID, preset)
			return
		}
	}

	log.Warn().Str("dir", m.dir).Msg("no usable presets, falling back to the built-in default")
	builtin := engine.DefaultConfig()
	builtin.Name = "default"
	builtin.Description = "Built-in preset used when the preset directory has none"
	m.setDefault("", builtin)
}

func (m *Manager) setDefault(id string, preset *engine.GameConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
	m.def = preset
}

// SaveConfig validates a preset and writes it to <dir>/<name>.json.
// The file is replaced atomically and the cache holds a copy of config.
func (m *Manager) SaveConfig(name string, config *engine.GameConfig) error {
	id, ok := presetID(name)
	if !ok {
		return fmt.Errorf("%w: preset id %q may only contain letters, digits, '-' and '_'", ErrInvalidConfig, name)
	}
	if config == nil {
		return fmt.Errorf("%w: preset %q is empty", ErrInvalidConfig, id)
	}

	preset := *config
	preset.Faces = slices.Clone(config.Faces)
	if err := checkPreset(id, &preset); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&preset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preset %q: %w", id, err)
	}

	tmp, err := os.CreateTemp(m.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write preset %q: %w", id, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preset %q: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preset %q: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(m.dir, id+presetExt)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preset %q: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.presets[id] = &preset
	if m.defaultID == id {
		m.def = &preset
	}
	return nil
}
