package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/service"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// maxIDAttempts bounds retries when a generated ID collides with an existing session
const maxIDAttempts = 8

// Manager handles game session lifecycle.
// Every session it holds is subscribed to its engine: events are persisted and
// forwarded, masked, to the configured EventSink.
type Manager struct {
	sessions    map[string]*service.Session
	unsubscribe map[string]func()
	persistence SessionPersistence
	sink        service.EventSink
	engineOpts  []engine.Option
	mu          sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithEventSink forwards every engine event of every session to sink
func WithEventSink(sink service.EventSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithEngineOptions applies opts to the engine of every session the manager creates
func WithEngineOptions(opts ...engine.Option) Option {
	return func(m *Manager) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	return NewManagerWithPersistence(nil, opts...)
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*service.Session),
		unsubscribe: make(map[string]func()),
		persistence: persistence,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create creates a new session with the given ID and configuration.
// An empty ID gets a generated 4-character one.
func (m *Manager) Create(id string, config *engine.GameConfig) (*service.Session, error) {
	if strings.ContainsAny(id, `/\.`) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		for attempt := 0; attempt < maxIDAttempts; attempt++ {
			id = m.generateSessionID()
			if !m.sessionExists(id) {
				break
			}
		}
	}

	// Check if session already exists (case-insensitive)
	if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	eng, err := engine.NewEngine(config, m.engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	now := time.Now()
	session := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	key := strings.ToLower(id)
	m.sessions[key] = session
	m.attach(key, session)

	// Auto-save if persistence is enabled
	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("failed to persist session")
		}
	}

	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	// Try loading from persistence if not in memory
	if m.persistence != nil && m.persistence.Exists(id) {
		loaded, err := m.persistence.Load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		key := strings.ToLower(loaded.ID)
		// another caller may have loaded it meanwhile
		if existing, ok := m.sessions[key]; ok {
			return existing, nil
		}
		m.sessions[key] = loaded
		m.attach(key, loaded)
		return loaded, nil
	}

	return nil, ErrSessionNotFound
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id string, config *engine.GameConfig) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, config)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	inMemory := m.detach(strings.ToLower(id))
	m.mu.Unlock()

	// Delete from persistence if it exists
	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return ErrSessionNotFound
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	removed := m.detach(strings.ToLower(id))
	m.mu.Unlock()

	if !removed {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	m.mu.Unlock()

	if err := m.Save(id); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("failed to persist session after access update")
	}
	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		m.mu.RUnlock()
		return ErrSessionNotFound
	}
	snapshot := *session
	m.mu.RUnlock()

	return m.persistence.Save(&snapshot)
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the given duration.
// Persisted copies are kept and reloaded on the next access.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for key, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			m.detach(key)
			removed++
		}
	}
	m.mu.Unlock()

	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		key := strings.ToLower(id)
		if _, exists := m.sessions[key]; exists {
			continue
		}

		session, err := m.persistence.Load(id)
		if err != nil {
			log.Warn().Err(err).Str("session", id).Msg("failed to load persisted session")
			continue
		}

		m.sessions[key] = session
		m.attach(key, session)
		loadedCount++
	}

	if loadedCount > 0 {
		log.Info().Int("count", loadedCount).Msg("loaded persisted sessions from storage")
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil // No persistence configured
	}

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for _, session := range m.sessions {
		ids = append(ids, session.ID)
	}
	m.mu.RUnlock()

	errorCount := 0
	for _, id := range ids {
		if err := m.Save(id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Warn().Err(err).Str("session", id).Msg("failed to save session")
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}

// attach subscribes the manager to the session's engine. Must be called with mu held.
func (m *Manager) attach(key string, session *service.Session) {
	id := session.ID
	m.unsubscribe[key] = session.Engine.Subscribe(func(ev engine.Event) {
		m.handleEvent(id, ev)
	})
}

// detach drops a session from memory and stops listening to its engine.
// Must be called with mu held. It reports whether the session was present.
//
// The engine subscription is released on another goroutine: an event delivery may
// be blocked on mu inside handleEvent while holding the engine's notification lock.
func (m *Manager) detach(key string) bool {
	if _, exists := m.sessions[key]; !exists {
		return false
	}
	if unsubscribe, ok := m.unsubscribe[key]; ok {
		go unsubscribe()
		delete(m.unsubscribe, key)
	}
	delete(m.sessions, key)
	return true
}

// handleEvent runs on the engine's notification path: it persists the event's state
// snapshot and forwards the masked event. It must not call any engine method, readers
// included: the engine may be waiting to notify while holding its state lock.
func (m *Manager) handleEvent(sessionID string, ev engine.Event) {
	m.mu.RLock()
	session, live := m.sessions[strings.ToLower(sessionID)]
	var snapshot service.Session
	if live {
		snapshot = *session
	}
	m.mu.RUnlock()
	if !live {
		return
	}

	log.Debug().Str("session", sessionID).Str("event", string(ev.Type)).Strs("cards", ev.CardIDs).Msg("game event")

	if m.persistence != nil && ev.State != nil {
		if err := m.persistence.SaveState(&snapshot, ev.State); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Str("event", string(ev.Type)).Msg("failed to persist session after event")
		}
	}

	if m.sink != nil {
		ev.State = ev.State.Masked()
		m.sink.Publish(sessionID, ev)
	}
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}
