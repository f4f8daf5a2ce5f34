package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	StartGame(pairsCount int) (*GameState, error)
	Reset() (*GameState, error)
	IsGameOver() bool
	IsVictory() bool
	IsBusy() bool
	GetMovesCount() int

	// Turn operations
	RequestFlip(cardID string) bool

	// Configuration
	GetConfig() *GameConfig
	SetConfig(config *GameConfig) error

	// History
	GetHistory() []HistoryEntry
	GetLastMove() *HistoryEntry

	// Notifications
	Subscribe(listener Listener) (unsubscribe func())
}

// GameEngine implements the Engine interface.
// All methods are safe for concurrent use; the resolution timer runs under the same lock.
type GameEngine struct {
	mu        sync.Mutex
	state     *GameState
	config    *GameConfig
	deck      *DeckGenerator
	scheduler Scheduler

	// pending is the scheduled resolution, if any. generation is bumped whenever the
	// deck is replaced so a resolution that fires late can tell it is stale.
	pending    Timer
	generation uint64

	emitMu       sync.Mutex
	listeners    map[int]Listener
	nextListener int
}

// Option configures a GameEngine
type Option func(*GameEngine)

// WithScheduler replaces the wall-clock scheduler used for the reveal delay
func WithScheduler(s Scheduler) Option {
	return func(e *GameEngine) {
		e.scheduler = s
	}
}

// WithRand makes deck shuffling use the given source
func WithRand(rng *rand.Rand) Option {
	return func(e *GameEngine) {
		e.deck = NewDeckGenerator(e.config.Palette(), rng)
	}
}

// NewEngine creates an idle game engine with the provided configuration.
// A nil configuration selects DefaultConfig.
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	engine := &GameEngine{
		config:    config,
		deck:      NewDeckGenerator(config.Palette(), nil),
		scheduler: WallClock,
		listeners: make(map[int]Listener),
		state:     newIdleState(config),
	}
	for _, opt := range opts {
		opt(engine)
	}

	return engine, nil
}

// NewEngineWithDefaults creates an idle game engine with the default configuration
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	engine, err := NewEngine(nil, opts...)
	if err != nil {
		// DefaultConfig is always valid
		panic(err)
	}
	return engine
}

// GetState returns a snapshot of the current game state
func (e *GameEngine) GetState() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// SetState replaces the game state (used for persistence loading).
// A state saved mid-resolution gets its resolution scheduled again.
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	restored := state.Clone()
	if err := restored.normalize(); err != nil {
		return err
	}

	e.mu.Lock()
	e.cancelPending()
	e.state = restored
	if e.state.IsBusy {
		e.scheduleResolution()
	}
	e.mu.Unlock()
	return nil
}

// StartGame deals a fresh deck and enters the playing state from any state.
// A resolution pending on the previous deck is discarded.
func (e *GameEngine) StartGame(pairsCount int) (*GameState, error) {
	e.mu.Lock()

	cards, err := e.deck.Generate(pairsCount)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	e.cancelPending()
	now := time.Now()
	e.state = &GameState{
		GameID:       uuid.NewString(),
		Deck:         cards,
		FlippedCards: []Card{},
		PairsCount:   pairsCount,
		Status:       StatusPlaying,
		Message:      e.config.Messages.Welcome,
		ConfigName:   e.config.Name,
		StartedAt:    &now,
		History:      []HistoryEntry{},
	}

	ev := e.newEvent(EventGameStarted, nil, e.state.Message)
	snapshot := ev.State
	e.emitLocked([]Event{ev})
	return snapshot.Clone(), nil
}

// Reset starts a new game with the current pair count, falling back to the configured one
func (e *GameEngine) Reset() (*GameState, error) {
	e.mu.Lock()
	pairs := e.state.PairsCount
	e.mu.Unlock()

	if pairs == 0 {
		pairs = e.config.PairsCount
	}
	return e.StartGame(pairs)
}

// RequestFlip reveals the card with the given id.
// It returns false, changing nothing, when the flip is not allowed: the engine is busy
// resolving, the game is not in progress, or the card is unknown, flipped or matched.
func (e *GameEngine) RequestFlip(cardID string) bool {
	e.mu.Lock()

	idx, ok := e.state.canFlip(cardID)
	if !ok {
		e.mu.Unlock()
		return false
	}

	e.state.flip(idx)
	if len(e.state.FlippedCards) == MaxFlippedCards {
		e.state.IsBusy = true
		e.state.MovesCount++
		e.scheduleResolution()
	}

	e.emitLocked([]Event{e.newEvent(EventCardFlipped, []string{cardID}, "")})
	return true
}

// IsGameOver returns whether the game has been won or lost
func (e *GameEngine) IsGameOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status == StatusWon || e.state.Status == StatusLost
}

// IsVictory returns whether the player has won
func (e *GameEngine) IsVictory() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status == StatusWon
}

// IsBusy returns whether a resolution is pending
func (e *GameEngine) IsBusy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsBusy
}

// GetMovesCount returns the number of completed pair attempts
func (e *GameEngine) GetMovesCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.MovesCount
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// SetConfig sets a new game configuration and returns the engine to idle
func (e *GameEngine) SetConfig(config *GameConfig) error {
	if err := ValidateGameConfig(config); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPending()
	e.config = config
	e.deck = NewDeckGenerator(config.Palette(), e.deck.rng)
	e.state = newIdleState(config)
	return nil
}

// GetHistory returns the resolved moves of the current game
func (e *GameEngine) GetHistory() []HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]HistoryEntry(nil), e.state.History...)
}

// GetLastMove returns the last resolved move, or nil if none
func (e *GameEngine) GetLastMove() *HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.state.History) == 0 {
		return nil
	}
	last := e.state.History[len(e.state.History)-1]
	return &last
}

// Subscribe registers a listener for engine events.
// Listeners run in event order after the state lock is released, but while a concurrent
// caller may hold it waiting to notify. A listener must therefore not call any engine
// method, not even GetState; Event.State is the snapshot to use instead.
func (e *GameEngine) Subscribe(listener Listener) func() {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = listener

	return func() {
		e.emitMu.Lock()
		defer e.emitMu.Unlock()
		delete(e.listeners, id)
	}
}

// scheduleResolution must be called with mu held
func (e *GameEngine) scheduleResolution() {
	gen := e.generation
	e.pending = e.scheduler.AfterFunc(e.config.RevealDelay(), func() {
		e.resolve(gen)
	})
}

// cancelPending stops any scheduled resolution and invalidates one that is already running.
// Must be called with mu held.
func (e *GameEngine) cancelPending() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.generation++
}

// resolve compares the two flipped cards once the reveal delay has elapsed
func (e *GameEngine) resolve(gen uint64) {
	e.mu.Lock()
	if gen != e.generation || !e.state.IsBusy {
		e.mu.Unlock()
		return
	}
	e.pending = nil

	entry := e.state.resolvePair(time.Now())
	var events []Event
	if entry.Matched {
		events = append(events, e.newEvent(EventPairMatched, entry.CardIDs, e.state.Message))
	} else {
		events = append(events, e.newEvent(EventPairMismatched, entry.CardIDs, e.state.Message))
	}

	switch e.state.settle(e.config, time.Now()) {
	case StatusWon:
		events = append(events, e.newEvent(EventGameWon, nil, e.state.Message))
	case StatusLost:
		events = append(events, e.newEvent(EventGameLost, nil, e.state.Message))
	}

	e.emitLocked(events)
}

// newEvent builds an event carrying a snapshot of the current state. Must be called with mu held.
func (e *GameEngine) newEvent(t EventType, cardIDs []string, message string) Event {
	return Event{
		Type:      t,
		GameID:    e.state.GameID,
		CardIDs:   cardIDs,
		Message:   message,
		Timestamp: time.Now(),
		State:     e.state.Clone(),
	}
}

// emitLocked hands events to listeners. It must be called with mu held and releases it;
// emitMu is taken first so that deliveries keep the order in which state changed.
func (e *GameEngine) emitLocked(events []Event) {
	e.emitMu.Lock()
	e.mu.Unlock()
	defer e.emitMu.Unlock()

	for _, ev := range events {
		for _, listener := range e.listeners {
			listener(ev)
		}
	}
}

func newIdleState(config *GameConfig) *GameState {
	return &GameState{
		Deck:         []Card{},
		FlippedCards: []Card{},
		Status:       StatusIdle,
		ConfigName:   config.Name,
		History:      []HistoryEntry{},
	}
}
