package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/engine/enginetest"
	"github.com/peymanfazeli/Memory-game/game/service"
)

// gatedPersistence parks the next event save until release is closed
type gatedPersistence struct {
	*FilePersistence
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedPersistence(fp *FilePersistence) *gatedPersistence {
	return &gatedPersistence{
		FilePersistence: fp,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
}

func (g *gatedPersistence) SaveState(session *service.Session, state *engine.GameState) error {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.FilePersistence.SaveState(session, state)
}

func waitOrFail(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not finish", what)
	}
}

func TestManager_FlipWhileResolutionIsBeingSaved(t *testing.T) {
	sched := enginetest.NewManualScheduler()
	fp, configManager := newTestPersistence(t, engine.WithScheduler(sched))
	persistence := newGatedPersistence(fp)
	manager := NewManagerWithPersistence(persistence, WithEngineOptions(engine.WithScheduler(sched)))

	session, err := manager.Create("race", configManager.GetDefault())
	require.NoError(t, err)
	state, err := session.Engine.StartGame(3)
	require.NoError(t, err)
	require.True(t, session.Engine.RequestFlip(state.Deck[0].ID))
	require.True(t, session.Engine.RequestFlip(state.Deck[1].ID))

	// the resolution's save blocks inside the listener
	persistence.armed.Store(true)
	resolved := make(chan struct{})
	go func() {
		defer close(resolved)
		sched.FireAll()
	}()
	waitOrFail(t, persistence.entered, "resolution save")

	// a flip now takes the state lock and waits to notify behind the parked listener
	var accepted atomic.Bool
	flipped := make(chan struct{})
	go func() {
		defer close(flipped)
		accepted.Store(session.Engine.RequestFlip(state.Deck[2].ID))
	}()
	time.Sleep(20 * time.Millisecond)
	close(persistence.release)

	waitOrFail(t, resolved, "resolution")
	waitOrFail(t, flipped, "flip")
	assert.True(t, accepted.Load())

	saved := readPersisted(t, fp, "race").GameState
	assert.Len(t, saved.History, 1)
	require.Len(t, saved.FlippedCards, 1)
	assert.Equal(t, state.Deck[2].ID, saved.FlippedCards[0].ID)
}

func TestGameService_ConcurrentFlipsWithPersistence(t *testing.T) {
	quick := engine.WithScheduler(engine.SchedulerFunc(func(d time.Duration, f func()) engine.Timer {
		return time.AfterFunc(time.Millisecond, f)
	}))
	fp, configManager := newTestPersistence(t, quick)
	manager := NewManagerWithPersistence(fp, WithEngineOptions(quick))
	svc := service.NewGameService(manager, configManager)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "", 4)
	require.NoError(t, err)

	var flips atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, seed))
			for i := 0; i < 60; i++ {
				state, err := svc.GetGameState(ctx, info.ID)
				if !assert.NoError(t, err) {
					return
				}
				if state.Status != engine.StatusPlaying {
					_, err := svc.StartGame(ctx, info.ID, 4)
					assert.NoError(t, err)
					continue
				}
				card := state.Deck[rng.IntN(len(state.Deck))]
				_, err = svc.Flip(ctx, info.ID, card.ID)
				assert.NoError(t, err)
				flips.Add(1)
			}
		}(uint64(w))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent flips did not finish")
	}

	assert.Positive(t, flips.Load())
	require.Eventually(t, func() bool {
		state, err := svc.GetGameState(ctx, info.ID)
		return err == nil && !state.IsBusy
	}, 2*time.Second, 5*time.Millisecond)

	saved, err := fp.Load(info.ID)
	require.NoError(t, err)
	assert.NoError(t, engine.ValidateDeck(saved.Engine.GetState().Deck))
}
