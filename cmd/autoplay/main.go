// Command autoplay plays memory game sessions over the REST API with a
// perfect-memory bot. It is handy for smoke-testing a running server and for
// watching a game unfold in the browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/strategy"
)

var errNoFlip = errors.New("no card left to flip")

// playOptions controls one game
type playOptions struct {
	maxFlips int
	delay    time.Duration
	poll     time.Duration
}

// gameResult summarizes a finished game
type gameResult struct {
	status engine.Status
	moves  int
	flips  int
	pairs  int
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("autoplay failed")
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "autoplay",
		Usage: "play memory game sessions with a perfect-memory bot",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "game server URL", Sources: cli.EnvVars("MEMORY_GAME_URL")},
			&cli.StringFlag{Name: "config", Usage: "preset for a new session (default: server default)"},
			&cli.IntFlag{Name: "pairs", Usage: "pairs to deal (0 = preset default)"},
			&cli.StringFlag{Name: "continue", Usage: "play in an existing session by ID"},
			&cli.StringFlag{Name: "session-file", Value: ".session", Usage: "remember the session ID here between runs (empty to disable)"},
			&cli.IntFlag{Name: "games", Value: 1, Usage: "number of games to play"},
			&cli.IntFlag{Name: "max-flips", Value: 1000, Usage: "give up a game after this many flips"},
			&cli.DurationFlag{Name: "delay", Usage: "pause between flips"},
			&cli.DurationFlag{Name: "poll", Value: 100 * time.Millisecond, Usage: "how often to check a resolving pair"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every flip"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	client := NewClient(cmd.String("url"))
	state, err := openSession(ctx, client, cmd)
	if err != nil {
		return err
	}

	opts := playOptions{
		maxFlips: int(cmd.Int("max-flips")),
		delay:    cmd.Duration("delay"),
		poll:     cmd.Duration("poll"),
	}
	games := int(cmd.Int("games"))
	if games < 1 {
		games = 1
	}

	player := strategy.NewMemoryStrategy()
	var results []gameResult
	for game := 1; game <= games; game++ {
		if game > 1 || state == nil || state.Status != engine.StatusPlaying {
			if state, err = client.Start(ctx, int(cmd.Int("pairs"))); err != nil {
				return err
			}
		}

		log.Info().Str("session", client.SessionID()).Int("game", game).Int("pairs", state.PairsCount).Msg("playing")
		result, err := play(ctx, client, player, state, opts)
		if err != nil {
			return fmt.Errorf("game %d: %w", game, err)
		}
		log.Info().Int("game", game).Str("status", string(result.status)).Int("moves", result.moves).Msg("game finished")
		results = append(results, result)
	}

	printSummary(cmd.Root().Writer, client.SessionID(), results)
	return nil
}

// openSession resumes the requested or remembered session, or creates a new one
func openSession(ctx context.Context, client *Client, cmd *cli.Command) (*engine.GameState, error) {
	sessionFile := cmd.String("session-file")
	sessionID := cmd.String("continue")
	if sessionID == "" && sessionFile != "" {
		if data, err := os.ReadFile(sessionFile); err == nil {
			sessionID = strings.TrimSpace(string(data))
		}
	}

	if sessionID != "" {
		client.UseSession(sessionID)
		state, err := client.GetState(ctx)
		if err == nil {
			log.Info().Str("session", sessionID).Msg("resuming session")
			return state, nil
		}
		log.Warn().Err(err).Str("session", sessionID).Msg("failed to resume session, creating a new one")
	}

	state, err := client.CreateSession(ctx, cmd.String("config"), int(cmd.Int("pairs")))
	if err != nil {
		return nil, err
	}
	log.Info().Str("session", client.SessionID()).Msg("session created")

	if sessionFile != "" {
		if err := os.WriteFile(sessionFile, []byte(client.SessionID()), 0644); err != nil {
			log.Warn().Err(err).Msg("failed to save session id")
		}
	}
	return state, nil
}

// play flips cards until the game is over
func play(ctx context.Context, client *Client, player *strategy.MemoryStrategy, state *engine.GameState, opts playOptions) (gameResult, error) {
	flips := 0
	for state.Status == engine.StatusPlaying {
		if state.IsBusy {
			if err := sleep(ctx, opts.poll); err != nil {
				return gameResult{}, err
			}
			next, err := client.GetState(ctx)
			if err != nil {
				return gameResult{}, err
			}
			state = next
			continue
		}

		cardID := player.NextFlip(state)
		if cardID == "" {
			return gameResult{}, errNoFlip
		}
		if flips >= opts.maxFlips {
			return gameResult{}, fmt.Errorf("gave up after %d flips", flips)
		}

		result, err := client.Flip(ctx, cardID)
		if err != nil {
			return gameResult{}, err
		}
		flips++
		if !result.Accepted {
			log.Debug().Str("card", cardID).Str("reason", result.Reason).Msg("flip rejected")
		} else {
			log.Debug().Str("card", cardID).Int("moves", result.GameState.MovesCount).Msg("flipped")
		}
		if result.GameState == nil {
			return gameResult{}, fmt.Errorf("flip %s: response has no game state", cardID)
		}
		state = result.GameState
		player.Observe(state)

		if opts.delay > 0 {
			if err := sleep(ctx, opts.delay); err != nil {
				return gameResult{}, err
			}
		}
	}

	return gameResult{status: state.Status, moves: state.MovesCount, flips: flips, pairs: state.PairsCount}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func printSummary(w io.Writer, sessionID string, results []gameResult) {
	wins, moves := 0, 0
	for _, r := range results {
		if r.status == engine.StatusWon {
			wins++
		}
		moves += r.moves
	}
	fmt.Fprintf(w, "Session: %s\n", sessionID)
	fmt.Fprintf(w, "Games: %d, Won: %d\n", len(results), wins)
	if len(results) > 0 {
		fmt.Fprintf(w, "Average moves: %.1f\n", float64(moves)/float64(len(results)))
	}
}
