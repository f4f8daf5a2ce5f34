// Command analyze prints quick, human-readable heuristics about the game
// presets in the configs directory: deck sizes, timing, how many moves a
// perfect-memory player needs, and whether move limits leave room to win.
// The shuffle command checks that deals are positionally uniform.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/peymanfazeli/Memory-game/game/config"
	"github.com/peymanfazeli/Memory-game/game/engine"
	"github.com/peymanfazeli/Memory-game/game/engine/enginetest"
	"github.com/peymanfazeli/Memory-game/game/strategy"
)

// PresetReport summarizes one preset
type PresetReport struct {
	ConfigID      string
	Name          string
	PairsCount    int
	PaletteSize   int
	RevealDelayMs int
	MaxMoves      int
	Games         int
	Wins          int
	MinMoves      int
	MaxSeen       int
	AvgMoves      float64
}

// WinRate returns the share of simulated games that were won
func (r PresetReport) WinRate() float64 {
	if r.Games == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Games)
}

// ShuffleReport is the outcome of a positional uniformity test
type ShuffleReport struct {
	Pairs     int
	Deals     int
	ChiSquare float64
	DoF       int
	Z         float64
}

// Uniform reports whether the deviation is within the tolerance
func (r ShuffleReport) Uniform(maxZ float64) bool {
	return math.Abs(r.Z) <= maxZ
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("analyze failed")
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "inspect memory game presets and the deck shuffle",
		Commands: []*cli.Command{
			{
				Name:  "presets",
				Usage: "summarize every preset and simulate perfect-memory play",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: "configs", Usage: "preset directory", Sources: cli.EnvVars("CONFIG_DIR")},
					&cli.IntFlag{Name: "games", Value: 200, Usage: "games simulated per preset"},
					&cli.IntFlag{Name: "seed", Value: 1, Usage: "random seed"},
				},
				Action: runPresets,
			},
			{
				Name:  "shuffle",
				Usage: "chi-square test of card positions over many deals",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "pairs", Value: 6, Usage: "pairs per deal"},
					&cli.IntFlag{Name: "deals", Value: 20000, Usage: "number of deals"},
					&cli.IntFlag{Name: "seed", Value: 1, Usage: "random seed"},
					&cli.FloatFlag{Name: "max-z", Value: 4, Usage: "largest tolerated deviation in standard deviations"},
				},
				Action: runShuffle,
			},
		},
	}
}

func runPresets(ctx context.Context, cmd *cli.Command) error {
	manager, err := config.NewManager(cmd.String("dir"))
	if err != nil {
		return err
	}
	infos, err := manager.ListConfigs()
	if err != nil {
		return err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConfigID < infos[j].ConfigID })

	seed := uint64(cmd.Int("seed"))
	games := int(cmd.Int("games"))

	var reports []PresetReport
	for _, info := range infos {
		cfg, err := manager.LoadConfig(info.ConfigID)
		if err != nil {
			log.Warn().Err(err).Str("config", info.ConfigID).Msg("skipping preset")
			continue
		}
		report, err := AnalyzePreset(info.ConfigID, cfg, games, seed)
		if err != nil {
			return fmt.Errorf("preset %s: %w", info.ConfigID, err)
		}
		reports = append(reports, report)
	}

	printPresets(cmd.Root().Writer, reports)
	return nil
}

func runShuffle(ctx context.Context, cmd *cli.Command) error {
	seed := uint64(cmd.Int("seed"))
	report, err := CheckShuffle(int(cmd.Int("pairs")), int(cmd.Int("deals")), rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Pairs: %d, Deals: %d\n", report.Pairs, report.Deals)
	fmt.Fprintf(w, "Chi-square: %.1f (%d degrees of freedom, z = %.2f)\n", report.ChiSquare, report.DoF, report.Z)
	if !report.Uniform(cmd.Float("max-z")) {
		fmt.Fprintf(w, "⚠️  Card positions are not uniform\n")
		return fmt.Errorf("shuffle deviates by %.2f standard deviations", report.Z)
	}
	fmt.Fprintf(w, "✅ Card positions look uniform\n")
	return nil
}

// AnalyzePreset plays games deals of the preset with a perfect-memory player
func AnalyzePreset(configID string, cfg *engine.GameConfig, games int, seed uint64) (PresetReport, error) {
	report := PresetReport{
		ConfigID:      configID,
		Name:          cfg.Name,
		PairsCount:    cfg.PairsCount,
		PaletteSize:   len(cfg.Palette()),
		RevealDelayMs: cfg.RevealDelayMs,
		MaxMoves:      cfg.MaxMoves,
	}

	total := 0
	for i := 0; i < games; i++ {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		state, err := SimulateGame(cfg, rng)
		if err != nil {
			return report, err
		}

		report.Games++
		if state.Status == engine.StatusWon {
			report.Wins++
		}
		total += state.MovesCount
		if report.MinMoves == 0 || state.MovesCount < report.MinMoves {
			report.MinMoves = state.MovesCount
		}
		if state.MovesCount > report.MaxSeen {
			report.MaxSeen = state.MovesCount
		}
	}
	if report.Games > 0 {
		report.AvgMoves = float64(total) / float64(report.Games)
	}
	return report, nil
}

// SimulateGame plays one game to the end without waiting for reveal delays
func SimulateGame(cfg *engine.GameConfig, rng *rand.Rand) (*engine.GameState, error) {
	sched := enginetest.NewManualScheduler()
	game, err := engine.NewEngine(cfg, engine.WithScheduler(sched), engine.WithRand(rng))
	if err != nil {
		return nil, err
	}
	state, err := game.StartGame(cfg.PairsCount)
	if err != nil {
		return nil, err
	}

	player := strategy.NewMemoryStrategy()
	for flips := 0; state.Status == engine.StatusPlaying; flips++ {
		if flips > 4*len(state.Deck) {
			return nil, fmt.Errorf("game did not finish after %d flips", flips)
		}

		cardID := player.NextFlip(state)
		if cardID == "" || !game.RequestFlip(cardID) {
			return nil, fmt.Errorf("no playable card in game %s", state.GameID)
		}
		state = game.GetState()
		player.Observe(state)
		if state.IsBusy {
			sched.FireAll()
			state = game.GetState()
		}
	}
	return state, nil
}

// CheckShuffle deals many decks and measures how evenly each face lands on each position
func CheckShuffle(pairs, deals int, rng *rand.Rand) (ShuffleReport, error) {
	if deals < 1 {
		return ShuffleReport{}, fmt.Errorf("deals must be positive, got %d", deals)
	}
	gen := engine.NewDeckGenerator(engine.DefaultFaces, rng)

	positions := 2 * pairs
	counts := make([]map[string]int, positions)
	for i := range counts {
		counts[i] = make(map[string]int, pairs)
	}
	for d := 0; d < deals; d++ {
		deck, err := gen.Generate(pairs)
		if err != nil {
			return ShuffleReport{}, err
		}
		for pos, card := range deck {
			counts[pos][card.Face]++
		}
	}

	// every face appears twice per deal, so each of the pairs faces
	// is expected at a given position deals/pairs times
	expected := float64(deals) / float64(pairs)
	chi := 0.0
	for _, byFace := range counts {
		for _, face := range engine.DefaultFaces[:pairs] {
			diff := float64(byFace[face]) - expected
			chi += diff * diff / expected
		}
	}

	// both margins of the position by face table are fixed
	dof := (positions - 1) * (pairs - 1)
	report := ShuffleReport{Pairs: pairs, Deals: deals, ChiSquare: chi, DoF: dof}
	if dof > 0 {
		report.Z = (chi - float64(dof)) / math.Sqrt(2*float64(dof))
	}
	return report, nil
}

func printPresets(out io.Writer, reports []PresetReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tNAME\tPAIRS\tPALETTE\tDELAY\tMAX MOVES\tAVG\tMIN\tMAX\tWIN RATE")
	for _, r := range reports {
		limit := "-"
		if r.MaxMoves > 0 {
			limit = fmt.Sprint(r.MaxMoves)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dms\t%s\t%.1f\t%d\t%d\t%.0f%%\n",
			r.ConfigID, r.Name, r.PairsCount, r.PaletteSize, r.RevealDelayMs, limit,
			r.AvgMoves, r.MinMoves, r.MaxSeen, 100*r.WinRate())
	}
	w.Flush()

	for _, r := range reports {
		if r.MaxMoves > 0 && r.WinRate() < 1 {
			fmt.Fprintf(out, "⚠️  %s: a perfect-memory player loses %.0f%% of games within %d moves\n",
				r.ConfigID, 100*(1-r.WinRate()), r.MaxMoves)
		}
	}
}
