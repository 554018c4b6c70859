// Package simulator draws repeated independent samples from per-player
// scoring assumptions and reduces them to summary statistics. Sampling is
// driven by an injectable random source so a fixed seed reproduces an
// identical sample sequence.
package simulator

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/outcome"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
)

// Engine runs Monte Carlo simulations over player scoring assumptions.
type Engine struct {
	cfg    config.EngineConfig
	logger *logrus.Entry
}

// NewEngine creates a simulation engine with the given configuration.
func NewEngine(cfg config.EngineConfig, log *logrus.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: log.WithField("component", "simulator"),
	}
}

// NewSource returns a non-deterministic random source for production use.
// Tests inject a fixed-seed source instead.
func NewSource() xrand.Source {
	return xrand.NewSource(uint64(time.Now().UnixNano()))
}

// SourceFor derives a per-player source from a base seed, so parallel
// per-player simulations stay reproducible under a fixed seed.
func SourceFor(baseSeed uint64, playerID int) xrand.Source {
	return xrand.NewSource(baseSeed ^ (uint64(playerID) * 0x9e3779b97f4a7c15))
}

// Simulate draws runs independent trials for one player and reduces them to
// an OutcomeDistribution. If the fixture context is empty the sampling step
// is skipped entirely and a degenerate zero-variance distribution is
// returned; this is a documented degraded mode, not a failure.
func (e *Engine) Simulate(player types.Player, fixtures []types.Fixture, runs int, src xrand.Source) types.OutcomeDistribution {
	if runs <= 0 {
		runs = e.cfg.SimulationRuns
	}

	assumption := outcome.BuildAssumption(player)

	if len(fixtures) == 0 {
		return e.degenerate(assumption)
	}

	samples := make([]float64, runs)
	for i := 0; i < runs; i++ {
		samples[i] = sampleTrial(assumption, fixtures, src)
	}

	return e.reduce(assumption, samples)
}

// SimulateAll fans players out over a worker pool; per-player simulations are
// independent so no ordering is required between them. Each player's source
// is derived from baseSeed and the player ID, keeping the pool deterministic
// under a fixed seed regardless of scheduling.
func (e *Engine) SimulateAll(players []types.Player, runs int, baseSeed uint64) []types.OutcomeDistribution {
	numWorkers := e.cfg.SimulationWorkers
	if numWorkers <= 0 {
		numWorkers = 4
	}

	jobs := make(chan int, len(players))
	results := make([]types.OutcomeDistribution, len(players))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				p := players[idx]
				results[idx] = e.Simulate(p, p.Fixtures, runs, SourceFor(baseSeed, p.ID))
			}
		}()
	}

	for i := range players {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	e.logger.WithFields(logrus.Fields{
		"players": len(players),
		"runs":    runs,
		"workers": numWorkers,
	}).Debug("Simulation batch complete")

	return results
}

// sampleTrial draws one gameweek outcome: an appearance check, Poisson goal
// and assist counts scaled by fixture difficulty, a clean-sheet check for
// defensive positions, and bonus-point noise.
func sampleTrial(a outcome.ScoringAssumption, fixtures []types.Fixture, src xrand.Source) float64 {
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	total := 0.0
	for _, fx := range fixtures {
		if uniform.Rand() >= a.AppearanceProbability {
			continue
		}

		points := a.AppearancePoints
		factor := outcome.DifficultyFactor(fx.Difficulty)

		if goals := samplePoisson(a.GoalRate*factor, src); goals > 0 {
			points += goals * a.GoalPoints
		}
		if assists := samplePoisson(a.AssistRate*factor, src); assists > 0 {
			points += assists * a.AssistPoints
		}

		if a.CleanSheetPoints > 0 {
			csProb := math.Min(0.9, a.CleanSheetProbability*factor)
			if uniform.Rand() < csProb {
				points += a.CleanSheetPoints
			}
		}

		bonus := distuv.Normal{Mu: 0, Sigma: a.BonusStdDev, Src: src}.Rand()
		if bonus > 0 {
			points += math.Min(3, bonus)
		}

		total += points
	}

	return total
}

func samplePoisson(lambda float64, src xrand.Source) float64 {
	if lambda <= 0 {
		return 0
	}
	return distuv.Poisson{Lambda: lambda, Src: src}.Rand()
}

func (e *Engine) reduce(a outcome.ScoringAssumption, samples []float64) types.OutcomeDistribution {
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	stdDev := 0.0
	if len(sorted) > 1 {
		stdDev = stat.StdDev(sorted, nil)
	}

	n := float64(len(sorted))
	dist := types.OutcomeDistribution{
		PlayerID:    a.PlayerID,
		Samples:     samples,
		Mean:        stat.Mean(sorted, nil),
		StdDev:      stdDev,
		P10:         nearestRank(sorted, 0.10),
		P25:         nearestRank(sorted, 0.25),
		P50:         nearestRank(sorted, 0.50),
		P75:         nearestRank(sorted, 0.75),
		P90:         nearestRank(sorted, 0.90),
		Diagnostics: a.Diagnostics,
	}

	// Sorted ascending, so probability tails come from a single scan.
	hauling, ceiling, floor := 0, 0, 0
	for _, v := range sorted {
		if v >= e.cfg.HaulingThreshold {
			hauling++
		}
		if v >= e.cfg.CeilingThreshold {
			ceiling++
		}
		if v <= e.cfg.FloorThreshold {
			floor++
		}
	}
	dist.HaulingProbability = float64(hauling) / n
	dist.CeilingProbability = float64(ceiling) / n
	dist.FloorProbability = float64(floor) / n

	return dist
}

// degenerate returns the zero-variance distribution used when no fixture
// context is available: every statistic collapses to the baseline
// expectation and all probability buckets are zero.
func (e *Engine) degenerate(a outcome.ScoringAssumption) types.OutcomeDistribution {
	baseline := a.BaselineExpectedPoints
	return types.OutcomeDistribution{
		PlayerID:    a.PlayerID,
		Mean:        baseline,
		StdDev:      0,
		P10:         baseline,
		P25:         baseline,
		P50:         baseline,
		P75:         baseline,
		P90:         baseline,
		Degraded:    true,
		Diagnostics: append(a.Diagnostics, "empty fixture context, returned degenerate distribution"),
	}
}

// nearestRank returns the percentile at fraction f using the nearest-rank
// method: the value at 1-indexed position ceil(f*N) of the ascending sample
// set. The index is fixed so results are reproducible for a given sample set.
func nearestRank(sorted []float64, f float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(f * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
