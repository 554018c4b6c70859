package scorer

import (
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
)

func testScorer() *Scorer {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewScorer(config.DefaultEngineConfig(), log)
}

func dist(playerID int, mean, stdDev, hauling, floor float64) types.OutcomeDistribution {
	return types.OutcomeDistribution{
		PlayerID:           playerID,
		Mean:               mean,
		StdDev:             stdDev,
		HaulingProbability: hauling,
		FloorProbability:   floor,
	}
}

func own(playerID int, total, captaincy float64) types.OwnershipProfile {
	return types.OwnershipProfile{
		PlayerID:           playerID,
		TotalOwnership:     total,
		Captaincy:          captaincy,
		EffectiveOwnership: total + captaincy,
	}
}

func TestScore_StrategyClassificationByOwnership(t *testing.T) {
	s := testScorer()

	tests := []struct {
		ownership    float64
		strategy     types.Strategy
		differential bool
	}{
		{25, types.StrategyTemplate, false},
		{20, types.StrategyTemplate, false},
		{12, types.StrategyBalanced, false},
		{8, types.StrategyBalanced, false},
		{3, types.StrategyDifferential, true},
	}

	for _, tt := range tests {
		result, ok := s.Score(dist(1, 5, 2, 0.1, 0.2), own(1, tt.ownership, 0), 100000)
		require.True(t, ok)
		assert.Equal(t, tt.strategy, result.Strategy, "ownership=%v", tt.ownership)
		assert.Equal(t, tt.differential, result.Differential, "ownership=%v", tt.ownership)
	}
}

func TestScore_RankGainCappedByCurrentRank(t *testing.T) {
	s := testScorer()

	// A big hauling probability on a low-owned player generates a huge raw
	// gain; the cap limits it to a tenth of the current rank.
	result, ok := s.Score(dist(2, 4, 3, 0.5, 0.1), own(2, 2, 0.5), 50000)
	require.True(t, ok)
	assert.InDelta(t, 5000, result.RankGainPotential, 1e-9)
}

func TestScore_RankGainFormula(t *testing.T) {
	s := testScorer()

	// expected 4, hauling 0.1, EO 20, rank 10M (cap not binding):
	// surprise = (8-4)*1000 = 4000; bonus = 0.1*100000 = 10000
	// scarcity = (100-20)/100 = 0.8 -> (4000+10000)*0.8 = 11200
	result, ok := s.Score(dist(3, 4, 0, 0.1, 0), own(3, 20, 0), 10000000)
	require.True(t, ok)
	assert.InDelta(t, 11200, result.RankGainPotential, 1e-9)
}

func TestScore_RankRiskFormulaAndCap(t *testing.T) {
	s := testScorer()

	// expected 6, floor 0.3, EO 40:
	// baseLoss = (6-3)*500 = 1500; blanking = 0.3*20000 = 6000
	// penalty = 0.4 -> (1500+6000)*0.4 = 3000
	result, ok := s.Score(dist(4, 6, 0, 0, 0.3), own(4, 40, 0), 100000)
	require.True(t, ok)
	assert.InDelta(t, 3000, result.RankRisk, 1e-9)

	// Everything blanks on a fully-owned monster: risk hits the cap.
	capped, ok := s.Score(dist(5, 500, 0, 0, 1.0), own(5, 99, 1), 100000)
	require.True(t, ok)
	assert.InDelta(t, 100000, capped.RankRisk, 1e-9)
}

func TestScore_RiskAdjustedValueDiscountsVolatility(t *testing.T) {
	s := testScorer()

	// expected 6, EO 30, stddev 2: 6/30 * (1 - 2/10) = 0.16
	result, ok := s.Score(dist(6, 6, 2, 0, 0), own(6, 30, 0), 100000)
	require.True(t, ok)
	assert.InDelta(t, 0.16, result.RiskAdjustedValue, 1e-9)

	// Extreme volatility floors the consistency factor at 0.5.
	volatile, ok := s.Score(dist(7, 6, 50, 0, 0), own(7, 30, 0), 100000)
	require.True(t, ok)
	assert.InDelta(t, 0.1, volatile.RiskAdjustedValue, 1e-9)

	// Sub-1% ownership is floored at 1 in the denominator.
	scarce, ok := s.Score(dist(8, 6, 0, 0, 0), types.OwnershipProfile{PlayerID: 8, TotalOwnership: 0.5, EffectiveOwnership: 0.5}, 100000)
	require.True(t, ok)
	assert.InDelta(t, 6.0, scarce.RiskAdjustedValue, 1e-9)
}

func TestScoreAll_ExcludesNonFiniteInputsWithoutAborting(t *testing.T) {
	s := testScorer()

	dists := []types.OutcomeDistribution{
		dist(1, 5, 1, 0.1, 0.1),
		dist(2, math.NaN(), 1, 0.1, 0.1),
		dist(3, 4, 1, math.Inf(1), 0.1),
		dist(4, 6, 1, 0.2, 0.1),
	}
	profiles := map[int]types.OwnershipProfile{
		1: own(1, 10, 2),
		2: own(2, 10, 2),
		3: own(3, 10, 2),
		4: own(4, 10, 2),
	}

	results, excluded := s.ScoreAll(dists, profiles, 100000)

	assert.Len(t, results, 2)
	assert.ElementsMatch(t, []int{2, 3}, excluded)
}

func TestScoreAll_MissingProfileExcludesPlayer(t *testing.T) {
	s := testScorer()

	results, excluded := s.ScoreAll(
		[]types.OutcomeDistribution{dist(9, 5, 1, 0.1, 0.1)},
		map[int]types.OwnershipProfile{},
		100000,
	)

	assert.Empty(t, results)
	assert.Equal(t, []int{9}, excluded)
}
