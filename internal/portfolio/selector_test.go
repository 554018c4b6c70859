package portfolio

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
)

func testSelector() *Selector {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewSelector(config.DefaultEngineConfig(), log)
}

func scored(id int, strategy types.Strategy, rav, gain, expected float64) types.RankOptimizationResult {
	return types.RankOptimizationResult{
		PlayerID:          id,
		Strategy:          strategy,
		Differential:      strategy == types.StrategyDifferential,
		RiskAdjustedValue: rav,
		RankGainPotential: gain,
		ExpectedPoints:    expected,
	}
}

func TestRiskLevelFor(t *testing.T) {
	s := testSelector()

	tests := []struct {
		currentRank int
		targetRank  int
		expected    types.RiskLevel
	}{
		{500000, 100000, types.RiskAggressive},   // ratio 0.8
		{100000, 95000, types.RiskConservative},  // ratio 0.05
		{200000, 120000, types.RiskBalanced},     // ratio 0.4
		{100000, 150000, types.RiskConservative}, // negative ratio
		{100000, 100000, types.RiskConservative}, // ratio 0
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, s.RiskLevelFor(tt.currentRank, tt.targetRank),
			"current=%d target=%d", tt.currentRank, tt.targetRank)
	}
}

func TestBuild_PortfolioNeverExceedsSquadSize(t *testing.T) {
	s := testSelector()

	var players []types.RankOptimizationResult
	for i := 1; i <= 40; i++ {
		players = append(players, scored(i, types.StrategyTemplate, float64(40-i), 100, 5))
	}

	// Conservative keeps every template pick, so only the cap limits size.
	opt := s.Build(players, nil, 100000, 99000)
	assert.Len(t, opt.Players, types.SquadSize)
}

func TestBuild_ConservativeFiltersWeakDifferentials(t *testing.T) {
	s := testSelector()

	players := []types.RankOptimizationResult{
		scored(1, types.StrategyTemplate, 1.2, 500, 6),
		scored(2, types.StrategyBalanced, 0.9, 800, 5),
		scored(3, types.StrategyDifferential, 0.85, 9000, 4), // strong, kept
		scored(4, types.StrategyDifferential, 0.4, 12000, 3), // weak, dropped
	}

	opt := s.Build(players, nil, 100000, 98000)

	require.Equal(t, types.RiskConservative, opt.RiskLevel)
	ids := selectedIDs(opt)
	assert.Contains(t, ids, 3)
	assert.NotContains(t, ids, 4)
	assert.Equal(t, 1, opt.DifferentialCount)
	assert.Equal(t, 1, opt.TemplateCount)
}

func TestBuild_BalancedComposition(t *testing.T) {
	s := testSelector()

	var players []types.RankOptimizationResult
	for i := 1; i <= 10; i++ {
		players = append(players, scored(i, types.StrategyTemplate, 2.0-float64(i)*0.05, 100, 5))
	}
	for i := 11; i <= 18; i++ {
		players = append(players, scored(i, types.StrategyDifferential, 0.9-float64(i-11)*0.1, 15000, 4))
	}
	for i := 19; i <= 24; i++ {
		players = append(players, scored(i, types.StrategyBalanced, 0.7, 500, 5))
	}

	opt := s.Build(players, nil, 200000, 120000) // ratio 0.4 -> balanced

	require.Equal(t, types.RiskBalanced, opt.RiskLevel)
	assert.LessOrEqual(t, len(opt.Players), types.SquadSize)
	assert.Equal(t, 8, opt.TemplateCount)
	// Only differentials above the 0.5 risk-adjusted-value bar qualify, max 4.
	assert.LessOrEqual(t, opt.DifferentialCount, 4)
	for _, p := range opt.Players {
		if p.Strategy == types.StrategyDifferential {
			assert.Greater(t, p.RiskAdjustedValue, 0.5)
		}
	}
}

func TestBuild_AggressiveChasesUpside(t *testing.T) {
	s := testSelector()

	players := []types.RankOptimizationResult{
		scored(1, types.StrategyDifferential, 0.3, 25000, 4), // qualifies on gain
		scored(2, types.StrategyTemplate, 0.7, 100, 6),       // qualifies on value
		scored(3, types.StrategyBalanced, 0.2, 500, 3),       // neither, dropped
	}

	opt := s.Build(players, nil, 500000, 100000) // ratio 0.8 -> aggressive

	require.Equal(t, types.RiskAggressive, opt.RiskLevel)
	assert.ElementsMatch(t, []int{1, 2}, selectedIDs(opt))
	assert.InDelta(t, 10.0, opt.TotalExpectedPoints, 1e-9)
	assert.InDelta(t, 25100.0, opt.ExpectedRankGain, 1e-9)
}

func TestBuild_EmptyScoredSetReturnsFallback(t *testing.T) {
	s := testSelector()

	pool := make([]types.Player, 20)
	for i := range pool {
		pool[i] = types.Player{ID: i + 1, WebName: fmt.Sprintf("Player%d", i+1)}
	}

	opt := s.Build(nil, pool, 100000, 90000)

	require.True(t, opt.Fallback)
	assert.Len(t, opt.Players, types.SquadSize)
	for _, p := range opt.Players {
		assert.InDelta(t, 4.0, p.ExpectedPoints, 1e-9)
		assert.InDelta(t, 10.0, p.EffectiveOwnership, 1e-9)
		assert.Equal(t, types.StrategyBalanced, p.Strategy)
	}
	assert.Zero(t, opt.DifferentialCount)
	assert.Zero(t, opt.TemplateCount)
	assert.Zero(t, opt.ExpectedRankGain)
	assert.InDelta(t, 60.0, opt.TotalExpectedPoints, 1e-9)
}

func TestBuild_FallbackIsIdempotent(t *testing.T) {
	s := testSelector()

	pool := []types.Player{
		{ID: 1, WebName: "Semenyo"},
		{ID: 2, WebName: "Solanke"},
		{ID: 3, WebName: "Porro"},
	}

	first := s.Build(nil, pool, 100000, 90000)
	second := s.Build(nil, pool, 100000, 90000)

	assert.Equal(t, first, second)
}

func selectedIDs(opt types.PortfolioOptimization) []int {
	ids := make([]int, 0, len(opt.Players))
	for _, p := range opt.Players {
		ids = append(ids, p.PlayerID)
	}
	return ids
}
