// Package portfolio classifies the current/target rank gap into a risk tier
// and selects scored players into a final squad recommendation.
package portfolio

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
)

// Fallback values used when upstream scoring yields nothing usable. Fixed so
// the degraded path is byte-identical across calls.
const (
	fallbackExpectedPoints     = 4.0
	fallbackEffectiveOwnership = 10.0
)

// Thresholds for the tier selection policies.
const (
	conservativeDifferentialRAV = 0.8
	balancedDifferentialRAV     = 0.5
	aggressiveGainThreshold     = 20000.0
	aggressiveRAVThreshold      = 0.6

	balancedTemplateSlots     = 8
	balancedDifferentialSlots = 4
	balancedBalancedSlots     = 3
)

// Selector builds portfolio recommendations from scored players.
type Selector struct {
	cfg    config.EngineConfig
	logger *logrus.Entry
}

// NewSelector creates a portfolio selector.
func NewSelector(cfg config.EngineConfig, log *logrus.Logger) *Selector {
	return &Selector{
		cfg:    cfg,
		logger: log.WithField("component", "portfolio_selector"),
	}
}

// RiskLevelFor derives the risk tier from the rank gap ratio
// (currentRank - targetRank) / currentRank. A target above the current rank
// gives a negative ratio and resolves to conservative by the same rule.
func (s *Selector) RiskLevelFor(currentRank, targetRank int) types.RiskLevel {
	if currentRank <= 0 {
		return types.RiskConservative
	}
	ratio := float64(currentRank-targetRank) / float64(currentRank)
	switch {
	case ratio < s.cfg.ConservativeGapRatio:
		return types.RiskConservative
	case ratio < s.cfg.BalancedGapRatio:
		return types.RiskBalanced
	default:
		return types.RiskAggressive
	}
}

// Build selects and aggregates scored players into a PortfolioOptimization.
// An empty or entirely invalid scored set yields the fixed fallback portfolio
// so downstream consumers never block on an error.
func (s *Selector) Build(scored []types.RankOptimizationResult, players []types.Player, currentRank, targetRank int) types.PortfolioOptimization {
	if len(scored) == 0 {
		return s.fallback(players, currentRank, targetRank)
	}

	riskLevel := s.RiskLevelFor(currentRank, targetRank)

	// Selection policies assume descending risk-adjusted value.
	ranked := make([]types.RankOptimizationResult, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RiskAdjustedValue > ranked[j].RiskAdjustedValue
	})

	var selected []types.RankOptimizationResult
	switch riskLevel {
	case types.RiskConservative:
		selected = selectConservative(ranked)
	case types.RiskBalanced:
		selected = selectBalanced(ranked)
	default:
		selected = selectAggressive(ranked)
	}

	if len(selected) > types.SquadSize {
		selected = selected[:types.SquadSize]
	}

	opt := types.PortfolioOptimization{
		Players:   selected,
		RiskLevel: riskLevel,
	}
	for _, r := range selected {
		opt.TotalExpectedPoints += r.ExpectedPoints
		opt.ExpectedRankGain += r.RankGainPotential
		switch r.Strategy {
		case types.StrategyDifferential:
			opt.DifferentialCount++
		case types.StrategyTemplate:
			opt.TemplateCount++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"risk_level":    riskLevel,
		"selected":      len(selected),
		"differentials": opt.DifferentialCount,
		"templates":     opt.TemplateCount,
	}).Debug("Portfolio built")

	return opt
}

// selectConservative keeps the template core and only the strongest
// differentials.
func selectConservative(ranked []types.RankOptimizationResult) []types.RankOptimizationResult {
	var out []types.RankOptimizationResult
	for _, r := range ranked {
		switch r.Strategy {
		case types.StrategyTemplate, types.StrategyBalanced:
			out = append(out, r)
		case types.StrategyDifferential:
			if r.RiskAdjustedValue > conservativeDifferentialRAV {
				out = append(out, r)
			}
		}
	}
	return out
}

// selectBalanced mixes a template core with qualifying differentials and a
// few balanced picks.
func selectBalanced(ranked []types.RankOptimizationResult) []types.RankOptimizationResult {
	var templates, differentials, balanced []types.RankOptimizationResult
	for _, r := range ranked {
		switch r.Strategy {
		case types.StrategyTemplate:
			if len(templates) < balancedTemplateSlots {
				templates = append(templates, r)
			}
		case types.StrategyDifferential:
			if r.RiskAdjustedValue > balancedDifferentialRAV && len(differentials) < balancedDifferentialSlots {
				differentials = append(differentials, r)
			}
		case types.StrategyBalanced:
			if len(balanced) < balancedBalancedSlots {
				balanced = append(balanced, r)
			}
		}
	}

	out := append([]types.RankOptimizationResult{}, templates...)
	out = append(out, differentials...)
	out = append(out, balanced...)
	return out
}

// selectAggressive chases rank gain: anything with large upside qualifies.
func selectAggressive(ranked []types.RankOptimizationResult) []types.RankOptimizationResult {
	var out []types.RankOptimizationResult
	for _, r := range ranked {
		if r.RankGainPotential > aggressiveGainThreshold || r.RiskAdjustedValue > aggressiveRAVThreshold {
			out = append(out, r)
		}
	}
	return out
}

// fallback builds the fixed degraded portfolio from up to the first fifteen
// available players: flat expected points and ownership, balanced strategy,
// zero strategy counts. Identical inputs yield identical output.
func (s *Selector) fallback(players []types.Player, currentRank, targetRank int) types.PortfolioOptimization {
	n := len(players)
	if n > types.SquadSize {
		n = types.SquadSize
	}

	selected := make([]types.RankOptimizationResult, 0, n)
	total := 0.0
	for _, p := range players[:n] {
		selected = append(selected, types.RankOptimizationResult{
			PlayerID:           p.ID,
			WebName:            p.WebName,
			ExpectedPoints:     fallbackExpectedPoints,
			EffectiveOwnership: fallbackEffectiveOwnership,
			Strategy:           types.StrategyBalanced,
		})
		total += fallbackExpectedPoints
	}

	s.logger.WithField("players", n).Warn("Upstream scoring empty, returning fallback portfolio")

	return types.PortfolioOptimization{
		Players:             selected,
		TotalExpectedPoints: total,
		ExpectedRankGain:    0,
		RiskLevel:           s.RiskLevelFor(currentRank, targetRank),
		Fallback:            true,
	}
}
