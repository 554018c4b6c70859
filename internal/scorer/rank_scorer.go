// Package scorer combines simulated outcome distributions with ownership
// projections into per-player rank-impact metrics.
package scorer

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
)

// Scorer computes rank-gain, rank-risk and risk-adjusted value for players.
// The scale constants come from EngineConfig; their values are empirically
// chosen and uncalibrated, so they are configuration rather than algorithm.
type Scorer struct {
	cfg    config.EngineConfig
	logger *logrus.Entry
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg config.EngineConfig, log *logrus.Logger) *Scorer {
	return &Scorer{
		cfg:    cfg,
		logger: log.WithField("component", "rank_scorer"),
	}
}

// Score converts one distribution/ownership pair into a
// RankOptimizationResult. The second return value is false when required
// numeric fields are non-finite; the caller excludes that player and
// continues with the rest of the batch.
func (s *Scorer) Score(dist types.OutcomeDistribution, own types.OwnershipProfile, currentRank int) (types.RankOptimizationResult, bool) {
	if !finite(dist.Mean, dist.StdDev, dist.HaulingProbability, dist.FloorProbability,
		own.TotalOwnership, own.EffectiveOwnership) {
		s.logger.WithField("player_id", dist.PlayerID).Warn("Excluding player with non-finite inputs")
		return types.RankOptimizationResult{}, false
	}

	expected := dist.Mean
	eo := own.EffectiveOwnership

	result := types.RankOptimizationResult{
		PlayerID:           dist.PlayerID,
		ExpectedPoints:     expected,
		EffectiveOwnership: eo,
		RankGainPotential:  s.rankGainPotential(expected, dist.HaulingProbability, eo, currentRank),
		RankRisk:           s.rankRisk(expected, dist.FloorProbability, eo),
		RiskAdjustedValue:  s.riskAdjustedValue(expected, dist.StdDev, eo),
	}

	result.Strategy, result.Differential = s.classify(own.TotalOwnership)
	return result, true
}

// ScoreAll scores a batch, dropping players with invalid inputs rather than
// failing the batch. Returned diagnostics name the excluded players.
func (s *Scorer) ScoreAll(dists []types.OutcomeDistribution, profiles map[int]types.OwnershipProfile, currentRank int) ([]types.RankOptimizationResult, []int) {
	results := make([]types.RankOptimizationResult, 0, len(dists))
	var excluded []int

	for _, dist := range dists {
		own, ok := profiles[dist.PlayerID]
		if !ok {
			excluded = append(excluded, dist.PlayerID)
			continue
		}
		res, ok := s.Score(dist, own, currentRank)
		if !ok {
			excluded = append(excluded, dist.PlayerID)
			continue
		}
		results = append(results, res)
	}

	if len(excluded) > 0 {
		s.logger.WithFields(logrus.Fields{
			"excluded": len(excluded),
			"scored":   len(results),
		}).Warn("Some players excluded from scoring")
	}

	return results, excluded
}

// rankGainPotential rewards high-upside, low-ownership players. The result
// is capped at a tenth of the current rank so no single player can claim
// more gain than the manager's rank permits.
func (s *Scorer) rankGainPotential(expected, haulingProb, eo float64, currentRank int) float64 {
	surprise := math.Max(0, s.cfg.GainPointsThreshold-expected) * s.cfg.GainScale
	haulingBonus := haulingProb * s.cfg.HaulingScale
	scarcity := math.Max(0.001, 100-eo) / 100

	gain := (surprise + haulingBonus) * scarcity
	return math.Min(gain, float64(currentRank)*0.1)
}

// rankRisk penalizes high-ownership, high-expectation players whose blanks
// hurt relative rank. Capped at an absolute ceiling to bound worst-case
// estimates.
func (s *Scorer) rankRisk(expected, floorProb, eo float64) float64 {
	baseLoss := math.Max(0, expected-s.cfg.RiskLowBar) * s.cfg.LossScale
	blanking := floorProb * s.cfg.BlankScale
	penalty := eo / 100

	return math.Min((baseLoss+blanking)*penalty, s.cfg.RankRiskCap)
}

// riskAdjustedValue is points per unit of effective ownership, discounted
// for volatility.
func (s *Scorer) riskAdjustedValue(expected, stdDev, eo float64) float64 {
	value := expected / math.Max(1, eo)
	consistency := math.Max(0.5, 1-stdDev/s.cfg.VarianceScale)
	return value * consistency
}

// classify assigns the ownership strategy bracket. Classification uses raw
// total ownership, not the captaincy-adjusted figure.
func (s *Scorer) classify(ownership float64) (types.Strategy, bool) {
	switch {
	case ownership >= s.cfg.OwnershipHighThreshold:
		return types.StrategyTemplate, false
	case ownership >= s.cfg.OwnershipMediumThreshold:
		return types.StrategyBalanced, false
	default:
		return types.StrategyDifferential, true
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
