package types

import (
	"math"
	"time"
)

// Position identifies an FPL player's position.
type Position string

const (
	PositionGoalkeeper Position = "GK"
	PositionDefender   Position = "DEF"
	PositionMidfielder Position = "MID"
	PositionForward    Position = "FWD"
)

// Fixture represents one upcoming fixture for a player, with the
// opponent-adjusted difficulty rating supplied by the data-fetch layer.
type Fixture struct {
	Opponent   string `json:"opponent"`
	Difficulty int    `json:"difficulty"` // FDR, 1 (easiest) to 5 (hardest)
	Home       bool   `json:"home"`
	Gameweek   int    `json:"gameweek"`
}

// Player is the inbound per-player record from the data-fetch collaborator.
// Fields may be partial or stale; downstream components treat missing numeric
// fields as zero rather than rejecting the record.
type Player struct {
	ID            int       `json:"id"`
	WebName       string    `json:"web_name"`
	Position      Position  `json:"position"`
	Team          string    `json:"team"`
	Price         float64   `json:"price"` // millions
	Form          float64   `json:"form"`
	PointsPerGame float64   `json:"points_per_game"`
	Minutes       int       `json:"minutes"`
	Status        string    `json:"status"` // "a" available, "d" doubtful, "i" injured
	Fixtures      []Fixture `json:"fixtures"`
}

// OwnershipRecord is one entry of the optional live ownership feed.
type OwnershipRecord struct {
	PlayerID       int     `json:"player_id"`
	TotalOwnership float64 `json:"total_ownership"`
	Captaincy      float64 `json:"captaincy"`
}

// OwnershipFeed is a snapshot of live ownership data keyed by player ID.
// A nil feed means the deterministic heuristic is used instead.
type OwnershipFeed struct {
	FetchedAt time.Time               `json:"fetched_at"`
	Records   map[int]OwnershipRecord `json:"records"`
}

// Lookup returns the live record for a player, if present.
func (f *OwnershipFeed) Lookup(playerID int) (OwnershipRecord, bool) {
	if f == nil || f.Records == nil {
		return OwnershipRecord{}, false
	}
	rec, ok := f.Records[playerID]
	return rec, ok
}

// OutcomeDistribution is the reduced result of a Monte Carlo simulation for
// one player. Samples are retained in draw order; derived statistics are
// computed once at creation and never mutated afterwards.
type OutcomeDistribution struct {
	PlayerID int       `json:"player_id"`
	Samples  []float64 `json:"-"`

	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`

	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`

	HaulingProbability float64 `json:"hauling_probability"`
	CeilingProbability float64 `json:"ceiling_probability"`
	FloorProbability   float64 `json:"floor_probability"`

	Degraded    bool     `json:"degraded,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// OwnershipProfile holds ownership and captaincy projections for one player
// for a single evaluation window.
type OwnershipProfile struct {
	PlayerID int `json:"player_id"`

	TotalOwnership  float64 `json:"total_ownership"`
	TopOwnership    float64 `json:"top_ownership"`
	ActiveOwnership float64 `json:"active_ownership"`

	Captaincy    float64 `json:"captaincy"`
	TopCaptaincy float64 `json:"top_captaincy"`

	EffectiveOwnership    float64 `json:"effective_ownership"`
	TopEffectiveOwnership float64 `json:"top_effective_ownership"`

	FromLiveFeed bool `json:"from_live_feed"`
}

// Strategy classifies a player's ownership bracket.
type Strategy string

const (
	StrategyTemplate     Strategy = "template"
	StrategyBalanced     Strategy = "balanced"
	StrategyDifferential Strategy = "differential"
)

// RankOptimizationResult is the scored output for one player, derived
// entirely from its OutcomeDistribution and OwnershipProfile.
type RankOptimizationResult struct {
	PlayerID           int      `json:"player_id"`
	WebName            string   `json:"web_name,omitempty"`
	ExpectedPoints     float64  `json:"expected_points"`
	EffectiveOwnership float64  `json:"effective_ownership"`
	RankGainPotential  float64  `json:"rank_gain_potential"`
	RankRisk           float64  `json:"rank_risk"`
	RiskAdjustedValue  float64  `json:"risk_adjusted_value"`
	Differential       bool     `json:"differential"`
	Strategy           Strategy `json:"strategy"`
}

// RiskLevel is the portfolio risk tier derived from the rank gap.
type RiskLevel string

const (
	RiskConservative RiskLevel = "conservative"
	RiskBalanced     RiskLevel = "balanced"
	RiskAggressive   RiskLevel = "aggressive"
)

// SquadSize is the fixed FPL squad size and the portfolio selection cap.
const SquadSize = 15

// PortfolioOptimization is the final recommendation returned to callers.
type PortfolioOptimization struct {
	Players             []RankOptimizationResult `json:"players"`
	TotalExpectedPoints float64                  `json:"total_expected_points"`
	ExpectedRankGain    float64                  `json:"expected_rank_gain"`
	RiskLevel           RiskLevel                `json:"risk_level"`
	DifferentialCount   int                      `json:"differential_count"`
	TemplateCount       int                      `json:"template_count"`
	Fallback            bool                     `json:"fallback,omitempty"`
}

// Round1 rounds a value to one decimal place for display serialization.
// Internal computation keeps full precision; rounding happens only at the
// API boundary.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// RoundForDisplay returns a copy of the portfolio with all numeric fields
// rounded to one decimal place.
func (p PortfolioOptimization) RoundForDisplay() PortfolioOptimization {
	out := p
	out.Players = make([]RankOptimizationResult, len(p.Players))
	for i, r := range p.Players {
		r.ExpectedPoints = Round1(r.ExpectedPoints)
		r.EffectiveOwnership = Round1(r.EffectiveOwnership)
		r.RankGainPotential = Round1(r.RankGainPotential)
		r.RankRisk = Round1(r.RankRisk)
		r.RiskAdjustedValue = Round1(r.RiskAdjustedValue)
		out.Players[i] = r
	}
	out.TotalExpectedPoints = Round1(p.TotalExpectedPoints)
	out.ExpectedRankGain = Round1(p.ExpectedRankGain)
	return out
}
