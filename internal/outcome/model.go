// Package outcome converts raw per-player inputs into the parametric scoring
// assumption sampled by the simulator. The assumption is a pure function of
// the player record and the engine configuration; malformed inputs degrade to
// zeroed fields with diagnostics rather than errors.
package outcome

import (
	"fmt"
	"math"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
)

// FPL scoring values by position.
var goalPoints = map[types.Position]float64{
	types.PositionGoalkeeper: 6,
	types.PositionDefender:   6,
	types.PositionMidfielder: 5,
	types.PositionForward:    4,
}

var cleanSheetPoints = map[types.Position]float64{
	types.PositionGoalkeeper: 4,
	types.PositionDefender:   4,
	types.PositionMidfielder: 1,
	types.PositionForward:    0,
}

const (
	appearancePoints = 2.0
	assistPoints     = 3.0
)

// ScoringAssumption holds the per-trial sampling parameters for one player
// over one evaluation window.
type ScoringAssumption struct {
	PlayerID int
	Position types.Position

	// AppearanceProbability is the chance the player features at all in a
	// given fixture.
	AppearanceProbability float64

	// GoalRate and AssistRate are per-fixture Poisson means before fixture
	// difficulty scaling.
	GoalRate   float64
	AssistRate float64

	// CleanSheetProbability is the per-fixture base probability before
	// difficulty scaling; zero for positions that score no clean-sheet points.
	CleanSheetProbability float64

	// BonusStdDev controls the bonus-point noise added per fixture.
	BonusStdDev float64

	// BaselineExpectedPoints is the no-simulation fallback used for the
	// degenerate zero-variance distribution when no fixture context exists.
	BaselineExpectedPoints float64

	GoalPoints       float64
	AssistPoints     float64
	CleanSheetPoints float64
	AppearancePoints float64

	Diagnostics []string
}

// BuildAssumption derives a scoring assumption from a player record. Missing
// or negative numeric fields are treated as zero and noted in Diagnostics;
// the function never fails for malformed but present input.
func BuildAssumption(player types.Player) ScoringAssumption {
	a := ScoringAssumption{
		PlayerID:         player.ID,
		Position:         player.Position,
		GoalPoints:       goalPoints[player.Position],
		AssistPoints:     assistPoints,
		CleanSheetPoints: cleanSheetPoints[player.Position],
		AppearancePoints: appearancePoints,
	}

	form := sanitize(player.Form, "form", &a)
	ppg := sanitize(player.PointsPerGame, "points_per_game", &a)
	price := sanitize(player.Price, "price", &a)

	if _, ok := goalPoints[player.Position]; !ok {
		a.Diagnostics = append(a.Diagnostics, fmt.Sprintf("unknown position %q, treated as forward", player.Position))
		a.GoalPoints = goalPoints[types.PositionForward]
		a.CleanSheetPoints = cleanSheetPoints[types.PositionForward]
	}

	// Appearance probability from minutes played and availability status.
	// A full season to date is ~90 minutes per gameweek; heavy rotation or a
	// flagged status pushes the probability down.
	a.AppearanceProbability = 0.9
	if player.Minutes <= 0 {
		a.AppearanceProbability = 0.5
	}
	switch player.Status {
	case "d": // doubtful
		a.AppearanceProbability *= 0.5
	case "i", "s", "u": // injured, suspended, unavailable
		a.AppearanceProbability = 0.05
	}

	// Baseline expectation blends recent form with season-long points per
	// game, weighted toward form.
	a.BaselineExpectedPoints = 0.6*form + 0.4*ppg

	// Attacking rates derive from the share of the baseline not explained by
	// appearance points, split between goals and assists by position.
	attacking := math.Max(0, a.BaselineExpectedPoints-appearancePoints*a.AppearanceProbability)
	goalShare := 0.6
	switch player.Position {
	case types.PositionGoalkeeper:
		goalShare = 0.05
	case types.PositionDefender:
		goalShare = 0.35
	case types.PositionForward:
		goalShare = 0.75
	}
	if a.GoalPoints > 0 {
		a.GoalRate = attacking * goalShare / a.GoalPoints
	}
	a.AssistRate = attacking * (1 - goalShare) / assistPoints

	// Clean-sheet base probability rises with price for defensive positions:
	// expensive keepers and defenders play behind stronger sides.
	if a.CleanSheetPoints > 0 {
		a.CleanSheetProbability = clamp(0.2+price*0.03, 0.05, 0.55)
	}

	// Bonus noise grows with the player's expectation; premium attackers
	// attract bonus points far more often than budget enablers.
	a.BonusStdDev = clamp(a.BaselineExpectedPoints*0.15, 0.3, 1.5)

	return a
}

// DifficultyFactor maps an FDR (1 easiest, 5 hardest) to a multiplicative
// scaling of attacking rates and clean-sheet probability. An out-of-range or
// missing rating is treated as neutral.
func DifficultyFactor(fdr int) float64 {
	if fdr < 1 || fdr > 5 {
		return 1.0
	}
	// FDR 3 is neutral; each step away moves the factor by 20%.
	return 1.0 + 0.2*float64(3-fdr)
}

func sanitize(v float64, field string, a *ScoringAssumption) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		a.Diagnostics = append(a.Diagnostics, fmt.Sprintf("non-finite %s treated as zero", field))
		return 0
	}
	if v < 0 {
		a.Diagnostics = append(a.Diagnostics, fmt.Sprintf("negative %s treated as zero", field))
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
