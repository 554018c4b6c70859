// Package ownership produces ownership and captaincy projections per player.
// When a live feed snapshot is available it is used directly; otherwise a
// deterministic heuristic stands in. The heuristic's per-player variation is
// a seeded hash of the player identifier, not true randomness, so repeated
// calls with the same inputs are byte-identical. Its outputs are an
// approximation pending a real ownership feed and are not validated against
// real-world ownership.
package ownership

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
)

// Captain multipliers; the triple-captain chip raises the normal doubling.
const (
	CaptainMultiplier       = 2.0
	TripleCaptainMultiplier = 3.0
)

// Model derives OwnershipProfiles from player records and an optional live
// feed. All heuristic constants are fixed at construction.
type Model struct {
	logger *logrus.Entry

	// Heuristic parameters
	baseOwnership     float64 // starting point before tier/position adjustment
	premiumBase       float64 // base for premium-priced players
	midPriceBase      float64 // base for upper-mid priced players
	budgetBump        float64 // added for very cheap budget-enabler picks
	perturbRange      float64 // width of the bounded per-player offset
	captaincyFraction float64 // captaincy as a fraction of ownership
	topOwnershipScale float64 // top-10k bracket scale-up
	topCaptaincyScale float64
	activeScale       float64
	minOwnership      float64
	maxOwnership      float64
}

// positionMultiplier orders ownership appeal: forwards draw the most
// ownership, goalkeepers the least.
var positionMultiplier = map[types.Position]float64{
	types.PositionForward:    1.3,
	types.PositionMidfielder: 1.2,
	types.PositionDefender:   1.0,
	types.PositionGoalkeeper: 0.8,
}

// NewModel creates an ownership model with the documented heuristic defaults.
func NewModel(log *logrus.Logger) *Model {
	return &Model{
		logger:            log.WithField("component", "ownership_model"),
		baseOwnership:     8.0,
		premiumBase:       25.0,
		midPriceBase:      15.0,
		budgetBump:        4.0,
		perturbRange:      8.0,
		captaincyFraction: 0.25,
		topOwnershipScale: 1.4,
		topCaptaincyScale: 1.6,
		activeScale:       1.1,
		minOwnership:      0.5,
		maxOwnership:      50.0,
	}
}

// Derive returns the ownership profile for one player. A live feed record
// takes precedence; the heuristic path is deterministic in the player ID.
func (m *Model) Derive(player types.Player, feed *types.OwnershipFeed, tripleCaptain bool) types.OwnershipProfile {
	multiplier := CaptainMultiplier
	if tripleCaptain {
		multiplier = TripleCaptainMultiplier
	}

	if rec, ok := feed.Lookup(player.ID); ok {
		return m.fromFeed(rec, multiplier)
	}
	return m.heuristic(player, multiplier)
}

func (m *Model) fromFeed(rec types.OwnershipRecord, multiplier float64) types.OwnershipProfile {
	p := types.OwnershipProfile{
		PlayerID:        rec.PlayerID,
		TotalOwnership:  rec.TotalOwnership,
		Captaincy:       rec.Captaincy,
		TopOwnership:    math.Min(100, rec.TotalOwnership*m.topOwnershipScale),
		TopCaptaincy:    math.Min(100, rec.Captaincy*m.topCaptaincyScale),
		ActiveOwnership: math.Min(100, rec.TotalOwnership*m.activeScale),
		FromLiveFeed:    true,
	}
	p.EffectiveOwnership = EffectiveOwnership(p.TotalOwnership, p.Captaincy, multiplier)
	p.TopEffectiveOwnership = EffectiveOwnership(p.TopOwnership, p.TopCaptaincy, multiplier)
	return p
}

func (m *Model) heuristic(player types.Player, multiplier float64) types.OwnershipProfile {
	base := m.baseOwnership
	switch {
	case player.Price >= 11.0:
		base = m.premiumBase
	case player.Price >= 8.5:
		base = m.midPriceBase
	case player.Price > 0 && player.Price <= 4.5:
		// Budget enablers see a moderate bump from squad-filler appeal.
		base += m.budgetBump
	}

	mult, ok := positionMultiplier[player.Position]
	if !ok {
		mult = 1.0
	}
	base *= mult

	// Bounded deterministic offset derived from the player identifier.
	offset := (hash01(player.ID, "ownership") - 0.5) * m.perturbRange
	total := clamp(base+offset, m.minOwnership, m.maxOwnership)

	capFrac := m.captaincyFraction + (hash01(player.ID, "captaincy")-0.5)*0.1
	captaincy := math.Max(0, total*capFrac)

	p := types.OwnershipProfile{
		PlayerID:        player.ID,
		TotalOwnership:  total,
		Captaincy:       captaincy,
		TopOwnership:    math.Min(100, total*m.topOwnershipScale),
		TopCaptaincy:    math.Min(100, captaincy*m.topCaptaincyScale),
		ActiveOwnership: math.Min(100, total*m.activeScale),
	}
	p.EffectiveOwnership = EffectiveOwnership(p.TotalOwnership, p.Captaincy, multiplier)
	p.TopEffectiveOwnership = EffectiveOwnership(p.TopOwnership, p.TopCaptaincy, multiplier)
	return p
}

// EffectiveOwnership adjusts raw ownership upward for captaincy exposure:
// ownership + captaincy * (multiplier - 1).
func EffectiveOwnership(ownership, captaincy, multiplier float64) float64 {
	return ownership + captaincy*(multiplier-1)
}

// hash01 maps a player ID and salt to a deterministic value in [0, 1).
func hash01(playerID int, salt string) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", playerID, salt)
	return float64(h.Sum64()%10000) / 10000.0
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
