package ownership

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
)

func testModel() *Model {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewModel(log)
}

func TestEffectiveOwnership_Arithmetic(t *testing.T) {
	// ownership 25, captaincy 10, multiplier 2 -> 25 + 10*(2-1) = 35
	assert.InDelta(t, 35.0, EffectiveOwnership(25, 10, 2), 1e-9)
	// triple captain raises exposure
	assert.InDelta(t, 45.0, EffectiveOwnership(25, 10, 3), 1e-9)
}

func TestDerive_HeuristicIsDeterministic(t *testing.T) {
	model := testModel()
	player := types.Player{ID: 182, WebName: "Palmer", Position: types.PositionMidfielder, Price: 10.8}

	first := model.Derive(player, nil, false)
	second := model.Derive(player, nil, false)

	assert.Equal(t, first, second)
}

func TestDerive_EffectiveOwnershipNeverBelowTotal(t *testing.T) {
	model := testModel()

	players := []types.Player{
		{ID: 1, Position: types.PositionGoalkeeper, Price: 4.0},
		{ID: 2, Position: types.PositionDefender, Price: 5.5},
		{ID: 3, Position: types.PositionMidfielder, Price: 13.0},
		{ID: 4, Position: types.PositionForward, Price: 15.1},
		{ID: 5, Position: types.PositionForward, Price: 4.4},
	}

	for _, p := range players {
		for _, triple := range []bool{false, true} {
			profile := model.Derive(p, nil, triple)
			assert.GreaterOrEqual(t, profile.EffectiveOwnership, profile.TotalOwnership,
				"player %d triple=%v", p.ID, triple)
			assert.GreaterOrEqual(t, profile.TopEffectiveOwnership, profile.TopOwnership,
				"player %d triple=%v", p.ID, triple)
		}
	}
}

func TestDerive_OwnershipWithinClampBounds(t *testing.T) {
	model := testModel()

	for id := 1; id <= 200; id++ {
		p := types.Player{ID: id, Position: types.PositionForward, Price: 15.5}
		profile := model.Derive(p, nil, false)
		assert.GreaterOrEqual(t, profile.TotalOwnership, 0.5)
		assert.LessOrEqual(t, profile.TotalOwnership, 50.0)
		assert.GreaterOrEqual(t, profile.Captaincy, 0.0)
	}
}

func TestDerive_LiveFeedTakesPrecedence(t *testing.T) {
	model := testModel()
	player := types.Player{ID: 401, WebName: "Isak", Position: types.PositionForward, Price: 8.9}

	feed := &types.OwnershipFeed{
		Records: map[int]types.OwnershipRecord{
			401: {PlayerID: 401, TotalOwnership: 42.5, Captaincy: 12.0},
		},
	}

	profile := model.Derive(player, feed, false)
	require.True(t, profile.FromLiveFeed)
	assert.InDelta(t, 42.5, profile.TotalOwnership, 1e-9)
	assert.InDelta(t, 42.5+12.0, profile.EffectiveOwnership, 1e-9)

	// Players absent from the feed fall back to the heuristic.
	other := model.Derive(types.Player{ID: 402, Position: types.PositionForward, Price: 7.0}, feed, false)
	assert.False(t, other.FromLiveFeed)
}

func TestDerive_PremiumPriceRaisesBase(t *testing.T) {
	model := testModel()

	// Same position, far apart in price; the perturbation is bounded to 4
	// either way so the premium base dominates.
	premium := model.Derive(types.Player{ID: 10, Position: types.PositionMidfielder, Price: 12.5}, nil, false)
	budget := model.Derive(types.Player{ID: 11, Position: types.PositionMidfielder, Price: 5.0}, nil, false)

	assert.Greater(t, premium.TotalOwnership, budget.TotalOwnership)
}
