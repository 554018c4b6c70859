// Package engine orchestrates the forecasting pipeline: outcome assumptions,
// Monte Carlo simulation, ownership projection, rank scoring and portfolio
// selection. Every stage degrades rather than fails, so the engine always
// returns a well-formed PortfolioOptimization.
package engine

import (
	"context"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/cache"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/ownership"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/portfolio"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/scorer"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/simulator"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/websocket"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
)

// ChipTripleCaptain is the chip identifier that raises the captain multiplier.
const ChipTripleCaptain = "triple_captain"

// AnalyzeRequest identifies one squad analysis. The identifying parameters
// also key the result cache.
type AnalyzeRequest struct {
	TeamID      int            `json:"team_id"`
	Gameweek    int            `json:"gameweek"`
	CurrentRank int            `json:"current_rank"`
	TargetRank  int            `json:"target_rank"`
	Chip        string         `json:"chip,omitempty"`
	Players     []types.Player `json:"players,omitempty"`

	// Seed fixes the simulation randomness for reproducible output; zero
	// selects a non-deterministic seed.
	Seed uint64 `json:"seed,omitempty"`

	// AnalysisID routes progress updates; assigned by the handler.
	AnalysisID string `json:"-"`
}

// AnalyzeResult bundles the portfolio with the full scored player detail.
type AnalyzeResult struct {
	Portfolio types.PortfolioOptimization    `json:"portfolio"`
	Scored    []types.RankOptimizationResult `json:"scored_players"`
	Excluded  []int                          `json:"excluded_players,omitempty"`
	FromCache bool                           `json:"from_cache"`
}

// AnalysisEngine owns the configured pipeline components. It is constructed
// explicitly by the caller; no global simulator state exists.
type AnalysisEngine struct {
	cfg       config.EngineConfig
	simulator *simulator.Engine
	ownership *ownership.Model
	scorer    *scorer.Scorer
	selector  *portfolio.Selector
	results   *cache.ResultCache
	hub       *websocket.Hub
	logger    *logrus.Entry
}

// NewAnalysisEngine wires the pipeline. The hub may be nil when no progress
// streaming is wanted (tests, CLI use).
func NewAnalysisEngine(cfg config.EngineConfig, results *cache.ResultCache, hub *websocket.Hub, log *logrus.Logger) *AnalysisEngine {
	return &AnalysisEngine{
		cfg:       cfg,
		simulator: simulator.NewEngine(cfg, log),
		ownership: ownership.NewModel(log),
		scorer:    scorer.NewScorer(cfg, log),
		selector:  portfolio.NewSelector(cfg, log),
		results:   results,
		hub:       hub,
		logger:    log.WithField("component", "analysis_engine"),
	}
}

// AnalyzeSquad runs the full pipeline for one request. Results are cached
// for the configured TTL keyed by the request's identifying parameters plus
// the player set; the cached value is the unrounded portfolio with its full
// scored detail, so hits and misses return the same shape.
func (e *AnalysisEngine) AnalyzeSquad(ctx context.Context, req AnalyzeRequest, feed *types.OwnershipFeed) AnalyzeResult {
	key := e.results.BuildKey(req.TeamID, req.Gameweek, req.CurrentRank, req.TargetRank, req.Chip, req.Players)
	if cached, ok := e.results.Get(ctx, key); ok {
		return AnalyzeResult{
			Portfolio: cached.Portfolio,
			Scored:    cached.Scored,
			Excluded:  cached.Excluded,
			FromCache: true,
		}
	}

	result := e.run(req, feed)
	e.results.Set(ctx, key, cache.AnalysisEntry{
		Portfolio: result.Portfolio,
		Scored:    result.Scored,
		Excluded:  result.Excluded,
	})
	return result
}

func (e *AnalysisEngine) run(req AnalyzeRequest, feed *types.OwnershipFeed) AnalyzeResult {
	players := req.Players
	tripleCaptain := req.Chip == ChipTripleCaptain

	seed := req.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	e.progress(req.AnalysisID, "simulating", 0, len(players))
	dists := e.simulator.SimulateAll(players, e.cfg.SimulationRuns, seed)
	e.progress(req.AnalysisID, "simulating", len(players), len(players))

	profiles := make(map[int]types.OwnershipProfile, len(players))
	for _, p := range players {
		profiles[p.ID] = e.ownership.Derive(p, feed, tripleCaptain)
	}

	e.progress(req.AnalysisID, "scoring", 0, len(players))
	scored, excluded := e.scorer.ScoreAll(dists, profiles, req.CurrentRank)
	attachNames(scored, players)

	e.progress(req.AnalysisID, "selecting", len(players), len(players))
	opt := e.selector.Build(scored, players, req.CurrentRank, req.TargetRank)

	e.progress(req.AnalysisID, "done", len(players), len(players))

	e.logger.WithFields(logrus.Fields{
		"team_id":    req.TeamID,
		"gameweek":   req.Gameweek,
		"players":    len(players),
		"scored":     len(scored),
		"excluded":   len(excluded),
		"risk_level": opt.RiskLevel,
		"fallback":   opt.Fallback,
	}).Info("Squad analysis complete")

	return AnalyzeResult{Portfolio: opt, Scored: scored, Excluded: excluded}
}

// SimulatePlayer exposes one player's distribution, used by the per-player
// simulation endpoint.
func (e *AnalysisEngine) SimulatePlayer(player types.Player, runs int, seed uint64) types.OutcomeDistribution {
	if seed == 0 {
		seed = rand.Uint64()
	}
	src := simulator.SourceFor(seed, player.ID)
	return e.simulator.Simulate(player, player.Fixtures, runs, src)
}

func (e *AnalysisEngine) progress(analysisID, stage string, completed, total int) {
	if e.hub == nil || analysisID == "" {
		return
	}
	e.hub.BroadcastProgress(websocket.AnalysisProgress{
		AnalysisID: analysisID,
		Stage:      stage,
		Completed:  completed,
		Total:      total,
	})
}

func attachNames(scored []types.RankOptimizationResult, players []types.Player) {
	names := make(map[int]string, len(players))
	for _, p := range players {
		names[p.ID] = p.WebName
	}
	for i := range scored {
		scored[i].WebName = names[scored[i].PlayerID]
	}
}

// SquadPick ties a squad player to its pick slot. Slots 1-11 are the starting
// eleven; slots 12-15 are the bench.
type SquadPick struct {
	PlayerID int `json:"player_id"`
	Position int `json:"position"`
}

const benchSlotStart = 12

// TransferPlanRequest asks for transfer targets given the current squad and
// available budget. Picks carries the squad with pick slots; SquadIDs is
// accepted when slots are unknown, with every player treated as a starter.
type TransferPlanRequest struct {
	TeamID        int            `json:"team_id"`
	Gameweek      int            `json:"gameweek"`
	CurrentRank   int            `json:"current_rank"`
	TargetRank    int            `json:"target_rank"`
	Bank          float64        `json:"bank"`
	FreeTransfers int            `json:"free_transfers"`
	Picks         []SquadPick    `json:"picks,omitempty"`
	SquadIDs      []int          `json:"squad_ids,omitempty"`
	Pool          []types.Player `json:"pool,omitempty"`
	Seed          uint64         `json:"seed,omitempty"`
}

// TransferSuggestion pairs an outgoing squad player with an affordable
// upgrade from the candidate pool.
type TransferSuggestion struct {
	Out         types.RankOptimizationResult `json:"out"`
	In          types.RankOptimizationResult `json:"in"`
	ValueDelta  float64                      `json:"value_delta"`
	PriceChange float64                      `json:"price_change"`
}

// TransferPlan is the transfer-planning response. Suggestions are split by
// where the outgoing player sits in the squad: bench upgrades strengthen the
// back of the squad, starter targets replace someone in the starting eleven.
type TransferPlan struct {
	StarterTargets []TransferSuggestion `json:"starter_targets"`
	BenchUpgrades  []TransferSuggestion `json:"bench_upgrades"`
	RiskLevel      types.RiskLevel      `json:"risk_level"`
	MaxPlayerPrice float64              `json:"max_player_price"`
	RiskAssessment string               `json:"risk_assessment"`
}

// PlanTransfers scores the squad and the candidate pool through the same
// pipeline, then proposes like-for-like upgrades that fit the bank. An empty
// squad yields an "insufficient-data" assessment rather than an error.
func (e *AnalysisEngine) PlanTransfers(ctx context.Context, req TransferPlanRequest, feed *types.OwnershipFeed) TransferPlan {
	squadSet := make(map[int]bool, len(req.Picks)+len(req.SquadIDs))
	benchSet := make(map[int]bool, len(req.Picks))
	for _, pick := range req.Picks {
		squadSet[pick.PlayerID] = true
		if pick.Position >= benchSlotStart {
			benchSet[pick.PlayerID] = true
		}
	}
	for _, id := range req.SquadIDs {
		squadSet[id] = true
	}

	var squad, candidates []types.Player
	for _, p := range req.Pool {
		if squadSet[p.ID] {
			squad = append(squad, p)
		} else {
			candidates = append(candidates, p)
		}
	}

	plan := TransferPlan{
		RiskLevel:      e.selector.RiskLevelFor(req.CurrentRank, req.TargetRank),
		MaxPlayerPrice: req.Bank + maxPrice(squad),
	}
	if len(squad) == 0 {
		plan.RiskAssessment = "insufficient-data"
		return plan
	}
	plan.RiskAssessment = string(plan.RiskLevel)

	analysis := e.run(AnalyzeRequest{
		TeamID:      req.TeamID,
		Gameweek:    req.Gameweek,
		CurrentRank: req.CurrentRank,
		TargetRank:  req.TargetRank,
		Players:     req.Pool,
		Seed:        req.Seed,
	}, feed)

	scoredByID := make(map[int]types.RankOptimizationResult, len(analysis.Scored))
	for _, r := range analysis.Scored {
		scoredByID[r.PlayerID] = r
	}
	prices := make(map[int]float64, len(req.Pool))
	positions := make(map[int]types.Position, len(req.Pool))
	for _, p := range req.Pool {
		prices[p.ID] = p.Price
		positions[p.ID] = p.Position
	}

	limit := req.FreeTransfers
	if limit <= 0 {
		limit = 1
	}

	type rankedSuggestion struct {
		suggestion TransferSuggestion
		bench      bool
	}
	var ranked []rankedSuggestion
	for _, out := range squad {
		outScore, ok := scoredByID[out.ID]
		if !ok {
			continue
		}
		if best, ok := e.bestUpgrade(out, outScore, candidates, scoredByID, prices, positions, req.Bank); ok {
			ranked = append(ranked, rankedSuggestion{suggestion: best, bench: benchSet[out.ID]})
		}
	}

	// Best upgrades first, then the free-transfer limit applies across both
	// lists.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].suggestion.ValueDelta > ranked[j].suggestion.ValueDelta
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for _, r := range ranked {
		if r.bench {
			plan.BenchUpgrades = append(plan.BenchUpgrades, r.suggestion)
		} else {
			plan.StarterTargets = append(plan.StarterTargets, r.suggestion)
		}
	}

	return plan
}

func (e *AnalysisEngine) bestUpgrade(out types.Player, outScore types.RankOptimizationResult, candidates []types.Player, scored map[int]types.RankOptimizationResult, prices map[int]float64, positions map[int]types.Position, bank float64) (TransferSuggestion, bool) {
	var best TransferSuggestion
	found := false

	for _, c := range candidates {
		if positions[c.ID] != out.Position {
			continue
		}
		inScore, ok := scored[c.ID]
		if !ok {
			continue
		}
		priceChange := prices[c.ID] - prices[out.ID]
		if priceChange > bank {
			continue
		}
		delta := inScore.RiskAdjustedValue - outScore.RiskAdjustedValue
		if delta <= 0 {
			continue
		}
		if !found || delta > best.ValueDelta {
			best = TransferSuggestion{
				Out:         outScore,
				In:          inScore,
				ValueDelta:  delta,
				PriceChange: priceChange,
			}
			found = true
		}
	}

	return best, found
}

func maxPrice(players []types.Player) float64 {
	max := 0.0
	for _, p := range players {
		if p.Price > max {
			max = p.Price
		}
	}
	return max
}
