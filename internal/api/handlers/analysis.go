package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/engine"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/providers"
	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/logger"
)

// AnalysisHandler serves the squad analysis and transfer planning endpoints.
type AnalysisHandler struct {
	engine *engine.AnalysisEngine
	feed   *providers.FPLClient
	cfg    *config.Config
	logger *logrus.Logger
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(analysisEngine *engine.AnalysisEngine, feed *providers.FPLClient, cfg *config.Config, logger *logrus.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		engine: analysisEngine,
		feed:   feed,
		cfg:    cfg,
		logger: logger,
	}
}

// AnalyzeSquad handles POST /api/v1/analysis.
func (h *AnalysisHandler) AnalyzeSquad(c *gin.Context) {
	var req engine.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid analysis request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	if req.CurrentRank <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_rank must be positive"})
		return
	}
	if req.TargetRank <= 0 {
		req.TargetRank = req.CurrentRank
	}

	req.AnalysisID = uuid.New().String()

	players, feed := h.resolveInputs(req.Players)
	req.Players = players

	logger.WithAnalysisID(req.AnalysisID).WithFields(logrus.Fields{
		"team_id":      req.TeamID,
		"gameweek":     req.Gameweek,
		"current_rank": req.CurrentRank,
		"target_rank":  req.TargetRank,
		"players":      len(players),
	}).Info("Processing squad analysis request")

	result := h.engine.AnalyzeSquad(c.Request.Context(), req, feed)

	c.JSON(http.StatusOK, gin.H{
		"analysis_id":      req.AnalysisID,
		"portfolio":        result.Portfolio.RoundForDisplay(),
		"scored_players":   roundAll(result.Scored),
		"excluded_players": result.Excluded,
		"from_cache":       result.FromCache,
	})
}

// PlanTransfers handles POST /api/v1/transfers/plan.
func (h *AnalysisHandler) PlanTransfers(c *gin.Context) {
	var req engine.TransferPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid transfer plan request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	if req.CurrentRank <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_rank must be positive"})
		return
	}
	if req.TargetRank <= 0 {
		req.TargetRank = req.CurrentRank
	}

	pool, feed := h.resolveInputs(req.Pool)
	req.Pool = pool

	plan := h.engine.PlanTransfers(c.Request.Context(), req, feed)
	c.JSON(http.StatusOK, plan)
}

// SimulatePlayer handles GET /api/v1/players/:id/simulation.
func (h *AnalysisHandler) SimulatePlayer(c *gin.Context) {
	playerID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid player ID"})
		return
	}

	snapshot := h.feed.Snapshot()
	if snapshot == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Player data not yet available"})
		return
	}

	var player *types.Player
	for i := range snapshot.Players {
		if snapshot.Players[i].ID == playerID {
			player = &snapshot.Players[i]
			break
		}
	}
	if player == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}

	runs := h.cfg.Engine.SimulationRuns
	if q := c.Query("runs"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			runs = v
		}
	}

	logger.WithPlayerContext(player.ID, player.WebName).WithField("runs", runs).Debug("Simulating single player")

	dist := h.engine.SimulatePlayer(*player, runs, 0)
	c.JSON(http.StatusOK, dist)
}

// resolveInputs uses request-supplied players when present, else the latest
// feed snapshot. The returned feed is nil when only the heuristic ownership
// path is available.
func (h *AnalysisHandler) resolveInputs(supplied []types.Player) ([]types.Player, *types.OwnershipFeed) {
	snapshot := h.feed.Snapshot()
	var feed *types.OwnershipFeed
	if snapshot != nil {
		feed = snapshot.Ownership
	}
	if len(supplied) > 0 {
		return supplied, feed
	}
	if snapshot != nil {
		return snapshot.Players, feed
	}
	return nil, nil
}

func roundAll(scored []types.RankOptimizationResult) []types.RankOptimizationResult {
	out := make([]types.RankOptimizationResult, len(scored))
	for i, r := range scored {
		r.ExpectedPoints = types.Round1(r.ExpectedPoints)
		r.EffectiveOwnership = types.Round1(r.EffectiveOwnership)
		r.RankGainPotential = types.Round1(r.RankGainPotential)
		r.RankRisk = types.Round1(r.RankRisk)
		r.RiskAdjustedValue = types.Round1(r.RiskAdjustedValue)
		out[i] = r
	}
	return out
}
