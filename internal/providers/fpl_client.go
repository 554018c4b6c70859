// Package providers fetches upstream FPL data with retry, rate limiting and
// circuit breaking. Failures degrade to a nil snapshot so the core falls back
// to its heuristic paths instead of blocking.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/frosttechequities/fpl-rank-optimizer/internal/types"
	"github.com/frosttechequities/fpl-rank-optimizer/pkg/config"
)

// Snapshot is one fetched view of the player pool and live ownership feed.
type Snapshot struct {
	Players   []types.Player
	Ownership *types.OwnershipFeed
	Gameweek  int
	FetchedAt time.Time
}

// FPLClient talks to the public FPL API. The latest successful snapshot is
// retained so consumers keep working through upstream outages.
type FPLClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retries    int
	logger     *logrus.Entry

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewFPLClient creates a client from server configuration.
func NewFPLClient(cfg *config.Config, log *logrus.Logger) *FPLClient {
	entry := log.WithField("component", "fpl_client")

	settings := gobreaker.Settings{
		Name:    "fpl-api",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			entry.WithFields(logrus.Fields{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	rps := cfg.FPLRateLimit
	if rps <= 0 {
		rps = 5
	}
	retries := cfg.FPLRetryAttempts
	if retries <= 0 {
		retries = 3
	}

	return &FPLClient{
		baseURL:    cfg.FPLBaseURL,
		httpClient: &http.Client{Timeout: cfg.FPLTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		retries:    retries,
		logger:     entry,
	}
}

// Snapshot returns the most recent successful snapshot, or nil if none has
// been fetched yet.
func (c *FPLClient) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Refresh fetches bootstrap and fixture data and replaces the held snapshot.
// On failure the previous snapshot is kept and the error returned for
// logging; callers treat a stale snapshot as usable.
func (c *FPLClient) Refresh(ctx context.Context) error {
	var bootstrap bootstrapResponse
	if err := c.fetchJSON(ctx, "/bootstrap-static/", &bootstrap); err != nil {
		return fmt.Errorf("failed to fetch bootstrap data: %w", err)
	}

	gameweek := currentGameweek(bootstrap.Events)

	var fixtures []fixtureRecord
	if err := c.fetchJSON(ctx, "/fixtures/?future=1", &fixtures); err != nil {
		// Fixtures are optional; players degrade to empty fixture context.
		c.logger.WithError(err).Warn("Failed to fetch fixtures, players will carry empty fixture context")
	}

	snapshot := buildSnapshot(bootstrap, fixtures, gameweek)

	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"players":  len(snapshot.Players),
		"gameweek": gameweek,
	}).Info("FPL snapshot refreshed")

	return nil
}

func (c *FPLClient) fetchJSON(ctx context.Context, path string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, path)
		})
		if err != nil {
			lastErr = err
			continue
		}

		if err := json.Unmarshal(body.([]byte), out); err != nil {
			lastErr = fmt.Errorf("failed to decode %s: %w", path, err)
			continue
		}
		return nil
	}
	return lastErr
}

func (c *FPLClient) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	return io.ReadAll(resp.Body)
}

// Upstream wire format. The FPL API sends several numeric fields as strings.

type bootstrapResponse struct {
	Events   []eventRecord   `json:"events"`
	Teams    []teamRecord    `json:"teams"`
	Elements []elementRecord `json:"elements"`
}

type eventRecord struct {
	ID        int  `json:"id"`
	IsCurrent bool `json:"is_current"`
	IsNext    bool `json:"is_next"`
}

type teamRecord struct {
	ID        int    `json:"id"`
	ShortName string `json:"short_name"`
}

type elementRecord struct {
	ID                int    `json:"id"`
	WebName           string `json:"web_name"`
	ElementType       int    `json:"element_type"` // 1 GK, 2 DEF, 3 MID, 4 FWD
	Team              int    `json:"team"`
	NowCost           int    `json:"now_cost"` // tenths of millions
	Form              string `json:"form"`
	PointsPerGame     string `json:"points_per_game"`
	Minutes           int    `json:"minutes"`
	Status            string `json:"status"`
	SelectedByPercent string `json:"selected_by_percent"`
}

type fixtureRecord struct {
	Event           int `json:"event"`
	TeamH           int `json:"team_h"`
	TeamA           int `json:"team_a"`
	TeamHDifficulty int `json:"team_h_difficulty"`
	TeamADifficulty int `json:"team_a_difficulty"`
}

var positionByElementType = map[int]types.Position{
	1: types.PositionGoalkeeper,
	2: types.PositionDefender,
	3: types.PositionMidfielder,
	4: types.PositionForward,
}

func currentGameweek(events []eventRecord) int {
	for _, e := range events {
		if e.IsCurrent {
			return e.ID
		}
	}
	for _, e := range events {
		if e.IsNext {
			return e.ID
		}
	}
	return 0
}

func buildSnapshot(bootstrap bootstrapResponse, fixtures []fixtureRecord, gameweek int) *Snapshot {
	teamNames := make(map[int]string, len(bootstrap.Teams))
	for _, t := range bootstrap.Teams {
		teamNames[t.ID] = t.ShortName
	}

	// Upcoming fixtures per team, nearest first.
	teamFixtures := make(map[int][]types.Fixture)
	for _, fx := range fixtures {
		if fx.Event == 0 {
			continue
		}
		teamFixtures[fx.TeamH] = append(teamFixtures[fx.TeamH], types.Fixture{
			Opponent:   teamNames[fx.TeamA],
			Difficulty: fx.TeamHDifficulty,
			Home:       true,
			Gameweek:   fx.Event,
		})
		teamFixtures[fx.TeamA] = append(teamFixtures[fx.TeamA], types.Fixture{
			Opponent:   teamNames[fx.TeamH],
			Difficulty: fx.TeamADifficulty,
			Home:       false,
			Gameweek:   fx.Event,
		})
	}

	players := make([]types.Player, 0, len(bootstrap.Elements))
	feed := &types.OwnershipFeed{
		FetchedAt: time.Now(),
		Records:   make(map[int]types.OwnershipRecord, len(bootstrap.Elements)),
	}

	for _, el := range bootstrap.Elements {
		players = append(players, types.Player{
			ID:            el.ID,
			WebName:       el.WebName,
			Position:      positionByElementType[el.ElementType],
			Team:          teamNames[el.Team],
			Price:         float64(el.NowCost) / 10,
			Form:          parseFloat(el.Form),
			PointsPerGame: parseFloat(el.PointsPerGame),
			Minutes:       el.Minutes,
			Status:        el.Status,
			Fixtures:      nextFixtures(teamFixtures[el.Team], gameweek, 1),
		})

		feed.Records[el.ID] = types.OwnershipRecord{
			PlayerID:       el.ID,
			TotalOwnership: parseFloat(el.SelectedByPercent),
		}
	}

	return &Snapshot{
		Players:   players,
		Ownership: feed,
		Gameweek:  gameweek,
		FetchedAt: time.Now(),
	}
}

// nextFixtures returns up to count fixtures from gameweek onward.
func nextFixtures(all []types.Fixture, gameweek, count int) []types.Fixture {
	var out []types.Fixture
	for _, fx := range all {
		if fx.Gameweek >= gameweek && len(out) < count {
			out = append(out, fx)
		}
	}
	return out
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
