package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds server-level configuration loaded from the environment.
type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Redis (optional; in-memory cache fallback is used when unreachable)
	RedisURL string `mapstructure:"REDIS_URL"`

	// FPL API
	FPLBaseURL          string        `mapstructure:"FPL_BASE_URL"`
	FPLTimeout          time.Duration `mapstructure:"FPL_TIMEOUT"`
	FPLRateLimit        int           `mapstructure:"FPL_RATE_LIMIT"`
	FPLRetryAttempts    int           `mapstructure:"FPL_RETRY_ATTEMPTS"`
	FeedRefreshSchedule string        `mapstructure:"FEED_REFRESH_SCHEDULE"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	Engine EngineConfig `mapstructure:",squash"`
}

// EngineConfig is the explicit configuration surface for the forecasting and
// rank-optimization core. Every threshold and scale constant used by the
// scoring formulas lives here so the formulas can be tuned and tested
// independently of the algorithm shape.
//
// The rank-gain and rank-risk scale constants are empirically chosen and have
// not been calibrated against historical rank outcomes; treat them as tunable
// approximations, not ground truth.
type EngineConfig struct {
	// Simulation
	SimulationRuns    int `mapstructure:"SIMULATION_RUNS"`
	SimulationWorkers int `mapstructure:"SIMULATION_WORKERS"`

	// Point thresholds for probability buckets
	HaulingThreshold float64 `mapstructure:"HAULING_THRESHOLD"`
	CeilingThreshold float64 `mapstructure:"CEILING_THRESHOLD"`
	FloorThreshold   float64 `mapstructure:"FLOOR_THRESHOLD"`

	// Rank gain formula
	GainPointsThreshold float64 `mapstructure:"GAIN_POINTS_THRESHOLD"`
	GainScale           float64 `mapstructure:"GAIN_SCALE"`
	HaulingScale        float64 `mapstructure:"HAULING_SCALE"`

	// Rank risk formula
	RiskLowBar  float64 `mapstructure:"RISK_LOW_BAR"`
	LossScale   float64 `mapstructure:"LOSS_SCALE"`
	BlankScale  float64 `mapstructure:"BLANK_SCALE"`
	RankRiskCap float64 `mapstructure:"RANK_RISK_CAP"`

	// Consistency adjustment
	VarianceScale float64 `mapstructure:"VARIANCE_SCALE"`

	// Ownership strategy thresholds
	OwnershipMediumThreshold float64 `mapstructure:"OWNERSHIP_MEDIUM_THRESHOLD"`
	OwnershipHighThreshold   float64 `mapstructure:"OWNERSHIP_HIGH_THRESHOLD"`

	// Rank-gap tier thresholds
	ConservativeGapRatio float64 `mapstructure:"CONSERVATIVE_GAP_RATIO"`
	BalancedGapRatio     float64 `mapstructure:"BALANCED_GAP_RATIO"`

	// Result cache
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`
}

// DefaultEngineConfig returns the engine defaults used when no overrides are
// supplied. Tests build their configuration from here.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SimulationRuns:    10000,
		SimulationWorkers: 4,

		HaulingThreshold: 10,
		CeilingThreshold: 15,
		FloorThreshold:   2,

		GainPointsThreshold: 8,
		GainScale:           1000,
		HaulingScale:        100000,

		RiskLowBar:  3,
		LossScale:   500,
		BlankScale:  20000,
		RankRiskCap: 100000,

		VarianceScale: 10,

		OwnershipMediumThreshold: 8,
		OwnershipHighThreshold:   20,

		ConservativeGapRatio: 0.1,
		BalancedGapRatio:     0.5,

		CacheTTL: time.Hour,
	}
}

// LoadConfig reads configuration from .env and the environment.
func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("FPL_BASE_URL", "https://fantasy.premierleague.com/api")
	viper.SetDefault("FPL_TIMEOUT", "10s")
	viper.SetDefault("FPL_RATE_LIMIT", 5) // requests per second
	viper.SetDefault("FPL_RETRY_ATTEMPTS", 3)
	viper.SetDefault("FEED_REFRESH_SCHEDULE", "@hourly")

	def := DefaultEngineConfig()
	viper.SetDefault("SIMULATION_RUNS", def.SimulationRuns)
	viper.SetDefault("SIMULATION_WORKERS", def.SimulationWorkers)
	viper.SetDefault("HAULING_THRESHOLD", def.HaulingThreshold)
	viper.SetDefault("CEILING_THRESHOLD", def.CeilingThreshold)
	viper.SetDefault("FLOOR_THRESHOLD", def.FloorThreshold)
	viper.SetDefault("GAIN_POINTS_THRESHOLD", def.GainPointsThreshold)
	viper.SetDefault("GAIN_SCALE", def.GainScale)
	viper.SetDefault("HAULING_SCALE", def.HaulingScale)
	viper.SetDefault("RISK_LOW_BAR", def.RiskLowBar)
	viper.SetDefault("LOSS_SCALE", def.LossScale)
	viper.SetDefault("BLANK_SCALE", def.BlankScale)
	viper.SetDefault("RANK_RISK_CAP", def.RankRiskCap)
	viper.SetDefault("VARIANCE_SCALE", def.VarianceScale)
	viper.SetDefault("OWNERSHIP_MEDIUM_THRESHOLD", def.OwnershipMediumThreshold)
	viper.SetDefault("OWNERSHIP_HIGH_THRESHOLD", def.OwnershipHighThreshold)
	viper.SetDefault("CONSERVATIVE_GAP_RATIO", def.ConservativeGapRatio)
	viper.SetDefault("BALANCED_GAP_RATIO", def.BalancedGapRatio)
	viper.SetDefault("CACHE_TTL", "1h")

	viper.AutomaticEnv()

	// .env file is optional; environment variables and defaults suffice
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !strings.Contains(err.Error(), "no such file") {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Engine.SimulationRuns <= 0 {
		return nil, fmt.Errorf("SIMULATION_RUNS must be positive, got %d", cfg.Engine.SimulationRuns)
	}

	return &cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
