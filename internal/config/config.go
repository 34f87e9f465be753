package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
)

// Score modes accepted by STATS_SCORE_MODE.
const (
	ScoreModeEntry    = "entry"
	ScoreModeVote     = "vote"
	ScoreModeWeighted = "weighted"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port              string
	AuthToken         string
	DBURL             string
	ReadTimeoutSecs   int
	WriteTimeoutSecs  int
	IdleTimeoutSecs   int
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	StatsRankLimit       int
	StatsSampleLimit     int
	StatsWorkers         int
	StatsUserTimeoutSecs int
	StatsScoreMode       string
	StatsPriorMean       float64
	StatsPriorVotes      float64
	StatsRecomputeCron   string

	TMDBURL         string
	TMDBAPIKey      string
	TMDBTimeoutSecs int
	TMDBRatePerSec  float64
	TMDBWorkers     int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		AuthToken:         os.Getenv("AUTH_TOKEN"),
		DBURL:             os.Getenv("DB_URL"),
		ReadTimeoutSecs:   getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:  getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:   getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:        getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:        getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:     getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),

		StatsRankLimit:       getEnvInt("STATS_RANK_LIMIT", 100),
		StatsSampleLimit:     getEnvInt("STATS_SAMPLE_LIMIT", 25),
		StatsWorkers:         getEnvInt("STATS_WORKERS", 16),
		StatsUserTimeoutSecs: getEnvInt("STATS_USER_TIMEOUT_SECS", 60),
		StatsScoreMode:       getEnv("STATS_SCORE_MODE", ScoreModeEntry),
		StatsPriorMean:       getEnvFloat("STATS_PRIOR_MEAN", 6.5),
		StatsPriorVotes:      getEnvFloat("STATS_PRIOR_VOTES", 100),
		StatsRecomputeCron:   os.Getenv("STATS_RECOMPUTE_CRON"),

		TMDBURL:         getEnv("TMDB_URL", "https://api.themoviedb.org/3"),
		TMDBAPIKey:      os.Getenv("TMDB_API_KEY"),
		TMDBTimeoutSecs: getEnvInt("TMDB_TIMEOUT_SECS", 10),
		TMDBRatePerSec:  getEnvFloat("TMDB_RATE_PER_SEC", 20),
		TMDBWorkers:     getEnvInt("TMDB_WORKERS", 8),
	}

	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN is required")
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.StatsRankLimit < 1 || cfg.StatsRankLimit > 1000 {
		return Config{}, fmt.Errorf("STATS_RANK_LIMIT must be between 1 and 1000")
	}
	if cfg.StatsSampleLimit < 1 || cfg.StatsSampleLimit > 500 {
		return Config{}, fmt.Errorf("STATS_SAMPLE_LIMIT must be between 1 and 500")
	}
	if cfg.StatsWorkers < 1 || cfg.StatsWorkers > 256 {
		return Config{}, fmt.Errorf("STATS_WORKERS must be between 1 and 256")
	}
	if cfg.StatsUserTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("STATS_USER_TIMEOUT_SECS must be positive")
	}
	switch cfg.StatsScoreMode {
	case ScoreModeEntry, ScoreModeVote, ScoreModeWeighted:
	default:
		return Config{}, fmt.Errorf("STATS_SCORE_MODE must be one of entry, vote, weighted")
	}
	if math.IsNaN(cfg.StatsPriorMean) || cfg.StatsPriorMean < 0 || cfg.StatsPriorMean > 10 {
		return Config{}, fmt.Errorf("STATS_PRIOR_MEAN must be between 0 and 10")
	}
	if math.IsNaN(cfg.StatsPriorVotes) || math.IsInf(cfg.StatsPriorVotes, 0) || cfg.StatsPriorVotes < 0 {
		return Config{}, fmt.Errorf("STATS_PRIOR_VOTES must be a non-negative number")
	}
	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if math.IsNaN(cfg.TMDBRatePerSec) || cfg.TMDBRatePerSec <= 0 {
		return Config{}, fmt.Errorf("TMDB_RATE_PER_SEC must be positive")
	}
	if cfg.TMDBWorkers < 1 {
		return Config{}, fmt.Errorf("TMDB_WORKERS must be positive")
	}

	return cfg, nil
}

// MetadataEnabled reports whether an upstream metadata API key is configured.
func (c Config) MetadataEnabled() bool {
	return c.TMDBAPIKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
