package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig tunes the heuristic search. Rule tables (days, slots, quotas,
// teachers) arrive with each generation request; only run-wide knobs live here.
type EngineConfig struct {
	Restarts          int
	MaxRepairPasses   int
	MaxSwaps          int
	TabuSize          int
	BaseSeed          int64
	ChainDepth        int
	ChainNodes        int
	ChainAttempts     int
	KempeDepth        int
	KempeNodes        int
	ProposalTTL       time.Duration
	Weights           WeightsConfig
	AdjacencyBoostAt  int
	SameSlotBoostAt   int
	AdaptiveBoostStep float64
}

// WeightsConfig mirrors the cost model terms. Hard-violation terms are kept
// orders of magnitude above soft terms so they dominate lexicographically.
type WeightsConfig struct {
	Blank           int
	TeacherConflict int
	ClassConflict   int
	WindowViolation int
	AdjacentRepeat  int
	SameSlotRepeat  int
	FallbackSubject int
	TeacherIdleGap  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		Restarts:          v.GetInt("ENGINE_RESTARTS"),
		MaxRepairPasses:   v.GetInt("ENGINE_MAX_REPAIR_PASSES"),
		MaxSwaps:          v.GetInt("ENGINE_MAX_SWAPS"),
		TabuSize:          v.GetInt("ENGINE_TABU_SIZE"),
		BaseSeed:          v.GetInt64("ENGINE_BASE_SEED"),
		ChainDepth:        v.GetInt("ENGINE_CHAIN_DEPTH"),
		ChainNodes:        v.GetInt("ENGINE_CHAIN_NODES"),
		ChainAttempts:     v.GetInt("ENGINE_CHAIN_ATTEMPTS"),
		KempeDepth:        v.GetInt("ENGINE_KEMPE_DEPTH"),
		KempeNodes:        v.GetInt("ENGINE_KEMPE_NODES"),
		ProposalTTL:       parseDuration(v.GetString("ENGINE_PROPOSAL_TTL"), 30*time.Minute),
		AdjacencyBoostAt:  v.GetInt("ENGINE_ADJACENCY_BOOST_AT"),
		SameSlotBoostAt:   v.GetInt("ENGINE_SAME_SLOT_BOOST_AT"),
		AdaptiveBoostStep: v.GetFloat64("ENGINE_ADAPTIVE_BOOST_STEP"),
		Weights: WeightsConfig{
			Blank:           v.GetInt("COST_BLANK"),
			TeacherConflict: v.GetInt("COST_CONFLICT"),
			ClassConflict:   v.GetInt("COST_CONFLICT"),
			WindowViolation: v.GetInt("COST_WINDOW_VIOLATION"),
			AdjacentRepeat:  v.GetInt("COST_ADJACENT_REPEAT"),
			SameSlotRepeat:  v.GetInt("COST_SAME_SLOT_REPEAT"),
			FallbackSubject: v.GetInt("COST_FALLBACK"),
			TeacherIdleGap:  v.GetInt("COST_TEACHER_IDLE_GAP"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_RESTARTS", 8)
	v.SetDefault("ENGINE_MAX_REPAIR_PASSES", 40)
	v.SetDefault("ENGINE_MAX_SWAPS", 2000)
	v.SetDefault("ENGINE_TABU_SIZE", 400)
	v.SetDefault("ENGINE_BASE_SEED", 12345)
	v.SetDefault("ENGINE_CHAIN_DEPTH", 4)
	v.SetDefault("ENGINE_CHAIN_NODES", 200)
	v.SetDefault("ENGINE_CHAIN_ATTEMPTS", 3)
	v.SetDefault("ENGINE_KEMPE_DEPTH", 6)
	v.SetDefault("ENGINE_KEMPE_NODES", 300)
	v.SetDefault("ENGINE_PROPOSAL_TTL", "30m")
	v.SetDefault("ENGINE_ADJACENCY_BOOST_AT", 3)
	v.SetDefault("ENGINE_SAME_SLOT_BOOST_AT", 8)
	v.SetDefault("ENGINE_ADAPTIVE_BOOST_STEP", 1.5)

	v.SetDefault("COST_BLANK", 1000000)
	v.SetDefault("COST_CONFLICT", 1000000)
	v.SetDefault("COST_WINDOW_VIOLATION", 1000000)
	v.SetDefault("COST_ADJACENT_REPEAT", 2500)
	v.SetDefault("COST_SAME_SLOT_REPEAT", 800)
	v.SetDefault("COST_FALLBACK", 250000)
	v.SetDefault("COST_TEACHER_IDLE_GAP", 200)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
