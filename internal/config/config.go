package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Collaborator CollaboratorConfig
	Matching     MatchingConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
	LogJSON     bool
	LogDebug    bool
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string

	// InboundStream carries subject/opportunity domain events; OutboundStream
	// receives match.created-batch events for downstream consumers.
	InboundStream  string
	OutboundStream string
	ConsumerGroup  string
	ConsumerName   string

	ConsumerWorkers int
	BlockTimeout    time.Duration
	ClaimMinIdle    time.Duration
}

type CollaboratorConfig struct {
	ProfileServiceURL string
	RequestTimeout    time.Duration
}

type MatchingConfig struct {
	CreationThreshold int

	SkillWeight        float64
	ExperienceWeight   float64
	AvailabilityWeight float64
	LocationWeight     float64
	InterestWeight     float64

	CandidatePageSize int
	ScoringWorkers    int
	PreviewSize       int

	ReconcileInterval time.Duration
	RecencyWindow     time.Duration
	ReconcileBatch    int
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key, def string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		return v
	}
	optInt := func(key string, def int) int {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	}
	optFloat := func(key string, def float64) float64 {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return def
		}
		return f
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return def
		}
		return d
	}
	optBool := func(key string, def bool) bool {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
		LogJSON:     optBool("LOG_JSON", strings.EqualFold(os.Getenv("APP_ENV"), "production")),
		LogDebug:    optBool("LOG_DEBUG", false),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST", "localhost"),
		DBPort:     opt("DB_PORT", "5432"),
		DBName:     opt("DB_NAME", ""),
		DBUser:     opt("DB_USER", ""),
		DBPassword: opt("DB_PASSWORD", ""),
		DBSSLMode:  opt("DB_SSL_MODE", "disable"),

		ConnectTimeout:        optDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		PoolMaxConns:          int32(optInt("DB_POOL_MAX_CONNS", 10)),
		PoolMinConns:          int32(optInt("DB_POOL_MIN_CONNS", 0)),
		PoolMaxConnLifetime:   optDuration("DB_POOL_MAX_CONN_LIFETIME", 30*time.Minute),
		PoolMaxConnIdleTime:   optDuration("DB_POOL_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PoolHealthCheckPeriod: optDuration("DB_POOL_HEALTH_CHECK_PERIOD", time.Minute),
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST", "localhost"),
		Port:     opt("REDIS_PORT", "6379"),
		Password: opt("REDIS_PASSWORD", ""),

		InboundStream:  opt("EVENT_INBOUND_STREAM", "events.profiles"),
		OutboundStream: opt("EVENT_OUTBOUND_STREAM", "events.matches"),
		ConsumerGroup:  opt("EVENT_CONSUMER_GROUP", "matching-engine"),
		ConsumerName:   opt("EVENT_CONSUMER_NAME", defaultConsumerName()),

		ConsumerWorkers: optInt("EVENT_CONSUMER_WORKERS", 4),
		BlockTimeout:    optDuration("EVENT_BLOCK_TIMEOUT", 5*time.Second),
		ClaimMinIdle:    optDuration("EVENT_CLAIM_MIN_IDLE", time.Minute),
	}

	cfg.Collaborator = CollaboratorConfig{
		ProfileServiceURL: req("PROFILE_SERVICE_URL"),
		RequestTimeout:    optDuration("PROFILE_SERVICE_TIMEOUT", 5*time.Second),
	}

	cfg.Matching = MatchingConfig{
		CreationThreshold: optInt("MATCH_CREATION_THRESHOLD", 30),

		SkillWeight:        optFloat("MATCH_WEIGHT_SKILL", 0.40),
		ExperienceWeight:   optFloat("MATCH_WEIGHT_EXPERIENCE", 0.20),
		AvailabilityWeight: optFloat("MATCH_WEIGHT_AVAILABILITY", 0.15),
		LocationWeight:     optFloat("MATCH_WEIGHT_LOCATION", 0.10),
		InterestWeight:     optFloat("MATCH_WEIGHT_INTEREST", 0.15),

		CandidatePageSize: optInt("MATCH_CANDIDATE_PAGE_SIZE", 100),
		ScoringWorkers:    optInt("MATCH_SCORING_WORKERS", 8),
		PreviewSize:       optInt("MATCH_PREVIEW_SIZE", 5),

		ReconcileInterval: optDuration("MATCH_RECONCILE_INTERVAL", time.Hour),
		RecencyWindow:     optDuration("MATCH_RECENCY_WINDOW", 24*time.Hour),
		ReconcileBatch:    optInt("MATCH_RECONCILE_BATCH", 4),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	if err := cfg.Matching.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (m MatchingConfig) validate() error {
	sum := m.SkillWeight + m.ExperienceWeight + m.AvailabilityWeight + m.LocationWeight + m.InterestWeight
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("matching factor weights must sum to 1.0, got %.4f", sum)
	}
	if m.CreationThreshold < 0 || m.CreationThreshold > 100 {
		return fmt.Errorf("creation threshold must be within [0,100], got %d", m.CreationThreshold)
	}
	return nil
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "matcher-1"
	}
	return host
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}
