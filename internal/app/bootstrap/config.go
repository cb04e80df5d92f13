package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	ServiceID string
	Version   string
	LogLevel  slog.Level

	HTTPPort int
	GRPCPort int

	CacheBackend    string
	RedisURL        string
	RedisPassword   string
	Namespace       string
	OpTimeout       time.Duration
	HealthThreshold time.Duration

	EdgeStatsURL     string
	EdgeTimeout      time.Duration
	EdgeToken        string
	EdgeTokenURL     string
	EdgeClientID     string
	EdgeClientSecret string
	EdgeScopes       []string

	WarmConcurrency  int
	WarmDeadline     time.Duration
	WarmInterval     time.Duration
	WarmRequireJobs  bool
	WarmFetchTimeout time.Duration
	WarmTargets      []WarmTarget
	WarmRunHistory   int

	DatabaseURL string
	MaxDBConns  int32

	KafkaBrokers            []string
	KafkaTopicCacheCleared  string
	KafkaTopicWarmCompleted string
}

// WarmTarget is one hot key refreshed from an upstream JSON endpoint.
type WarmTarget struct {
	Name string        `yaml:"name"`
	Key  string        `yaml:"key"`
	URL  string        `yaml:"url"`
	TTL  time.Duration `yaml:"ttl"`
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		Version  string `yaml:"version"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"service"`
	Cache struct {
		Backend           string `yaml:"backend"`
		Namespace         string `yaml:"namespace"`
		OpTimeoutMS       int    `yaml:"op_timeout_ms"`
		HealthThresholdMS int    `yaml:"health_threshold_ms"`
	} `yaml:"cache"`
	Edge struct {
		StatsURL  string   `yaml:"stats_url"`
		TimeoutMS int      `yaml:"timeout_ms"`
		TokenURL  string   `yaml:"token_url"`
		Scopes    []string `yaml:"scopes"`
	} `yaml:"edge"`
	Warm struct {
		Concurrency     int          `yaml:"concurrency"`
		DeadlineSeconds int          `yaml:"deadline_seconds"`
		IntervalSeconds int          `yaml:"interval_seconds"`
		FetchTimeoutMS  int          `yaml:"fetch_timeout_ms"`
		RequireJobs     bool         `yaml:"require_jobs"`
		History         int          `yaml:"history"`
		Targets         []WarmTarget `yaml:"targets"`
	} `yaml:"warm"`
	Dependencies struct {
		RedisURL                string   `yaml:"redis_url"`
		PostgresURL             string   `yaml:"postgres_url"`
		KafkaBrokers            []string `yaml:"kafka_brokers"`
		KafkaTopicCacheCleared  string   `yaml:"kafka_topic_cache_cleared"`
		KafkaTopicWarmCompleted string   `yaml:"kafka_topic_warm_completed"`
	} `yaml:"dependencies"`
}

// LoadConfig applies defaults, then the YAML file when it exists, then the
// environment.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "creo-cache",
		Version:                 "0.1.0",
		LogLevel:                slog.LevelInfo,
		HTTPPort:                8080,
		GRPCPort:                9090,
		CacheBackend:            BackendRedis,
		OpTimeout:               2 * time.Second,
		HealthThreshold:         100 * time.Millisecond,
		EdgeTimeout:             3 * time.Second,
		WarmConcurrency:         4,
		WarmDeadline:            2 * time.Minute,
		WarmInterval:            15 * time.Minute,
		WarmFetchTimeout:        10 * time.Second,
		WarmRunHistory:          100,
		MaxDBConns:              5,
		KafkaTopicCacheCleared:  "cache.cleared",
		KafkaTopicWarmCompleted: "cache.warm_completed",
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.LogLevel = envLevel("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.CacheBackend = strings.ToLower(envOrDefault("CACHE_BACKEND", cfg.CacheBackend))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = envOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.Namespace = envOrDefault("CACHE_NAMESPACE", cfg.Namespace)
	cfg.OpTimeout = envMillis("CACHE_OP_TIMEOUT_MS", cfg.OpTimeout)
	cfg.HealthThreshold = envMillis("CACHE_HEALTH_THRESHOLD_MS", cfg.HealthThreshold)
	cfg.EdgeStatsURL = envOrDefault("EDGE_STATS_URL", cfg.EdgeStatsURL)
	cfg.EdgeTimeout = envMillis("EDGE_TIMEOUT_MS", cfg.EdgeTimeout)
	cfg.EdgeToken = envOrDefault("EDGE_TOKEN", cfg.EdgeToken)
	cfg.EdgeTokenURL = envOrDefault("EDGE_TOKEN_URL", cfg.EdgeTokenURL)
	cfg.EdgeClientID = envOrDefault("EDGE_CLIENT_ID", cfg.EdgeClientID)
	cfg.EdgeClientSecret = envOrDefault("EDGE_CLIENT_SECRET", cfg.EdgeClientSecret)
	cfg.EdgeScopes = envCSV("EDGE_SCOPES", cfg.EdgeScopes)
	cfg.WarmConcurrency = envInt("WARM_CONCURRENCY", cfg.WarmConcurrency)
	cfg.WarmDeadline = envSeconds("WARM_DEADLINE_SECONDS", cfg.WarmDeadline)
	cfg.WarmInterval = envSeconds("WARM_INTERVAL_SECONDS", cfg.WarmInterval)
	cfg.WarmRequireJobs = envBool("WARM_REQUIRE_JOBS", cfg.WarmRequireJobs)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.Version != "" {
		cfg.Version = f.Service.Version
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = parseLevel(f.Service.LogLevel, cfg.LogLevel)
	}
	if f.Cache.Backend != "" {
		cfg.CacheBackend = strings.ToLower(f.Cache.Backend)
	}
	if f.Cache.Namespace != "" {
		cfg.Namespace = f.Cache.Namespace
	}
	if f.Cache.OpTimeoutMS > 0 {
		cfg.OpTimeout = time.Duration(f.Cache.OpTimeoutMS) * time.Millisecond
	}
	if f.Cache.HealthThresholdMS > 0 {
		cfg.HealthThreshold = time.Duration(f.Cache.HealthThresholdMS) * time.Millisecond
	}
	if f.Edge.StatsURL != "" {
		cfg.EdgeStatsURL = f.Edge.StatsURL
	}
	if f.Edge.TimeoutMS > 0 {
		cfg.EdgeTimeout = time.Duration(f.Edge.TimeoutMS) * time.Millisecond
	}
	if f.Edge.TokenURL != "" {
		cfg.EdgeTokenURL = f.Edge.TokenURL
	}
	if len(f.Edge.Scopes) > 0 {
		cfg.EdgeScopes = trimNonEmpty(f.Edge.Scopes)
	}
	if f.Warm.Concurrency > 0 {
		cfg.WarmConcurrency = f.Warm.Concurrency
	}
	if f.Warm.DeadlineSeconds > 0 {
		cfg.WarmDeadline = time.Duration(f.Warm.DeadlineSeconds) * time.Second
	}
	if f.Warm.IntervalSeconds > 0 {
		cfg.WarmInterval = time.Duration(f.Warm.IntervalSeconds) * time.Second
	}
	if f.Warm.FetchTimeoutMS > 0 {
		cfg.WarmFetchTimeout = time.Duration(f.Warm.FetchTimeoutMS) * time.Millisecond
	}
	if f.Warm.History > 0 {
		cfg.WarmRunHistory = f.Warm.History
	}
	cfg.WarmRequireJobs = f.Warm.RequireJobs
	cfg.WarmTargets = append([]WarmTarget(nil), f.Warm.Targets...)
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
	}
	if f.Dependencies.KafkaTopicCacheCleared != "" {
		cfg.KafkaTopicCacheCleared = f.Dependencies.KafkaTopicCacheCleared
	}
	if f.Dependencies.KafkaTopicWarmCompleted != "" {
		cfg.KafkaTopicWarmCompleted = f.Dependencies.KafkaTopicWarmCompleted
	}
}

func (c Config) validate() error {
	switch c.CacheBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("missing REDIS_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	seen := map[string]struct{}{}
	for i, t := range c.WarmTargets {
		if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.Key) == "" || strings.TrimSpace(t.URL) == "" {
			return fmt.Errorf("warm target %d: name, key and url are required", i)
		}
		if t.TTL < 0 {
			return fmt.Errorf("warm target %q: negative ttl", t.Name)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("warm target %q declared twice", t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envMillis(name string, fallback time.Duration) time.Duration {
	return time.Duration(envInt(name, int(fallback.Milliseconds()))) * time.Millisecond
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	return time.Duration(envInt(name, int(fallback.Seconds()))) * time.Second
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func envLevel(name string, fallback slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return parseLevel(raw, fallback)
}

func parseLevel(raw string, fallback slog.Level) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return fallback
	}
	return lvl
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
