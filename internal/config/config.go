package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	HTTPPort string

	// Backend wire contract
	BackendURL string // REST base, e.g. http://queue.internal:8080
	WSURL      string // push endpoint; derived from BackendURL when empty

	// Push channel
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	AutoReconnect     bool

	// Polling fallback
	PollHealthy  time.Duration // cadence while the push channel is connected
	PollDegraded time.Duration // cadence while disconnected/reconnecting
	PageSize     int

	// Reconciled view
	WindowSize int // bounded job window the client keeps
	RecentJobs int // size of the recent-jobs projection

	// Fanout / archive (empty disables)
	RedisURL   string
	MQTTBroker string
	ArchiveDSN string

	// Logging
	LogLevel  slog.Level
	LogFormat string // "json" or "text"

	// Tracing
	OTLPEndpoint string
	ServiceName  string

	// Features
	EnableMetrics bool
	EnableTracing bool
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8090"),
		BackendURL:        getEnv("BACKEND_URL", "http://localhost:8080"),
		WSURL:             getEnv("WS_URL", ""),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		ReconnectInterval: getEnvDuration("RECONNECT_INTERVAL", 3*time.Second),
		AutoReconnect:     getEnvBool("AUTO_RECONNECT", true),
		PollHealthy:       getEnvDuration("POLL_HEALTHY_INTERVAL", 30*time.Second),
		PollDegraded:      getEnvDuration("POLL_DEGRADED_INTERVAL", 10*time.Second),
		PageSize:          getEnvInt("PAGE_SIZE", 20),
		WindowSize:        getEnvInt("WINDOW_SIZE", 50),
		RecentJobs:        getEnvInt("RECENT_JOBS", 5),
		RedisURL:          getEnv("REDIS_URL", ""),
		MQTTBroker:        getEnv("MQTT_BROKER", ""),
		ArchiveDSN:        getEnv("ARCHIVE_DSN", ""),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", ""),
		ServiceName:       getEnv("SERVICE_NAME", "pressline-sync"),
		EnableMetrics:     getEnvBool("ENABLE_METRICS", true),
		EnableTracing:     getEnvBool("ENABLE_TRACING", false),
	}

	// Parse log level
	logLevelStr := getEnv("LOG_LEVEL", "info")
	switch logLevelStr {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
