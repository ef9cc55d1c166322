package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP      HTTPConfig
	Graph     GraphConfig
	Logging   LoggingConfig
	Schema    SchemaConfig
	Corrector CorrectorConfig
	LLM       LLMConfig
	QA        QAConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MetricsEnabled    bool
	AllowedOriginsCSV string
}

// GraphConfig describes connectivity to the Neo4j database.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	Colored       bool
	IncludeCaller bool
}

// SchemaConfig selects where the graph schema comes from. When File is empty
// the schema is introspected from the graph.
type SchemaConfig struct {
	File         string
	IncludeTypes []string
	ExcludeTypes []string
}

// CorrectorConfig tunes batch correction.
type CorrectorConfig struct {
	Workers      int
	MaxBatchSize int
}

// LLMConfig points at an OpenAI-compatible chat completion endpoint. The QA
// endpoint is disabled when Model is empty.
type LLMConfig struct {
	Model   string
	BaseURL string
	APIKey  string
}

// QAConfig controls the graph question answering chain.
type QAConfig struct {
	TopK                   int
	ValidateCypher         bool
	PassthroughRejected    bool
	AllowDangerousRequests bool
	UseFunctionResponse    bool
	SanitizeRows           bool
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 60 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
	defaultWorkers          = 4
	defaultMaxBatchSize     = 500
	defaultTopK             = 10
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:            valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			Colored:       parseBoolWithDefault("LOG_COLOR", false),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       valueOrDefault("GRAPH_DATABASE", ""),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Schema: SchemaConfig{
			File:         os.Getenv("SCHEMA_FILE"),
			IncludeTypes: parseCSV(os.Getenv("SCHEMA_INCLUDE_TYPES")),
			ExcludeTypes: parseCSV(os.Getenv("SCHEMA_EXCLUDE_TYPES")),
		},
		Corrector: CorrectorConfig{
			Workers:      parseIntWithDefault("CORRECTOR_WORKERS", defaultWorkers),
			MaxBatchSize: parseIntWithDefault("CORRECTOR_MAX_BATCH", defaultMaxBatchSize),
		},
		LLM: LLMConfig{
			Model:   os.Getenv("LLM_MODEL"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
			APIKey:  os.Getenv("LLM_API_KEY"),
		},
		QA: QAConfig{
			TopK:                   parseIntWithDefault("QA_TOP_K", defaultTopK),
			ValidateCypher:         parseBoolWithDefault("QA_VALIDATE_CYPHER", true),
			PassthroughRejected:    parseBoolWithDefault("QA_PASSTHROUGH_REJECTED", false),
			AllowDangerousRequests: parseBoolWithDefault("QA_ALLOW_DANGEROUS_REQUESTS", false),
			UseFunctionResponse:    parseBoolWithDefault("QA_USE_FUNCTION_RESPONSE", false),
			SanitizeRows:           parseBoolWithDefault("QA_SANITIZE_ROWS", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.target = parsed
		}
	}

	if len(cfg.Schema.IncludeTypes) > 0 && len(cfg.Schema.ExcludeTypes) > 0 {
		return Config{}, fmt.Errorf("SCHEMA_INCLUDE_TYPES and SCHEMA_EXCLUDE_TYPES are mutually exclusive")
	}

	cfg.HTTP.MetricsEnabled = parseBoolWithDefault("SERVER_METRICS_ENABLED", false)
	cfg.HTTP.AllowedOriginsCSV = os.Getenv("SERVER_ALLOWED_ORIGINS")

	return cfg, nil
}

// ParseCSV splits a comma separated list, dropping blank entries.
func ParseCSV(csv string) []string {
	return parseCSV(csv)
}

func parseCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
