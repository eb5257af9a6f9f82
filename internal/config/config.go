// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	DBPath   string
	Env      string
	HTTPAddr string
	LogSalt  string

	Embedding EmbeddingConfig
	Retrieval RetrievalConfig
	Timeouts  StageTimeouts
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string // "ollama", "openai" or "" (disabled)
	Model    string
	BaseURL  string
	APIKey   string
	Dims     int
}

// RetrievalConfig holds per-call-site thresholds and caps.
// The call sites use different values on purpose; do not fold them together.
type RetrievalConfig struct {
	KnowledgeThreshold  float64
	KnowledgeMatchCount int
	ExampleThreshold    float64
	ExampleMatchCount   int
	ExerciseThreshold   float64
	ExerciseLimit       int
	ProductLimit        int
}

// StageTimeouts bounds each retrieval stage of a chat turn.
type StageTimeouts struct {
	Profile   time.Duration
	Knowledge time.Duration
	Examples  time.Duration
	Exercises time.Duration
	// Semantic bounds the degradable semantic lookup inside the exercise stage.
	Semantic  time.Duration
	Marketing time.Duration
}

// DefaultRetrieval returns the per-call-site defaults.
func DefaultRetrieval() RetrievalConfig {
	return RetrievalConfig{
		KnowledgeThreshold:  0.3,
		KnowledgeMatchCount: 5,
		ExampleThreshold:    0.4,
		ExampleMatchCount:   3,
		ExerciseThreshold:   0.6,
		ExerciseLimit:       3,
		ProductLimit:        3,
	}
}

// DefaultTimeouts returns the per-stage time budgets.
func DefaultTimeouts() StageTimeouts {
	return StageTimeouts{
		Profile:   5 * time.Second,
		Knowledge: 10 * time.Second,
		Examples:  10 * time.Second,
		Exercises: 10 * time.Second,
		Semantic:  5 * time.Second,
		Marketing: 3 * time.Second,
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	r := DefaultRetrieval()
	t := DefaultTimeouts()

	cfg := &Config{
		DBPath:   getEnv("PERSONA_DB", defaultDBPath()),
		Env:      getEnv("PERSONA_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogSalt:  getEnv("LOG_HASH_SALT", ""),
		Embedding: EmbeddingConfig{
			Provider: strings.ToLower(getEnv("PERSONA_EMBED_PROVIDER", "")),
			Model:    getEnv("PERSONA_EMBED_MODEL", ""),
			BaseURL:  getEnv("PERSONA_EMBED_URL", ""),
			APIKey:   getEnv("OPENAI_API_KEY", ""),
			Dims:     getEnvInt("PERSONA_EMBED_DIMS", 768),
		},
		Retrieval: RetrievalConfig{
			KnowledgeThreshold:  getEnvFloat("KNOWLEDGE_SIMILARITY_THRESHOLD", r.KnowledgeThreshold),
			KnowledgeMatchCount: getEnvInt("KNOWLEDGE_MATCH_COUNT", r.KnowledgeMatchCount),
			ExampleThreshold:    getEnvFloat("EXAMPLE_SIMILARITY_THRESHOLD", r.ExampleThreshold),
			ExampleMatchCount:   getEnvInt("EXAMPLE_MATCH_COUNT", r.ExampleMatchCount),
			ExerciseThreshold:   getEnvFloat("EXERCISE_SEMANTIC_THRESHOLD", r.ExerciseThreshold),
			ExerciseLimit:       getEnvInt("EXERCISE_LIMIT", r.ExerciseLimit),
			ProductLimit:        getEnvInt("PRODUCT_LIMIT", r.ProductLimit),
		},
		Timeouts: StageTimeouts{
			Profile:   getEnvDuration("STAGE_TIMEOUT_PROFILE", t.Profile),
			Knowledge: getEnvDuration("STAGE_TIMEOUT_KNOWLEDGE", t.Knowledge),
			Examples:  getEnvDuration("STAGE_TIMEOUT_EXAMPLES", t.Examples),
			Exercises: getEnvDuration("STAGE_TIMEOUT_EXERCISES", t.Exercises),
			Semantic:  getEnvDuration("STAGE_TIMEOUT_EXERCISE_SEMANTIC", t.Semantic),
			Marketing: getEnvDuration("STAGE_TIMEOUT_MARKETING", t.Marketing),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("PERSONA_DB cannot be empty")
	}
	switch c.Embedding.Provider {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("PERSONA_EMBED_PROVIDER must be ollama, openai or empty, got %q", c.Embedding.Provider)
	}
	if c.Embedding.Dims <= 0 {
		return fmt.Errorf("PERSONA_EMBED_DIMS must be > 0")
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"STAGE_TIMEOUT_PROFILE":           c.Timeouts.Profile,
		"STAGE_TIMEOUT_KNOWLEDGE":         c.Timeouts.Knowledge,
		"STAGE_TIMEOUT_EXAMPLES":          c.Timeouts.Examples,
		"STAGE_TIMEOUT_EXERCISES":         c.Timeouts.Exercises,
		"STAGE_TIMEOUT_EXERCISE_SEMANTIC": c.Timeouts.Semantic,
		"STAGE_TIMEOUT_MARKETING":         c.Timeouts.Marketing,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.Timeouts.Semantic >= c.Timeouts.Exercises {
		return fmt.Errorf("STAGE_TIMEOUT_EXERCISE_SEMANTIC must be shorter than STAGE_TIMEOUT_EXERCISES")
	}
	return nil
}

// Validate checks thresholds lie in [-1, 1] and caps are positive.
func (r RetrievalConfig) Validate() error {
	for name, v := range map[string]float64{
		"KNOWLEDGE_SIMILARITY_THRESHOLD": r.KnowledgeThreshold,
		"EXAMPLE_SIMILARITY_THRESHOLD":   r.ExampleThreshold,
		"EXERCISE_SEMANTIC_THRESHOLD":    r.ExerciseThreshold,
	} {
		if v < -1 || v > 1 {
			return fmt.Errorf("%s must be within [-1, 1], got %v", name, v)
		}
	}
	for name, v := range map[string]int{
		"KNOWLEDGE_MATCH_COUNT": r.KnowledgeMatchCount,
		"EXAMPLE_MATCH_COUNT":   r.ExampleMatchCount,
		"EXERCISE_LIMIT":        r.ExerciseLimit,
		"PRODUCT_LIMIT":         r.ProductLimit,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	return nil
}

// IsProduction reports whether the logger should emit JSON.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".persona-context", "persona.db")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
