// Package config loads and validates the engine's runtime configuration,
// merging a YAML overlay file under environment-variable defaults, following
// the teacher's env-driven Config with typed fallbacks.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in spec.md §6 plus the per-component
// thresholds spec.md §4 defines as defaults.
type Config struct {
	Enabled          bool   `yaml:"enabled"`
	Port             int    `yaml:"port"`
	DBPath           string `yaml:"dbPath"`
	EpisodeBatchSize int    `yaml:"episodeBatchSize"`
	RetrievalBudget  int    `yaml:"retrievalTokenBudget"` // 500 default
	GlobalBudget     int    `yaml:"globalTokenBudget"`    // 4000 default
	MaxThemes        int    `yaml:"maxThemes"`
	LogLevel         string `yaml:"logLevel"`

	// Embedding port
	JinaAPIKey   string `yaml:"jinaApiKey"`
	JinaModel    string `yaml:"jinaModel"`
	EmbeddingDim int    `yaml:"embeddingDim"`
	LanceDBPath  string `yaml:"lanceDbPath"`

	// LLM port (summarization, fact extraction, theme naming, Stage II decisions)
	LLMEnabled bool   `yaml:"llmEnabled"`
	LLMBaseURL string `yaml:"llmBaseUrl"`
	LLMModel   string `yaml:"llmModel"`
	LLMAPIKey  string `yaml:"llmApiKey"`

	// Episode Builder / Semantic Extractor
	MessageRetainDays int     `yaml:"messageRetainDays"`
	DedupeThreshold   float64 `yaml:"dedupeThreshold"`

	// Theme Manager
	AssignDistanceThreshold float64 `yaml:"assignDistanceThreshold"`
	MaxSemanticsPerTheme    int     `yaml:"maxSemanticsPerTheme"`
	MinSemanticsPerTheme    int     `yaml:"minSemanticsPerTheme"`
	KNNK                    int     `yaml:"knnK"`
	ThemeDormantDays        int     `yaml:"themeDormantDays"`

	// Retriever
	AlphaDefault float64 `yaml:"alphaDefault"`
	AlphaMin     float64 `yaml:"alphaMin"`
	AlphaMax     float64 `yaml:"alphaMax"`

	// Decay
	EpisodeHalfLifeDays  float64 `yaml:"episodeHalfLifeDays"`
	SemanticHalfLifeDays float64 `yaml:"semanticHalfLifeDays"`

	// Temporal
	MaxGapDays         float64 `yaml:"maxGapDays"`
	TemporalSimilarity float64 `yaml:"temporalSimilarity"`

	// Auth
	JWTSigningKey string `yaml:"jwtSigningKey"`

	// Per-agent rate limiting on authenticated routes. RPM <= 0 disables it.
	RateLimitRPM   int `yaml:"rateLimitRpm"`
	RateLimitBurst int `yaml:"rateLimitBurst"`

	// Config hot-reload
	ConfigFile string `yaml:"-"`
}

// Load reads environment variables (with LANCEDB_PATH / JINA_API_KEY acting
// as documented fallbacks per spec.md §6), then layers a YAML overlay file
// on top when configFile is non-empty and present, and finally validates.
func Load(configFile string) (*Config, error) {
	cfg := &Config{
		Enabled:          envBool("MEMORY_ENABLED", true),
		Port:             envInt("PORT", 8741),
		DBPath:           envStr("MEMORY_DB_PATH", "/data/hmem.db"),
		EpisodeBatchSize: envInt("EPISODE_BATCH_SIZE", 5),
		RetrievalBudget:  envInt("RETRIEVAL_TOKEN_BUDGET", 500),
		GlobalBudget:     envInt("GLOBAL_TOKEN_BUDGET", 4000),
		MaxThemes:        envInt("MAX_THEMES", 50),
		LogLevel:         envStr("LOG_LEVEL", "info"),

		JinaAPIKey:   envStr("JINA_API_KEY", ""),
		JinaModel:    envStr("JINA_MODEL", "jina-embeddings-v5-text-small"),
		EmbeddingDim: envInt("EMBEDDING_DIM", 1024),
		LanceDBPath:  envStr("LANCEDB_PATH", "/data/hmem-vectors"),

		LLMEnabled: envBool("LLM_ENABLED", true),
		LLMBaseURL: envStr("LLM_BASE_URL", "http://localhost:11434"),
		LLMModel:   envStr("LLM_MODEL", "qwen2.5:7b"),
		LLMAPIKey:  envStr("LLM_API_KEY", ""),

		MessageRetainDays: envInt("MESSAGE_RETAIN_DAYS", 7),
		DedupeThreshold:   envFloat("DEDUPE_THRESHOLD", 0.15),

		AssignDistanceThreshold: envFloat("ASSIGN_DISTANCE_THRESHOLD", 0.70),
		MaxSemanticsPerTheme:    envInt("MAX_SEMANTICS_PER_THEME", 12),
		MinSemanticsPerTheme:    envInt("MIN_SEMANTICS_PER_THEME", 3),
		KNNK:                    envInt("KNN_K", 5),
		ThemeDormantDays:        envInt("THEME_DORMANT_DAYS", 30),

		AlphaDefault: envFloat("RETRIEVAL_ALPHA_DEFAULT", 0.5),
		AlphaMin:     envFloat("RETRIEVAL_ALPHA_MIN", 0.2),
		AlphaMax:     envFloat("RETRIEVAL_ALPHA_MAX", 0.8),

		EpisodeHalfLifeDays:  envFloat("EPISODE_HALF_LIFE_DAYS", 30),
		SemanticHalfLifeDays: envFloat("SEMANTIC_HALF_LIFE_DAYS", 180),

		MaxGapDays:         envFloat("TEMPORAL_MAX_GAP_DAYS", 3),
		TemporalSimilarity: envFloat("TEMPORAL_SIMILARITY_THRESHOLD", 0.6),

		JWTSigningKey: envStr("HMEM_JWT_SIGNING_KEY", ""),

		RateLimitRPM:   envInt("RATE_LIMIT_RPM", 120),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		ConfigFile: configFile,
	}

	if configFile != "" {
		if err := cfg.applyYAMLOverlay(configFile); err != nil {
			return nil, fmt.Errorf("apply yaml overlay: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyYAMLOverlay merges every field present in a YAML file on top of the
// env-derived defaults, explicit zero values included. Missing files are not an error — the overlay is
// optional, matching the teacher's tolerance for absent skill directories.
func (c *Config) applyYAMLOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	overlay := *c
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	*c = overlay
	return nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("dbPath must not be empty")
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("embeddingDim must be positive, got %d", c.EmbeddingDim)
	}
	if c.AlphaMin > c.AlphaMax {
		return fmt.Errorf("alphaMin must be <= alphaMax")
	}
	if c.AlphaDefault < c.AlphaMin || c.AlphaDefault > c.AlphaMax {
		return fmt.Errorf("alphaDefault must be within [alphaMin, alphaMax]")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
