// Package config loads and merges the engine's configuration: a
// user-level YAML file holding personal defaults, optionally overridden
// per workspace by a file checked into that workspace. Precedence is
// defaults -> user config -> workspace config -> environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Decision   DecisionConfig   `yaml:"decision" json:"decision"`
	Cleanup    CleanupConfig    `yaml:"cleanup" json:"cleanup"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// RetrievalConfig tunes the lexical/vector fusion and reranking pipeline.
type RetrievalConfig struct {
	// Enabled is the master switch; when false the coordinator answers
	// without consulting the index at all.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DefaultScope is the scope consulted when a caller doesn't name one
	// explicitly: "global", "workspace", or "session".
	DefaultScope string `yaml:"default_scope" json:"default_scope"`

	KLex          int `yaml:"k_lex" json:"k_lex"`
	KVec          int `yaml:"k_vec" json:"k_vec"`
	RRFConstant   int `yaml:"rrf_constant" json:"rrf_constant"`
	MaxCandidates int `yaml:"max_candidates" json:"max_candidates"`
	TopK          int `yaml:"top_k" json:"top_k"`

	// RerankMode selects "none", "heuristic", or "llm".
	RerankMode string `yaml:"rerank_mode" json:"rerank_mode"`
}

// ChunkingConfig controls markdown chunking.
type ChunkingConfig struct {
	ChunkSizeChars int `yaml:"chunk_size_chars" json:"chunk_size_chars"`
	OverlapChars   int `yaml:"overlap_chars" json:"overlap_chars"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects "http" (Ollama-compatible endpoint) or "unavailable"
	// (a stub used when no embedding backend is configured).
	Provider  string `yaml:"provider" json:"provider"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Model     string `yaml:"model" json:"model"`
	Dimension int    `yaml:"dimension" json:"dimension"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`
}

// DecisionConfig tunes the should-retrieve classifier and query rewriting.
type DecisionConfig struct {
	// MinQueryLength is the character length a message must be shorter
	// than before the skip-phrase heuristic is tried at all; a value of
	// zero or less turns the heuristic off.
	MinQueryLength int `yaml:"min_query_length" json:"min_query_length"`

	// SkipPhrases are greetings and acknowledgements that short-circuit
	// retrieval when a short message equals one or starts with one.
	SkipPhrases []string `yaml:"skip_phrases" json:"skip_phrases"`

	// RewriteQuery enables LLM-assisted query rewriting before search.
	RewriteQuery bool `yaml:"rewrite_query" json:"rewrite_query"`
}

// CleanupConfig controls stale-session pruning.
type CleanupConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	RetentionDays   int    `yaml:"retention_days" json:"retention_days"`
	CleanupInterval string `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// WatchConfig controls filesystem watching.
type WatchConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	DebounceMillis   int      `yaml:"debounce_millis" json:"debounce_millis"`
	QueueCapacity    int      `yaml:"queue_capacity" json:"queue_capacity"`
	PollFallback     bool     `yaml:"poll_fallback" json:"poll_fallback"`
	PollIntervalSecs int      `yaml:"poll_interval_secs" json:"poll_interval_secs"`
	ExcludeGlobs     []string `yaml:"exclude_globs" json:"exclude_globs"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level"`
	FilePath      string `yaml:"file_path" json:"file_path"`
	WriteToStderr bool   `yaml:"write_to_stderr" json:"write_to_stderr"`
}

// defaultExcludeGlobs always includes the engine's own .cortexrag data
// directory: it lives inside the watched workspace root, and without the
// exclusion the watcher would react to its own database writes.
var defaultExcludeGlobs = []string{
	"**/.cortexrag/**",
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Retrieval: RetrievalConfig{
			Enabled:       true,
			DefaultScope:  "workspace",
			KLex:          20,
			KVec:          20,
			RRFConstant:   60,
			MaxCandidates: 200,
			TopK:          8,
			RerankMode:    "heuristic",
		},
		Chunking: ChunkingConfig{
			ChunkSizeChars: 1200,
			OverlapChars:   150,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "unavailable",
			Endpoint:  "http://localhost:11434",
			Model:     "nomic-embed-text",
			Dimension: 768,
			BatchSize: 32,
			CacheSize: 2000,
		},
		Decision: DecisionConfig{
			MinQueryLength: 8,
			SkipPhrases:    []string{"thanks", "thank you", "ok", "okay", "got it", "sounds good", "hi", "hello"},
			RewriteQuery:   false,
		},
		Cleanup: CleanupConfig{
			Enabled:         true,
			RetentionDays:   7,
			CleanupInterval: "24h",
		},
		Watch: WatchConfig{
			Enabled:          true,
			DebounceMillis:   500,
			QueueCapacity:    1000,
			PollFallback:     true,
			PollIntervalSecs: 5,
			ExcludeGlobs:     defaultExcludeGlobs,
		},
		Logging: LoggingConfig{
			Level:         "info",
			WriteToStderr: true,
		},
	}
}

// GetUserConfigPath returns the user-level config path, honoring
// XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cortexrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "cortexrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "cortexrag", "config.yaml")
}

// WorkspaceConfigPath returns the per-workspace override path under dir.
func WorkspaceConfigPath(dir string) string {
	return filepath.Join(dir, ".cortexrag.yaml")
}

// Load builds the effective configuration for a workspace rooted at dir:
// defaults, then the user config if present, then the workspace config if
// present, then CORTEXRAG_* environment overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadFile(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if wsCfg, err := loadFile(WorkspaceConfigPath(dir)); err != nil {
		return nil, fmt.Errorf("load workspace config: %w", err)
	} else if wsCfg != nil {
		cfg.mergeWith(wsCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &parsed, nil
}

// mergeWith overlays the non-zero numeric and string fields of other onto
// c; a zero value in other leaves c's value as it is. A non-empty
// SkipPhrases replaces c's list, while ExcludeGlobs are appended to it.
// Boolean fields are not read from other at all.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Retrieval.DefaultScope != "" {
		c.Retrieval.DefaultScope = other.Retrieval.DefaultScope
	}
	if other.Retrieval.KLex != 0 {
		c.Retrieval.KLex = other.Retrieval.KLex
	}
	if other.Retrieval.KVec != 0 {
		c.Retrieval.KVec = other.Retrieval.KVec
	}
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.MaxCandidates != 0 {
		c.Retrieval.MaxCandidates = other.Retrieval.MaxCandidates
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.RerankMode != "" {
		c.Retrieval.RerankMode = other.Retrieval.RerankMode
	}

	if other.Chunking.ChunkSizeChars != 0 {
		c.Chunking.ChunkSizeChars = other.Chunking.ChunkSizeChars
	}
	if other.Chunking.OverlapChars != 0 {
		c.Chunking.OverlapChars = other.Chunking.OverlapChars
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimension != 0 {
		c.Embeddings.Dimension = other.Embeddings.Dimension
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Decision.MinQueryLength != 0 {
		c.Decision.MinQueryLength = other.Decision.MinQueryLength
	}
	if len(other.Decision.SkipPhrases) > 0 {
		c.Decision.SkipPhrases = other.Decision.SkipPhrases
	}

	if other.Cleanup.RetentionDays != 0 {
		c.Cleanup.RetentionDays = other.Cleanup.RetentionDays
	}
	if other.Cleanup.CleanupInterval != "" {
		c.Cleanup.CleanupInterval = other.Cleanup.CleanupInterval
	}

	if other.Watch.DebounceMillis != 0 {
		c.Watch.DebounceMillis = other.Watch.DebounceMillis
	}
	if other.Watch.QueueCapacity != 0 {
		c.Watch.QueueCapacity = other.Watch.QueueCapacity
	}
	if other.Watch.PollIntervalSecs != 0 {
		c.Watch.PollIntervalSecs = other.Watch.PollIntervalSecs
	}
	if len(other.Watch.ExcludeGlobs) > 0 {
		c.Watch.ExcludeGlobs = append(c.Watch.ExcludeGlobs, other.Watch.ExcludeGlobs...)
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
}

// applyEnvOverrides applies CORTEXRAG_* environment variable overrides,
// the highest-precedence tier.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CORTEXRAG_RETRIEVAL_ENABLED"); v != "" {
		c.Retrieval.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("CORTEXRAG_DEFAULT_SCOPE"); v != "" {
		c.Retrieval.DefaultScope = v
	}
	if v := os.Getenv("CORTEXRAG_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("CORTEXRAG_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CORTEXRAG_EMBEDDINGS_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("CORTEXRAG_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CORTEXRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports configuration errors that would otherwise surface as
// confusing failures deep in the retrieval pipeline.
func (c *Config) Validate() error {
	if c.Retrieval.KLex < 0 || c.Retrieval.KVec < 0 {
		return fmt.Errorf("k_lex and k_vec must be non-negative")
	}
	if c.Retrieval.RRFConstant <= 0 {
		return fmt.Errorf("rrf_constant must be positive, got %d", c.Retrieval.RRFConstant)
	}
	if c.Retrieval.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive, got %d", c.Retrieval.MaxCandidates)
	}
	validScopes := map[string]bool{"global": true, "workspace": true, "session": true}
	if !validScopes[c.Retrieval.DefaultScope] {
		return fmt.Errorf("default_scope must be 'global', 'workspace', or 'session', got %q", c.Retrieval.DefaultScope)
	}
	validRerank := map[string]bool{"none": true, "heuristic": true, "llm": true}
	if !validRerank[c.Retrieval.RerankMode] {
		return fmt.Errorf("rerank_mode must be 'none', 'heuristic', or 'llm', got %q", c.Retrieval.RerankMode)
	}
	if c.Chunking.ChunkSizeChars <= 0 {
		return fmt.Errorf("chunk_size_chars must be positive, got %d", c.Chunking.ChunkSizeChars)
	}
	if c.Chunking.OverlapChars < 0 || c.Chunking.OverlapChars >= c.Chunking.ChunkSizeChars {
		return fmt.Errorf("overlap_chars must be non-negative and smaller than chunk_size_chars")
	}
	if c.Cleanup.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be non-negative, got %d", c.Cleanup.RetentionDays)
	}
	validProviders := map[string]bool{"http": true, "unavailable": true}
	if !validProviders[c.Embeddings.Provider] {
		return fmt.Errorf("embeddings.provider must be 'http' or 'unavailable', got %q", c.Embeddings.Provider)
	}
	return nil
}

// WriteYAML serializes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
