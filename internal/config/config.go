// Package config loads the thresholds and runtime settings of the
// conflict pipeline from defaults, an optional TOML/YAML file and the
// environment, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default thresholds of the matching and recommendation rules.
const (
	DefaultMinSimilarity           = 0.85
	DefaultHighSimilarity          = 0.95
	DefaultExactDuplicate          = 1.0
	DefaultDuplicateContentMean    = 0.92
	DefaultHighOverlapMean         = 0.90
	DefaultVersionFamilyConfidence = 0.90
	DefaultMaxPairConfidence       = 0.95
	DefaultConsolidateConfidence   = 0.75
	DefaultReviewConfidence        = 0.50
	DefaultHighConfidenceCutoff    = 0.8
	DefaultMinConflictMatches      = 3
	DefaultBlockSize               = 256
)

const envPrefix = "DOCCONFLICTS_"

// Thresholds groups every numeric rule boundary used by the pipeline
type Thresholds struct {
	MinSimilarity           float64 `toml:"min_similarity" yaml:"min_similarity"`
	HighSimilarity          float64 `toml:"high_similarity" yaml:"high_similarity"`
	ExactDuplicate          float64 `toml:"exact_duplicate" yaml:"exact_duplicate"`
	DuplicateContentMean    float64 `toml:"duplicate_content_mean" yaml:"duplicate_content_mean"`
	HighOverlapMean         float64 `toml:"high_overlap_mean" yaml:"high_overlap_mean"`
	VersionFamilyConfidence float64 `toml:"version_family_confidence" yaml:"version_family_confidence"`
	MaxPairConfidence       float64 `toml:"max_pair_confidence" yaml:"max_pair_confidence"`
	ConsolidateConfidence   float64 `toml:"consolidate_confidence" yaml:"consolidate_confidence"`
	ReviewConfidence        float64 `toml:"review_confidence" yaml:"review_confidence"`
	HighConfidenceCutoff    float64 `toml:"high_confidence_cutoff" yaml:"high_confidence_cutoff"`
	MinConflictMatches      int     `toml:"min_conflict_matches" yaml:"min_conflict_matches"`
}

// DefaultThresholds returns the standard rule boundaries
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSimilarity:           DefaultMinSimilarity,
		HighSimilarity:          DefaultHighSimilarity,
		ExactDuplicate:          DefaultExactDuplicate,
		DuplicateContentMean:    DefaultDuplicateContentMean,
		HighOverlapMean:         DefaultHighOverlapMean,
		VersionFamilyConfidence: DefaultVersionFamilyConfidence,
		MaxPairConfidence:       DefaultMaxPairConfidence,
		ConsolidateConfidence:   DefaultConsolidateConfidence,
		ReviewConfidence:        DefaultReviewConfidence,
		HighConfidenceCutoff:    DefaultHighConfidenceCutoff,
		MinConflictMatches:      DefaultMinConflictMatches,
	}
}

// Config holds all configuration for a pipeline run
type Config struct {
	Thresholds Thresholds `toml:"thresholds" yaml:"thresholds"`

	// Similarity engine
	Workers   int `toml:"workers" yaml:"workers"`
	BlockSize int `toml:"block_size" yaml:"block_size"`

	// Artifacts
	EmbeddingsPath    string `toml:"embeddings_path" yaml:"embeddings_path"`
	MatchesPath       string `toml:"matches_path" yaml:"matches_path"`
	ReportPath        string `toml:"report_path" yaml:"report_path"`
	MaxMatchesPerPair int    `toml:"max_matches_per_pair" yaml:"max_matches_per_pair"`

	// Storage and API
	DatabaseURL string `toml:"database_url" yaml:"database_url"`
	Corpus      string `toml:"corpus" yaml:"corpus"`
	Port        string `toml:"port" yaml:"port"`
	JWTSecret   string `toml:"jwt_secret" yaml:"jwt_secret"`
}

// Default returns a configuration populated with defaults
func Default() *Config {
	return &Config{
		Thresholds:     DefaultThresholds(),
		Workers:        1,
		BlockSize:      DefaultBlockSize,
		EmbeddingsPath: "embeddings/sentence_embeddings.json",
		MatchesPath:    "analysis/sentence_matches.json",
		ReportPath:     "analysis/document_conflicts.json",
		Corpus:         "default",
		Port:           "8080",
	}
}

// Load builds the configuration. path may be empty; otherwise its extension
// selects the TOML or YAML decoder. Environment variables override both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse TOML %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse YAML %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnv() {
	t := &c.Thresholds
	t.MinSimilarity = getEnvFloat("MIN_SIMILARITY", t.MinSimilarity)
	t.HighSimilarity = getEnvFloat("HIGH_SIMILARITY", t.HighSimilarity)
	t.ExactDuplicate = getEnvFloat("EXACT_DUPLICATE", t.ExactDuplicate)
	t.DuplicateContentMean = getEnvFloat("DUPLICATE_CONTENT_MEAN", t.DuplicateContentMean)
	t.HighOverlapMean = getEnvFloat("HIGH_OVERLAP_MEAN", t.HighOverlapMean)
	t.VersionFamilyConfidence = getEnvFloat("VERSION_FAMILY_CONFIDENCE", t.VersionFamilyConfidence)
	t.MaxPairConfidence = getEnvFloat("MAX_PAIR_CONFIDENCE", t.MaxPairConfidence)
	t.ConsolidateConfidence = getEnvFloat("CONSOLIDATE_CONFIDENCE", t.ConsolidateConfidence)
	t.ReviewConfidence = getEnvFloat("REVIEW_CONFIDENCE", t.ReviewConfidence)
	t.HighConfidenceCutoff = getEnvFloat("HIGH_CONFIDENCE_CUTOFF", t.HighConfidenceCutoff)
	t.MinConflictMatches = getEnvInt("MIN_CONFLICT_MATCHES", t.MinConflictMatches)

	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.BlockSize = getEnvInt("BLOCK_SIZE", c.BlockSize)
	c.EmbeddingsPath = getEnv("EMBEDDINGS_PATH", c.EmbeddingsPath)
	c.MatchesPath = getEnv("MATCHES_PATH", c.MatchesPath)
	c.ReportPath = getEnv("REPORT_PATH", c.ReportPath)
	c.MaxMatchesPerPair = getEnvInt("MAX_MATCHES_PER_PAIR", c.MaxMatchesPerPair)
	c.Corpus = getEnv("CORPUS", c.Corpus)
	c.Port = getEnv("PORT", c.Port)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	// plain DATABASE_URL is the fallback when nothing else set it
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	if v := os.Getenv("DATABASE_URL"); v != "" && c.DatabaseURL == "" {
		c.DatabaseURL = v
	}
}

// Validate checks threshold ranges and ordering
func (c *Config) Validate() error {
	t := c.Thresholds
	for name, v := range map[string]float64{
		"min_similarity":            t.MinSimilarity,
		"high_similarity":           t.HighSimilarity,
		"exact_duplicate":           t.ExactDuplicate,
		"duplicate_content_mean":    t.DuplicateContentMean,
		"high_overlap_mean":         t.HighOverlapMean,
		"version_family_confidence": t.VersionFamilyConfidence,
		"max_pair_confidence":       t.MaxPairConfidence,
		"consolidate_confidence":    t.ConsolidateConfidence,
		"review_confidence":         t.ReviewConfidence,
		"high_confidence_cutoff":    t.HighConfidenceCutoff,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be 0-1, got %f", name, v)
		}
	}
	if !(t.MinSimilarity <= t.HighSimilarity && t.HighSimilarity <= t.ExactDuplicate) {
		return fmt.Errorf("thresholds must satisfy min_similarity <= high_similarity <= exact_duplicate, got %.4f/%.4f/%.4f",
			t.MinSimilarity, t.HighSimilarity, t.ExactDuplicate)
	}
	if t.MinConflictMatches < 1 {
		return fmt.Errorf("min_conflict_matches must be positive, got %d", t.MinConflictMatches)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	if c.MaxMatchesPerPair < 0 {
		return fmt.Errorf("max_matches_per_pair must be >= 0, got %d", c.MaxMatchesPerPair)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
