// Package config provides configuration loading and structs for the BookRS server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/bookrs/internal/artifact"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Encoder   EncoderConfig   `yaml:"encoder"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArtifactsConfig locates the model artifacts. Dir is the directory the
// training pipeline writes into; individual paths override the conventional
// file names inside it.
type ArtifactsConfig struct {
	Dir         string `yaml:"dir"`
	Embeddings  string `yaml:"embeddings"`
	Meta        string `yaml:"meta"`
	UserFactors string `yaml:"user_factors"`
	ItemFactors string `yaml:"item_factors"`
	UserMap     string `yaml:"user_map"`
	ItemMap     string `yaml:"item_map"`
	Popularity  string `yaml:"popularity"`
	// Watch enables a directory watcher that reloads artifacts after a
	// retraining run replaces them.
	Watch bool `yaml:"watch"`
}

// Paths resolves the artifact file paths, applying per-file overrides on top
// of the directory convention.
func (a *ArtifactsConfig) Paths() artifact.Paths {
	p := artifact.DefaultPaths(a.Dir)
	if a.Embeddings != "" {
		p.Embeddings = a.Embeddings
	}
	if a.Meta != "" {
		p.Meta = a.Meta
	}
	if a.UserFactors != "" {
		p.UserFactors = a.UserFactors
	}
	if a.ItemFactors != "" {
		p.ItemFactors = a.ItemFactors
	}
	if a.UserMap != "" {
		p.UserMap = a.UserMap
	}
	if a.ItemMap != "" {
		p.ItemMap = a.ItemMap
	}
	if a.Popularity != "" {
		p.Popularity = a.Popularity
	}
	return p
}

// CatalogConfig holds paths for the catalog database and keyword index.
type CatalogConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EncoderConfig holds query encoder settings.
type EncoderConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RecommendConfig holds fusion weights and retrieval bounds.
type RecommendConfig struct {
	SemanticWeight float64 `yaml:"semantic_weight"`
	CFWeight       float64 `yaml:"cf_weight"`
	PopWeight      float64 `yaml:"pop_weight"`
	CandidateFloor int     `yaml:"candidate_floor"`
	DefaultTopK    int     `yaml:"default_top_k"`
	MaxTopK        int     `yaml:"max_top_k"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Artifacts.Dir = expandPath(cfg.Artifacts.Dir, configDir)
	for _, p := range []*string{
		&cfg.Artifacts.Embeddings, &cfg.Artifacts.Meta,
		&cfg.Artifacts.UserFactors, &cfg.Artifacts.ItemFactors,
		&cfg.Artifacts.UserMap, &cfg.Artifacts.ItemMap,
		&cfg.Artifacts.Popularity,
	} {
		if *p != "" {
			*p = expandPath(*p, configDir)
		}
	}
	cfg.Catalog.DatabasePath = expandPath(cfg.Catalog.DatabasePath, configDir)
	cfg.Catalog.BleveIndexPath = expandPath(cfg.Catalog.BleveIndexPath, configDir)
	cfg.Encoder.ModelPath = expandPath(cfg.Encoder.ModelPath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
