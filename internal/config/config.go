package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Library    LibraryConfig
	Embedding  EmbeddingConfig
	Database   DatabaseConfig
	Clustering ClusteringConfig
}

type LibraryConfig struct {
	// PhotosDir is the root directory scanned by the indexer.
	PhotosDir string
	// ExportDir is where starred-photo exports are written.
	ExportDir string
}

type EmbeddingConfig struct {
	URL string // embedding sidecar, defaults to http://localhost:8000
	Dim int    // image embedding dimension, defaults to 512 (CLIP ViT-B/32)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// Supported clustering algorithms.
const (
	AlgorithmHDBSCAN = "hdbscan"
	AlgorithmDBSCAN  = "dbscan"
)

// ClusteringConfig holds every tunable of the grouping pipeline. All values
// can be overridden per run via environment, the optional tunables file, or
// CLI flags without code changes.
type ClusteringConfig struct {
	// Algorithm selects the clusterer: "hdbscan" (default) or "dbscan".
	Algorithm string `yaml:"algorithm"`

	// DHashThreshold is the maximum Hamming distance between two dHashes
	// for photos to be considered near-duplicates.
	DHashThreshold int `yaml:"dhash_threshold"`

	// TimeWeight blends temporal distance into visual distance (0-1).
	// 0 means pure visual clustering, 1 pure temporal.
	TimeWeight float64 `yaml:"time_weight"`

	// TimeWindow is the span within which two timestamps count as simultaneous.
	TimeWindow time.Duration `yaml:"time_window"`

	// MaxTimeWindow is the span beyond which temporal distance saturates at 1.
	MaxTimeWindow time.Duration `yaml:"max_time_window"`

	// MinClusterSize is the smallest group the clusterer may emit.
	MinClusterSize int `yaml:"min_cluster_size"`

	// MinSamples controls density requirements; 1 maximizes recall of small groups.
	MinSamples int `yaml:"min_samples"`

	// FallbackEps is the DBSCAN epsilon used when the fallback algorithm runs.
	FallbackEps float64 `yaml:"fallback_eps"`

	// FaceDistanceThreshold is the agglomerative linkage cutoff for grouping
	// face embeddings into persons.
	FaceDistanceThreshold float64 `yaml:"face_distance_threshold"`
}

// DefaultClustering returns the tuned defaults for the grouping pipeline.
func DefaultClustering() ClusteringConfig {
	return ClusteringConfig{
		Algorithm:             AlgorithmHDBSCAN,
		DHashThreshold:        12,
		TimeWeight:            0.3,
		TimeWindow:            5 * time.Minute,
		MaxTimeWindow:         24 * time.Hour,
		MinClusterSize:        2,
		MinSamples:            1,
		FallbackEps:           0.15,
		FaceDistanceThreshold: 0.5,
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float64 in [0, maxVal].
func envFloat(key string, defaultVal, maxVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= maxVal {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration (e.g. "5m", "24h").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	clustering := DefaultClustering()
	clustering.Algorithm = envString("CLUSTER_ALGORITHM", clustering.Algorithm)
	clustering.DHashThreshold = envInt("DHASH_THRESHOLD", clustering.DHashThreshold)
	clustering.TimeWeight = envFloat("TIME_WEIGHT", clustering.TimeWeight, 1)
	clustering.TimeWindow = envDuration("TIME_WINDOW", clustering.TimeWindow)
	clustering.MaxTimeWindow = envDuration("MAX_TIME_WINDOW", clustering.MaxTimeWindow)
	clustering.MinClusterSize = envInt("MIN_CLUSTER_SIZE", clustering.MinClusterSize)
	clustering.MinSamples = envInt("MIN_SAMPLES", clustering.MinSamples)
	clustering.FallbackEps = envFloat("FALLBACK_EPS", clustering.FallbackEps, 2)
	clustering.FaceDistanceThreshold = envFloat("FACE_DISTANCE_THRESHOLD", clustering.FaceDistanceThreshold, 2)

	cfg := &Config{
		Library: LibraryConfig{
			PhotosDir: envString("PHOTOS_DIR", "photos"),
			ExportDir: envString("EXPORT_DIR", "exports"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 512),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Clustering: clustering,
	}

	// The tunables file is optional and overrides env values when present.
	if path := envString("PICBEST_TUNABLES", "picbest.yaml"); path != "" {
		if err := cfg.applyTunablesFile(path); err != nil && !os.IsNotExist(err) {
			// A malformed file is a configuration mistake worth surfacing,
			// a missing one is not.
			fmt.Fprintf(os.Stderr, "warning: ignoring tunables file %s: %v\n", path, err)
		}
	}

	return cfg
}

// tunablesFile mirrors the YAML layout of the optional picbest.yaml file.
type tunablesFile struct {
	Clustering *ClusteringConfig `yaml:"clustering"`
}

func (c *Config) applyTunablesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Decode over current values so a partial file only overrides what it names.
	overlay := tunablesFile{Clustering: &c.Clustering}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing tunables: %w", err)
	}
	return nil
}

// Validate reports configuration values the pipeline cannot work with.
func (c *ClusteringConfig) Validate() error {
	if c.Algorithm != AlgorithmHDBSCAN && c.Algorithm != AlgorithmDBSCAN {
		return fmt.Errorf("unknown cluster algorithm: %s (supported: hdbscan, dbscan)", c.Algorithm)
	}
	if c.TimeWeight < 0 || c.TimeWeight > 1 {
		return fmt.Errorf("time weight must be within [0, 1], got %g", c.TimeWeight)
	}
	if c.DHashThreshold < 0 {
		return fmt.Errorf("dhash threshold must not be negative, got %d", c.DHashThreshold)
	}
	if c.MinClusterSize < 2 {
		return fmt.Errorf("min cluster size must be at least 2, got %d", c.MinClusterSize)
	}
	if c.MaxTimeWindow <= c.TimeWindow {
		return fmt.Errorf("max time window (%s) must exceed time window (%s)", c.MaxTimeWindow, c.TimeWindow)
	}
	return nil
}
