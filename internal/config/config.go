// Package config loads the repository's tuning knobs from a YAML file via
// viper, with fsnotify-driven live-reload of the fields that are safe to
// change on a running process. Key material (the sealed key bundle) is never
// part of this file and is never reloaded this way.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/asuran-archive/asuran/internal/validation"
)

// Config holds the repository's tuning knobs. Fields are grouped by which
// component reads them.
type Config struct {
	// DataDir is the local backend's root directory.
	DataDir string

	// SegmentCap is the byte size at which a local segment seals.
	SegmentCap int64
	// CommitInterval flushes the staged index batch every N writes.
	CommitInterval int
	// ReadCacheSize bounds the repository's ciphertext LRU cache, in entries.
	ReadCacheSize int

	// ChunkAvgSize/MinSize/MaxSize bound FastCDC chunk boundaries for new
	// writes. Existing chunks are unaffected by a later change.
	ChunkAvgSize int
	ChunkMinSize int
	ChunkMaxSize int

	// PipelineWorkers/PipelineQueueDepth size the ingest pipeline's worker
	// pool.
	PipelineWorkers   int
	PipelineQueueDepth int

	// ErasureDataShards/ErasureParityShards configure the erasure-coded
	// backend decorator, when enabled.
	ErasureDataShards   int
	ErasureParityShards int

	// RemoteAddress is the QUIC remote backend's dial address, when the
	// repository is configured against a remote store instead of local.
	RemoteAddress string

	// MetricsAddress serves the Prometheus /metrics endpoint, empty disables it.
	MetricsAddress string
}

// reloadableFields are the config keys live-reload is allowed to touch.
// Anything key-material-adjacent (none of it lives in this file at all) or
// that only takes effect at backend-open time (DataDir, RemoteAddress,
// ErasureDataShards/ErasureParityShards) is excluded.
var reloadableFields = map[string]bool{
	"segment_cap":          true,
	"commit_interval":      true,
	"read_cache_size":      true,
	"chunk_avg_size":       true,
	"chunk_min_size":       true,
	"chunk_max_size":       true,
	"pipeline_workers":     true,
	"pipeline_queue_depth": true,
	"metrics_address":      true,
}

// DefaultConfig returns sane defaults for a repository rooted under the
// user's home data directory.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local", "share", "asuran", "repository")

	const avg = 64 * 1024
	return &Config{
		DataDir:             dataDir,
		SegmentCap:          250 * 1024,
		CommitInterval:      64,
		ReadCacheSize:       1024,
		ChunkAvgSize:        avg,
		ChunkMinSize:        avg / 4,
		ChunkMaxSize:        avg * 4,
		PipelineWorkers:     4,
		PipelineQueueDepth:  64,
		ErasureDataShards:   4,
		ErasureParityShards: 2,
		MetricsAddress:      "",
	}
}

func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("data_dir", c.DataDir)
	v.SetDefault("segment_cap", c.SegmentCap)
	v.SetDefault("commit_interval", c.CommitInterval)
	v.SetDefault("read_cache_size", c.ReadCacheSize)
	v.SetDefault("chunk_avg_size", c.ChunkAvgSize)
	v.SetDefault("chunk_min_size", c.ChunkMinSize)
	v.SetDefault("chunk_max_size", c.ChunkMaxSize)
	v.SetDefault("pipeline_workers", c.PipelineWorkers)
	v.SetDefault("pipeline_queue_depth", c.PipelineQueueDepth)
	v.SetDefault("erasure_data_shards", c.ErasureDataShards)
	v.SetDefault("erasure_parity_shards", c.ErasureParityShards)
	v.SetDefault("remote_address", c.RemoteAddress)
	v.SetDefault("metrics_address", c.MetricsAddress)
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{
		DataDir:             v.GetString("data_dir"),
		SegmentCap:          v.GetInt64("segment_cap"),
		CommitInterval:      v.GetInt("commit_interval"),
		ReadCacheSize:       v.GetInt("read_cache_size"),
		ChunkAvgSize:        v.GetInt("chunk_avg_size"),
		ChunkMinSize:        v.GetInt("chunk_min_size"),
		ChunkMaxSize:        v.GetInt("chunk_max_size"),
		PipelineWorkers:     v.GetInt("pipeline_workers"),
		PipelineQueueDepth:  v.GetInt("pipeline_queue_depth"),
		ErasureDataShards:   v.GetInt("erasure_data_shards"),
		ErasureParityShards: v.GetInt("erasure_parity_shards"),
		RemoteAddress:       v.GetString("remote_address"),
		MetricsAddress:      v.GetString("metrics_address"),
	}
	if c.ChunkMinSize <= 0 || c.ChunkAvgSize <= c.ChunkMinSize || c.ChunkMaxSize <= c.ChunkAvgSize {
		return nil, fmt.Errorf("config: invalid chunk sizes: min=%d avg=%d max=%d", c.ChunkMinSize, c.ChunkAvgSize, c.ChunkMaxSize)
	}
	if c.RemoteAddress != "" {
		if err := validation.ValidateAddr(c.RemoteAddress); err != nil {
			return nil, fmt.Errorf("config: remote_address: %w", err)
		}
	}
	if c.MetricsAddress != "" {
		if err := validation.ValidateAddr(c.MetricsAddress); err != nil {
			return nil, fmt.Errorf("config: metrics_address: %w", err)
		}
	}
	return c, nil
}

// Load reads configPath (YAML) over top of DefaultConfig, returning the
// merged result. A missing file is not an error: defaults apply as-is.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	bindDefaults(v, DefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	return decode(v)
}

// Watcher reloads the non-key-material fields of a Config whenever its
// backing file changes on disk, and calls onChange with the merged result.
type Watcher struct {
	v  *viper.Viper
	mu sync.Mutex
}

// Watch starts watching configPath for changes via fsnotify (through
// viper's WatchConfig, which viper itself implements with fsnotify). Watching
// lasts for the life of the process; Watcher has no method to stop it.
// onChange is called once
// per debounced file-change event with the newly decoded Config; callers are
// responsible for applying only the reloadable fields listed above to a
// running component.
func Watch(configPath string, onChange func(*Config, error)) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config: watch requires a non-empty path")
	}
	v := viper.New()
	bindDefaults(v, DefaultConfig())
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	w := &Watcher{v: v}
	v.OnConfigChange(func(e fsnotify.Event) {
		w.mu.Lock()
		defer w.mu.Unlock()
		c, err := decode(v)
		onChange(c, err)
	})
	v.WatchConfig()
	return w, nil
}

// Reloadable reports whether a dotted config key is safe to apply to a
// running component without reopening the backend.
func Reloadable(key string) bool {
	return reloadableFields[key]
}
