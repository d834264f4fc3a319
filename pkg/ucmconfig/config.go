// Package ucmconfig loads the engine's resource bounds and logging level
// from environment variables, with an optional YAML file overlay.
//
// Configuration is loaded from environment variables using LoadFromEnv()
// and can be validated with Validate() before use, the same two-function
// shape as the wider NornicDB configuration package, scoped down to what
// the core engine actually needs: there is no server, auth, or compliance
// surface here (see DESIGN.md).
//
// Example Usage:
//
//	cfg := ucmconfig.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	engine := ucm.NewEngine(cfg.Bounds(), cfg.MaxSnapshots)
package ucmconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/ucm/pkg/ucm"
)

// Config holds the engine's configurable resource bounds and logging
// level.
type Config struct {
	// MaxBlocks caps the total number of blocks a document may hold.
	MaxBlocks int `yaml:"max_blocks"`
	// MaxDepth caps containment tree depth.
	MaxDepth int `yaml:"max_depth"`
	// MaxEdgesPerBlock caps outgoing edges per block.
	MaxEdgesPerBlock int `yaml:"max_edges_per_block"`
	// MaxSnapshots bounds how many named snapshots are retained before
	// the oldest is evicted.
	MaxSnapshots int `yaml:"max_snapshots"`
	// AllowOrphans disables the Orphans validation stage's warning when
	// true.
	AllowOrphans bool `yaml:"allow_orphans"`
	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `yaml:"log_level"`
}

// Bounds converts Config into the ucm.Bounds the ValidationPipeline and
// Engine expect.
func (c *Config) Bounds() ucm.Bounds {
	return ucm.Bounds{
		MaxBlocks:        c.MaxBlocks,
		MaxDepth:         c.MaxDepth,
		MaxEdgesPerBlock: c.MaxEdgesPerBlock,
		AllowOrphans:     c.AllowOrphans,
	}
}

// LoadFromEnv loads configuration from environment variables, falling
// back to conservative defaults when a variable is unset.
//
// Environment Variables:
//
//	UCM_MAX_BLOCKS             (default 100000)
//	UCM_MAX_DEPTH               (default 256)
//	UCM_MAX_EDGES_PER_BLOCK     (default 1000)
//	UCM_MAX_SNAPSHOTS           (default 20)
//	UCM_ALLOW_ORPHANS           (default false)
//	UCM_LOG_LEVEL                (default INFO)
func LoadFromEnv() *Config {
	return &Config{
		MaxBlocks:        getEnvInt("UCM_MAX_BLOCKS", ucm.DefaultBounds.MaxBlocks),
		MaxDepth:         getEnvInt("UCM_MAX_DEPTH", ucm.DefaultBounds.MaxDepth),
		MaxEdgesPerBlock: getEnvInt("UCM_MAX_EDGES_PER_BLOCK", ucm.DefaultBounds.MaxEdgesPerBlock),
		MaxSnapshots:     getEnvInt("UCM_MAX_SNAPSHOTS", 20),
		AllowOrphans:     getEnvBool("UCM_ALLOW_ORPHANS", ucm.DefaultBounds.AllowOrphans),
		LogLevel:         getEnv("UCM_LOG_LEVEL", "INFO"),
	}
}

// LoadFromFile reads a YAML config file and overlays it on top of
// LoadFromEnv()'s result: any non-zero field the file sets overrides the
// environment-derived value, so the file takes precedence over
// environment variables, which take precedence over the built-in
// defaults. allow_orphans in the file can only switch orphans on.
func LoadFromFile(path string) (*Config, error) {
	cfg := LoadFromEnv()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if fileCfg.MaxBlocks != 0 {
		cfg.MaxBlocks = fileCfg.MaxBlocks
	}
	if fileCfg.MaxDepth != 0 {
		cfg.MaxDepth = fileCfg.MaxDepth
	}
	if fileCfg.MaxEdgesPerBlock != 0 {
		cfg.MaxEdgesPerBlock = fileCfg.MaxEdgesPerBlock
	}
	if fileCfg.MaxSnapshots != 0 {
		cfg.MaxSnapshots = fileCfg.MaxSnapshots
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	cfg.AllowOrphans = cfg.AllowOrphans || fileCfg.AllowOrphans
	return cfg, nil
}

// Validate checks that max_blocks, max_depth and max_edges_per_block are
// positive, that max_snapshots is not negative, and that LogLevel names a
// known level.
func (c *Config) Validate() error {
	if c.MaxBlocks <= 0 {
		return fmt.Errorf("max_blocks must be positive, got %d", c.MaxBlocks)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxEdgesPerBlock <= 0 {
		return fmt.Errorf("max_edges_per_block must be positive, got %d", c.MaxEdgesPerBlock)
	}
	if c.MaxSnapshots < 0 {
		return fmt.Errorf("max_snapshots must not be negative, got %d", c.MaxSnapshots)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// String returns a compact, loggable representation of Config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{MaxBlocks: %d, MaxDepth: %d, MaxEdgesPerBlock: %d, MaxSnapshots: %d, AllowOrphans: %v, LogLevel: %s}",
		c.MaxBlocks, c.MaxDepth, c.MaxEdgesPerBlock, c.MaxSnapshots, c.AllowOrphans, c.LogLevel,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
