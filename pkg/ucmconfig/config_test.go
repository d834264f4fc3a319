package ucmconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()
	assert.Equal(t, 100_000, cfg.MaxBlocks)
	assert.Equal(t, 256, cfg.MaxDepth)
	assert.Equal(t, 1_000, cfg.MaxEdgesPerBlock)
	assert.Equal(t, 20, cfg.MaxSnapshots)
	assert.False(t, cfg.AllowOrphans)
	assert.Equal(t, "INFO", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("UCM_MAX_BLOCKS", "500")
	t.Setenv("UCM_ALLOW_ORPHANS", "true")
	t.Setenv("UCM_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	assert.Equal(t, 500, cfg.MaxBlocks)
	assert.True(t, cfg.AllowOrphans)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadFromFile_OverlaysEnvDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ucm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_blocks: 42\nlog_level: WARN\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.MaxBlocks)
	assert.Equal(t, "WARN", cfg.LogLevel)
	// Fields the file leaves unset keep LoadFromEnv's defaults.
	assert.Equal(t, 256, cfg.MaxDepth)
}

func TestLoadFromFile_MissingFileErrors(t *testing.T) {
	_, err := LoadFromFile("/no/such/file.yaml")
	assert.Error(t, err)
}

func TestValidate_RejectsNonPositiveBounds(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.MaxBlocks = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.LogLevel = "VERBOSE"
	assert.Error(t, cfg.Validate())
}

func TestValidate_AllowsZeroMaxSnapshots(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.MaxSnapshots = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Bounds(t *testing.T) {
	cfg := LoadFromEnv()
	bounds := cfg.Bounds()
	assert.Equal(t, cfg.MaxBlocks, bounds.MaxBlocks)
	assert.Equal(t, cfg.MaxDepth, bounds.MaxDepth)
	assert.Equal(t, cfg.MaxEdgesPerBlock, bounds.MaxEdgesPerBlock)
	assert.Equal(t, cfg.AllowOrphans, bounds.AllowOrphans)
}

func TestConfig_String_ContainsFields(t *testing.T) {
	cfg := LoadFromEnv()
	s := cfg.String()
	assert.Contains(t, s, "MaxBlocks")
	assert.Contains(t, s, "LogLevel")
}
