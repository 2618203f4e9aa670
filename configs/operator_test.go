package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOperatorConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "operator.yml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/custom\n"), 0o644))

	cfg, err := LoadOperatorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", cfg.DataDir)
	assert.Equal(t, 10000.0, cfg.Capital)
	assert.Equal(t, 5.0, cfg.SlippageBps)
	require.NotNil(t, cfg.DefaultSeed)
	assert.Equal(t, uint64(1), *cfg.DefaultSeed)
}

func TestFromViperLayersOverDefaults(t *testing.T) {
	v := viper.New()
	BindFlags(v)
	v.Set("capital", 25000.0)

	cfg := FromViper(v)
	assert.Equal(t, 25000.0, cfg.Capital)
	assert.Equal(t, "./data", cfg.DataDir)
}
