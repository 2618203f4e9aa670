// Package configs loads the operator-level YAML configuration: data directory,
// default seed, RPC URL overrides, and CLI defaults (spec §6's CLI surface).
// Workflow documents themselves are JSON, not YAML — this config is about how
// the CLI runs, not what it runs.
package configs

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OperatorConfig is the top-level operator.yml shape.
type OperatorConfig struct {
	DataDir     string  `yaml:"data_dir"`
	DefaultSeed *uint64 `yaml:"default_seed,omitempty"`
	RPCURL      string  `yaml:"rpc_url,omitempty"`
	Capital     float64 `yaml:"capital,omitempty"`
	SlippageBps float64 `yaml:"slippage_bps,omitempty"`
}

// ApplyDefaults fills in zero-valued fields with this module's defaults,
// mirroring the `#[serde(default = "...")]` pattern in the original's
// ReserveConfig/ValuerConfig (ported as internal/model's Normalize methods).
func (c *OperatorConfig) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.DefaultSeed == nil {
		seed := uint64(1)
		c.DefaultSeed = &seed
	}
	if c.Capital == 0 {
		c.Capital = 10000
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 5
	}
}

// LoadOperatorConfig reads and parses operator.yml into an OperatorConfig,
// applying defaults for any field the file leaves unset.
func LoadOperatorConfig(path string) (*OperatorConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading operator config: %w", err)
	}
	var cfg OperatorConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing operator config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// BindFlags registers this config's fields against viper's layered precedence
// (flags > env > YAML file), per SPEC_FULL's AMBIENT STACK CLI surface section.
func BindFlags(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("capital", 10000.0)
	v.SetDefault("slippage_bps", 5.0)
	v.SetEnvPrefix("DEFI_FLOW")
	v.AutomaticEnv()
}

// FromViper builds an OperatorConfig from a bound viper instance, applying
// defaults for anything neither a flag, env var, nor config file set.
func FromViper(v *viper.Viper) *OperatorConfig {
	cfg := &OperatorConfig{
		DataDir:     v.GetString("data_dir"),
		RPCURL:      v.GetString("rpc_url"),
		Capital:     v.GetFloat64("capital"),
		SlippageBps: v.GetFloat64("slippage_bps"),
	}
	cfg.ApplyDefaults()
	return cfg
}
