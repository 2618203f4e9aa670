package model

// ReserveConfig governs the reserve controller's vault-backing watch loop (spec §4.9).
// Fields mirror original_source/src/model/reserve.rs's serde defaults exactly. The
// three tunables are pointers so that "field absent from JSON" (apply default) can
// be told apart from "field present and explicitly zero" — Go's encoding/json has
// no declarative default-value tag, so Normalize() is the explicit equivalent of the
// original's #[serde(default = "...")] functions and must run once after unmarshal.
type ReserveConfig struct {
	VaultAddress     string   `json:"vault_address"`
	VaultChain       Chain    `json:"vault_chain"`
	VaultToken       string   `json:"vault_token"`
	TargetRatio      *float64 `json:"target_ratio,omitempty"`
	TriggerThreshold *float64 `json:"trigger_threshold,omitempty"`
	MinUnwindUSD     *float64 `json:"min_unwind,omitempty"`
}

const (
	defaultTargetRatio      = 0.20
	defaultTriggerThreshold = 0.05
	defaultMinUnwindUSD     = 100.0
)

// Normalize fills in defaults for any field left unset, matching the original's
// #[serde(default = "...")] functions. Safe to call more than once.
func (c *ReserveConfig) Normalize() {
	if c.TargetRatio == nil {
		v := defaultTargetRatio
		c.TargetRatio = &v
	}
	if c.TriggerThreshold == nil {
		v := defaultTriggerThreshold
		c.TriggerThreshold = &v
	}
	if c.MinUnwindUSD == nil {
		v := defaultMinUnwindUSD
		c.MinUnwindUSD = &v
	}
}

// EffectiveTargetRatio, EffectiveTriggerThreshold, EffectiveMinUnwindUSD read the
// normalized value, falling back to the documented default if Normalize was never
// called (defensive; callers are expected to normalize on load).
func (c *ReserveConfig) EffectiveTargetRatio() float64 {
	if c.TargetRatio == nil {
		return defaultTargetRatio
	}
	return *c.TargetRatio
}

func (c *ReserveConfig) EffectiveTriggerThreshold() float64 {
	if c.TriggerThreshold == nil {
		return defaultTriggerThreshold
	}
	return *c.TriggerThreshold
}

func (c *ReserveConfig) EffectiveMinUnwindUSD() float64 {
	if c.MinUnwindUSD == nil {
		return defaultMinUnwindUSD
	}
	return *c.MinUnwindUSD
}
