package model

// ValuerConfig governs the valuer pusher's NAV attestation throttle (spec §4.10).
// Defaults mirror original_source/src/model/valuer.rs exactly.
type ValuerConfig struct {
	Contract          string  `json:"contract"`
	StrategyID        string  `json:"strategy_id"`
	Chain             Chain   `json:"chain"`
	Confidence        *uint8  `json:"confidence,omitempty"`
	UnderlyingDecimals *uint8 `json:"underlying_decimals,omitempty"`
	PushIntervalSec   *int64  `json:"push_interval,omitempty"`
	TTLSec            *int64  `json:"ttl,omitempty"`
}

const (
	defaultConfidence         uint8 = 90
	defaultUnderlyingDecimals uint8 = 6
	defaultPushIntervalSec    int64 = 3600
	defaultTTLSec             int64 = 7200
)

// Normalize fills in defaults for any field left unset.
func (c *ValuerConfig) Normalize() {
	if c.Confidence == nil {
		v := defaultConfidence
		c.Confidence = &v
	}
	if c.UnderlyingDecimals == nil {
		v := defaultUnderlyingDecimals
		c.UnderlyingDecimals = &v
	}
	if c.PushIntervalSec == nil {
		v := defaultPushIntervalSec
		c.PushIntervalSec = &v
	}
	if c.TTLSec == nil {
		v := defaultTTLSec
		c.TTLSec = &v
	}
}

func (c *ValuerConfig) EffectiveConfidence() uint8 {
	if c.Confidence == nil {
		return defaultConfidence
	}
	return *c.Confidence
}

func (c *ValuerConfig) EffectiveUnderlyingDecimals() uint8 {
	if c.UnderlyingDecimals == nil {
		return defaultUnderlyingDecimals
	}
	return *c.UnderlyingDecimals
}

func (c *ValuerConfig) EffectivePushIntervalSec() int64 {
	if c.PushIntervalSec == nil {
		return defaultPushIntervalSec
	}
	return *c.PushIntervalSec
}

func (c *ValuerConfig) EffectiveTTLSec() int64 {
	if c.TTLSec == nil {
		return defaultTTLSec
	}
	return *c.TTLSec
}

// ValuerState is read-modify-persisted on each candidate NAV push.
type ValuerState struct {
	LastPushUnix int64 `json:"last_push_unix"`
}
