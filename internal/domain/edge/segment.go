package edge

import (
	"fmt"
	"time"
)

// SegmentClass is a closed tagged variant naming the settlement rail family
// of a route segment. It replaces the dynamic dict-based edge records of the
// source system with an explicit Go enum.
type SegmentClass string

const (
	ClassFX        SegmentClass = "fx"
	ClassCrypto    SegmentClass = "crypto"
	ClassBridge    SegmentClass = "bridge"
	ClassOnRamp    SegmentClass = "on_ramp"
	ClassOffRamp   SegmentClass = "off_ramp"
	ClassBankRail  SegmentClass = "bank_rail"
)

// Valid reports whether c is one of the six recognized segment classes.
func (c SegmentClass) Valid() bool {
	switch c {
	case ClassFX, ClassCrypto, ClassBridge, ClassOnRamp, ClassOffRamp, ClassBankRail:
		return true
	default:
		return false
	}
}

// DefaultReliability returns the per-segment-class default reliability score
// used when a provider does not supply one directly (spec.md §4.1).
func (c SegmentClass) DefaultReliability() float64 {
	switch c {
	case ClassFX:
		return 0.95
	case ClassBankRail:
		return 0.98
	case ClassCrypto:
		return 0.9
	case ClassBridge:
		return 0.88
	case ClassOnRamp, ClassOffRamp:
		return 0.85
	default:
		return 0.5
	}
}

// FastClass reports whether the class refreshes on the fast cadence
// (crypto, bridge — gas oracles are folded into the crypto/bridge adapters'
// tick, there being no standalone "gas" segment class in the edge model).
func (c SegmentClass) FastClass() bool {
	return c == ClassCrypto || c == ClassBridge
}

// Cost captures the fee structure of a single segment.
type Cost struct {
	// FeePercent is a proportional fee, expressed as a percent (0-100) of
	// source notional, never basis points or a fraction.
	FeePercent float64
	// FixedFee is a fixed fee denominated in source asset units.
	FixedFee float64
	// EffectiveRate is the multiplicative conversion from 1 unit of source
	// to the target asset, applied after fees are deducted.
	EffectiveRate float64
}

// Validate enforces the invariants of spec.md §3's cost fields.
func (c Cost) Validate() error {
	if c.FeePercent < 0 || c.FeePercent > 100 {
		return fmt.Errorf("fee_percent out of range: %v", c.FeePercent)
	}
	if c.FixedFee < 0 {
		return fmt.Errorf("fixed_fee negative: %v", c.FixedFee)
	}
	if c.EffectiveRate <= 0 {
		return fmt.Errorf("effective_rate must be positive: %v", c.EffectiveRate)
	}
	return nil
}

// Latency gives inclusive settlement-time bounds, in minutes.
type Latency struct {
	MinMinutes float64
	MaxMinutes float64
}

// Validate enforces 0 <= min <= max.
func (l Latency) Validate() error {
	if l.MinMinutes < 0 {
		return fmt.Errorf("latency.min_minutes negative: %v", l.MinMinutes)
	}
	if l.MaxMinutes < l.MinMinutes {
		return fmt.Errorf("latency.max_minutes (%v) < min_minutes (%v)", l.MaxMinutes, l.MinMinutes)
	}
	return nil
}

// MeanMinutes returns the midpoint used for ETA aggregation.
func (l Latency) MeanMinutes() float64 {
	return (l.MinMinutes + l.MaxMinutes) / 2
}

// Constraints is an opaque, provider-scoped flag bag. Routing treats it as a
// black box except for the corridor jurisdiction tags consulted by the
// regulatory filter in §4.3.1; the notional-bound keys below are defined but
// routing does not read them.
type Constraints map[string]string

// Get returns a constraint value and whether it was present.
func (c Constraints) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c[key]
	return v, ok
}

const (
	ConstraintFromJurisdiction = "from_jurisdiction"
	ConstraintToJurisdiction   = "to_jurisdiction"
	ConstraintMinNotional      = "min_notional"
	ConstraintMaxNotional      = "max_notional"
)

// RouteSegment (Edge) is the atomic unit of routing: one rail, one provider,
// one pair of assets.
type RouteSegment struct {
	SegmentClass SegmentClass
	FromAsset    Asset
	FromNetwork  Network
	ToAsset      Asset
	ToNetwork    Network
	Provider     string
	Cost         Cost
	Latency      Latency
	Reliability  float64
	Constraints  Constraints
	ObservedAt   time.Time
}

// FromNode returns the source graph vertex.
func (e RouteSegment) FromNode() Node { return NewNode(e.FromAsset, e.FromNetwork) }

// ToNode returns the target graph vertex.
func (e RouteSegment) ToNode() Node { return NewNode(e.ToAsset, e.ToNetwork) }

// Key identifies the (provider, from, to) triple the snapshot store and hot
// cache use for "at most one current edge" upserts.
type Key struct {
	Provider string
	From     Node
	To       Node
}

// Key returns the edge's identity key.
func (e RouteSegment) Key() Key {
	return Key{Provider: e.Provider, From: e.FromNode(), To: e.ToNode()}
}

// Validate enforces the per-edge invariants of spec.md §3 and the
// normalization boundary check of §8 ("edge with effective_rate <= 0 or
// fee_percent > 100 is rejected at normalization").
func (e RouteSegment) Validate() error {
	if !e.SegmentClass.Valid() {
		return fmt.Errorf("invalid segment_class: %q", e.SegmentClass)
	}
	if e.FromAsset == "" || e.ToAsset == "" {
		return fmt.Errorf("from_asset and to_asset are required")
	}
	if e.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if err := e.Cost.Validate(); err != nil {
		return err
	}
	if err := e.Latency.Validate(); err != nil {
		return err
	}
	if e.Reliability < 0 || e.Reliability > 1 {
		return fmt.Errorf("reliability_score out of range: %v", e.Reliability)
	}
	return nil
}
