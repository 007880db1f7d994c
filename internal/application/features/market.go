package features

import (
	"math"
	"time"
)

// MarketBucket is the 5-minute bucket cadence for market features (§4.2).
const MarketBucket = 5 * time.Minute

const decayHalfLifeDays = 3.0

// SpikeLevel classifies a pressure-divergence spike.
type SpikeLevel string

const (
	SpikeNone   SpikeLevel = "none"
	SpikeMedium SpikeLevel = "medium"
	SpikeHigh   SpikeLevel = "high"
)

// MarketFlows is the raw CEX inflow/outflow observed over three trailing
// windows anchored at the same bucket timestamp.
type MarketFlows struct {
	Network         string
	BucketTimestamp time.Time
	Symbol          string

	In5m, Out5m   float64
	In1h, Out1h   float64
	In1d, Out1d   float64

	DaysSinceLastZoneEntry float64 // for exponential decay of zone persistence
	ZoneActiveBuckets      int     // consecutive buckets the current pressure zone has held
}

// MarketFeatures is the per-symbol, per-bucket feature row.
type MarketFeatures struct {
	Network         string
	BucketTimestamp time.Time
	Symbol          string

	Pressure5m, Pressure1h, Pressure1d float64
	Spike                              SpikeLevel
	ZonePersistence                    float64 // [0,1], decayed
	DecayFactor                        float64
}

// MarketFeatureBuilder computes MarketFeatures for CEX pressure and spikes.
type MarketFeatureBuilder struct {
	spikeMedium float64
	spikeHigh   float64
}

// NewMarketFeatureBuilder constructs the builder with the spike thresholds
// fixed by §4.2 (0.15 medium, 0.30 high).
func NewMarketFeatureBuilder() *MarketFeatureBuilder {
	return &MarketFeatureBuilder{spikeMedium: 0.15, spikeHigh: 0.30}
}

// Build computes MarketFeatures for a single symbol/bucket.
func (b *MarketFeatureBuilder) Build(flows MarketFlows) MarketFeatures {
	p5 := pressure(flows.In5m, flows.Out5m)
	p1h := pressure(flows.In1h, flows.Out1h)
	p1d := pressure(flows.In1d, flows.Out1d)

	divergence := math.Abs(p5 - p1h)
	spike := SpikeNone
	switch {
	case divergence >= b.spikeHigh:
		spike = SpikeHigh
	case divergence >= b.spikeMedium:
		spike = SpikeMedium
	}

	decay := ExponentialDecay(flows.DaysSinceLastZoneEntry, decayHalfLifeDays)
	persistence := clamp01(float64(flows.ZoneActiveBuckets)/float64(12*24)) * decay // normalized against a full day of 5m buckets

	return MarketFeatures{
		Network:         flows.Network,
		BucketTimestamp: flows.BucketTimestamp,
		Symbol:          flows.Symbol,
		Pressure5m:      p5,
		Pressure1h:      p1h,
		Pressure1d:      p1d,
		Spike:           spike,
		ZonePersistence: persistence,
		DecayFactor:     decay,
	}
}

// pressure computes (in-out)/(in+out), 0 when there is no flow.
func pressure(in, out float64) float64 {
	total := in + out
	if total == 0 {
		return 0
	}
	return (in - out) / total
}

// ExponentialDecay implements exp(-ln2*Δt/halfLife), the single decay
// function the spec requires (§9 Open Question), shared by market zone
// persistence and the confidence scorer's temporal decay.
func ExponentialDecay(elapsed, halfLife float64) float64 {
	if halfLife <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * elapsed / halfLife)
}
