// Package features implements the three independent FeatureBuilders of §4.2:
// actor, market and corridor. Each is a pure function of its input window and
// idempotent per (network, bucketTimestamp); builders may run in parallel.
package features

import (
	"math"
	"time"
)

// ActorBucket is the 15-minute bucket cadence for actor features (§4.2).
const ActorBucket = 15 * time.Minute

// ActorFeatures is the per-actor, per-bucket feature row.
type ActorFeatures struct {
	Network         string
	BucketTimestamp time.Time
	ActorID         string

	FlowUSD              float64
	UniqueCounterparties int
	FanIn                int
	FanOut               int
	OutgoingEntropy      float64 // Shannon entropy of outgoing distribution
	InfluenceScore       float64 // clamp01(0.55*normVol + 0.35*normCounterparties + roleBoost)
	WhaleScore           float64
	NoiseScore           float64
}

// ActorFlow is the raw per-counterparty outgoing flow observed for an actor
// within the bucket, the minimal input the entropy calculation needs.
type ActorFlow struct {
	ActorID                string
	OutgoingByCounterparty map[string]float64
	IncomingByCounterparty map[string]float64
	TotalVolumeUSD         float64
	IsExchangeOrMM         bool
	History                float64 // [0,1]
}

// ActorFeatureBuilder computes ActorFeatures for every actor observed in a
// bucket's flows, idempotent per (network, bucketTimestamp).
type ActorFeatureBuilder struct{}

// NewActorFeatureBuilder constructs the builder.
func NewActorFeatureBuilder() *ActorFeatureBuilder { return &ActorFeatureBuilder{} }

// Build computes one ActorFeatures row per actor in flows.
func (b *ActorFeatureBuilder) Build(network string, bucketTS time.Time, flows []ActorFlow) []ActorFeatures {
	maxVol := 0.0
	maxCounterparties := 0
	for _, f := range flows {
		if f.TotalVolumeUSD > maxVol {
			maxVol = f.TotalVolumeUSD
		}
		n := len(union(f.OutgoingByCounterparty, f.IncomingByCounterparty))
		if n > maxCounterparties {
			maxCounterparties = n
		}
	}

	out := make([]ActorFeatures, 0, len(flows))
	for _, f := range flows {
		counterparties := union(f.OutgoingByCounterparty, f.IncomingByCounterparty)
		entropy := shannonEntropy(f.OutgoingByCounterparty)

		normVol := safeRatio(f.TotalVolumeUSD, maxVol)
		normCounterparties := safeRatio(float64(len(counterparties)), float64(maxCounterparties))
		roleBoost := 0.0
		if f.IsExchangeOrMM {
			roleBoost = 0.1
		}
		influence := clamp01(0.55*normVol + 0.35*normCounterparties + roleBoost)

		whale := clamp01(normVol * (0.5 + 0.5*f.History))
		noise := clamp01(1 - influence)

		out = append(out, ActorFeatures{
			Network:              network,
			BucketTimestamp:      bucketTS,
			ActorID:              f.ActorID,
			FlowUSD:              f.TotalVolumeUSD,
			UniqueCounterparties: len(counterparties),
			FanIn:                len(f.IncomingByCounterparty),
			FanOut:               len(f.OutgoingByCounterparty),
			OutgoingEntropy:      entropy,
			InfluenceScore:       influence,
			WhaleScore:           whale,
			NoiseScore:           noise,
		})
	}
	return out
}

func union(a, b map[string]float64) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// shannonEntropy computes the Shannon entropy (base 2) of a distribution of
// non-negative weights, normalized to [0,1] by the maximum possible entropy
// for the observed cardinality.
func shannonEntropy(dist map[string]float64) float64 {
	total := 0.0
	for _, v := range dist {
		total += v
	}
	if total <= 0 || len(dist) <= 1 {
		return 0
	}
	h := 0.0
	for _, v := range dist {
		if v <= 0 {
			continue
		}
		p := v / total
		h -= p * math.Log2(p)
	}
	maxH := math.Log2(float64(len(dist)))
	if maxH == 0 {
		return 0
	}
	return clamp01(h / maxH)
}

func safeRatio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
