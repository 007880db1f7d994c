package features

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/signalgraph/internal/persistence/cache"
)

// CorridorBucket is the 1-hour bucket cadence for corridor features (§4.2).
const CorridorBucket = time.Hour

// CorridorKey identifies a (fromType,toType,direction) aggregate.
type CorridorKey struct {
	FromType  string
	ToType    string
	Direction string
}

// CorridorDailySample is one day's observed count and per-actor participation
// for a corridor, the minimal input the slope/entropy calculations need.
type CorridorDailySample struct {
	Day              time.Time
	Count            int
	ByActorCount     map[string]int // actorID -> tx count that day, for entropy/concentration
	RepeatActorCount int            // actors seen on >1 prior day
	NewActorCount    int
}

// CorridorFeatures is the per-corridor, per-bucket feature row.
type CorridorFeatures struct {
	BucketTimestamp time.Time
	Key             CorridorKey

	Persistence          float64 // fraction of days in the sample with count>0
	RepeatRate           float64
	NetFlowSlope         float64 // linear regression slope over daily counts
	ParticipationEntropy float64
	ConcentrationIndex   float64 // 1 - entropy
	TopActorShare        float64
	NewActorRate         float64
	QualityScore         float64 // clamp01(0.25*persistence + 0.25*(1-topActorShare) + 0.25*repeatRate + 0.25*entropy)
}

// CorridorFeatureBuilder computes CorridorFeatures from a rolling set of
// daily samples for a corridor.
type CorridorFeatureBuilder struct {
	cache cache.Cache // nil disables caching
	ttl   time.Duration
}

// NewCorridorFeatureBuilder constructs the builder with no bucket cache.
func NewCorridorFeatureBuilder() *CorridorFeatureBuilder { return &CorridorFeatureBuilder{} }

// WithCache attaches a bucket-window cache so repeated builds for the same
// corridor within one CorridorBucket skip recomputation (SPEC_FULL.md §5).
func (b *CorridorFeatureBuilder) WithCache(c cache.Cache, ttl time.Duration) *CorridorFeatureBuilder {
	b.cache = c
	b.ttl = ttl
	return b
}

// BuildCached is Build with a bucket-window cache in front of it: a prior
// result for the same (bucketTS, key) within ttl is returned without
// re-aggregating the daily samples.
func (b *CorridorFeatureBuilder) BuildCached(ctx context.Context, bucketTS time.Time, key CorridorKey, days []CorridorDailySample) CorridorFeatures {
	if b.cache == nil {
		return b.Build(bucketTS, key, days)
	}
	cacheKey := fmt.Sprintf("corridor:%d:%s:%s:%s", bucketTS.Unix(), key.FromType, key.ToType, key.Direction)
	if raw, ok := b.cache.Get(ctx, cacheKey); ok {
		var cached CorridorFeatures
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached
		}
	}
	result := b.Build(bucketTS, key, days)
	if raw, err := json.Marshal(result); err == nil {
		b.cache.Set(ctx, cacheKey, raw, b.ttl)
	}
	return result
}

// Build computes CorridorFeatures for one corridor from its daily samples,
// ordered oldest-first.
func (b *CorridorFeatureBuilder) Build(bucketTS time.Time, key CorridorKey, days []CorridorDailySample) CorridorFeatures {
	if len(days) == 0 {
		return CorridorFeatures{BucketTimestamp: bucketTS, Key: key}
	}

	activeDays := 0
	totalTx := 0
	totalRepeat := 0
	totalNew := 0
	actorTotals := map[string]int{}

	for _, d := range days {
		if d.Count > 0 {
			activeDays++
		}
		totalTx += d.Count
		totalRepeat += d.RepeatActorCount
		totalNew += d.NewActorCount
		for actor, c := range d.ByActorCount {
			actorTotals[actor] += c
		}
	}

	persistence := float64(activeDays) / float64(len(days))
	repeatRate := 0.0
	if totalTx > 0 {
		repeatRate = clamp01(float64(totalRepeat) / float64(totalTx))
	}
	newActorRate := 0.0
	if totalTx > 0 {
		newActorRate = clamp01(float64(totalNew) / float64(totalTx))
	}

	entropy := actorEntropy(actorTotals)
	concentration := 1 - entropy
	topShare := topActorShare(actorTotals, totalTx)

	slope := linearRegressionSlope(days)

	quality := clamp01(0.25*persistence + 0.25*(1-topShare) + 0.25*repeatRate + 0.25*entropy)

	return CorridorFeatures{
		BucketTimestamp:      bucketTS,
		Key:                  key,
		Persistence:          persistence,
		RepeatRate:           repeatRate,
		NetFlowSlope:         slope,
		ParticipationEntropy: entropy,
		ConcentrationIndex:   concentration,
		TopActorShare:        topShare,
		NewActorRate:         newActorRate,
		QualityScore:         quality,
	}
}

// actorEntropy returns the normalized-to-[0,1] Shannon entropy of actor
// participation shares.
func actorEntropy(totals map[string]int) float64 {
	sum := 0
	for _, c := range totals {
		sum += c
	}
	if sum == 0 || len(totals) <= 1 {
		return 0
	}
	h := 0.0
	for _, c := range totals {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(sum)
		h -= p * math.Log2(p)
	}
	maxH := math.Log2(float64(len(totals)))
	if maxH == 0 {
		return 0
	}
	return clamp01(h / maxH)
}

func topActorShare(totals map[string]int, sum int) float64 {
	if sum == 0 {
		return 0
	}
	max := 0
	for _, c := range totals {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(sum)
}

// linearRegressionSlope fits count ~ dayIndex by ordinary least squares and
// returns the slope (daily change in tx count).
func linearRegressionSlope(days []CorridorDailySample) float64 {
	n := float64(len(days))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, d := range days {
		x := float64(i)
		y := float64(d.Count)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
