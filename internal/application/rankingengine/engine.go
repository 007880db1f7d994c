// Package rankingengine implements the RankingEngine of §4.6: a composite
// score over five normalized inputs, strict ordered bucket assignment, and
// an append-only BucketTransition audit trail.
package rankingengine

import (
	"time"

	"github.com/google/uuid"

	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

// Engine computes rankings with a fixed configuration.
type Engine struct {
	cfg config.RankingConfig
}

// New constructs an Engine.
func New(cfg config.RankingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Result is the output of ranking one entity: the updated Ranking record and,
// if the bucket changed, the BucketTransition to append.
type Result struct {
	Ranking    ranking.Ranking
	Transition *ranking.BucketTransition
}

// Rank computes the composite score and bucket for one entity, given its
// normalized inputs and prior ranking state (zero value if none exists).
func (e *Engine) Rank(entity ranking.Entity, in ranking.Inputs, prev ranking.Ranking, now time.Time) Result {
	engineContrib := cappedContribution(e.cfg.WeightEngine, in.EngineConfidence, 50, e.cfg.EngineCap)
	actorContrib := cappedContribution(e.cfg.WeightActorSignal, 50+in.ActorSignalScore, 50, e.cfg.ActorSignalCap)

	stabilityPenalty := stabilityPenalty(prev.RecentBuckets)

	composite := e.cfg.WeightMarketCap*in.MarketCapScore +
		e.cfg.WeightVolume*in.VolumeScore +
		e.cfg.WeightMomentum*in.MomentumScore +
		engineContrib + actorContrib - stabilityPenalty

	bucket, guardApplied := e.assignBucket(composite, in, engineContrib)

	recent := append(append([]ranking.Bucket(nil), prev.RecentBuckets...), bucket)
	if len(recent) > 8 {
		recent = recent[len(recent)-8:]
	}

	r := ranking.Ranking{
		Entity:           entity,
		Composite:        composite,
		Confidence:       in.EngineConfidence,
		Risk:             in.Risk,
		Bucket:           bucket,
		StabilityPenalty: stabilityPenalty,
		EngineContrib:    engineContrib,
		ActorContrib:     actorContrib,
		RecentBuckets:    recent,
		UpdatedAt:        now,
	}

	var transition *ranking.BucketTransition
	if prev.Bucket != "" && prev.Bucket != bucket {
		reason := transitionReason(in, prev, composite, guardApplied)
		transition = &ranking.BucketTransition{
			TransitionID: uuid.NewString(),
			Entity:       entity,
			From:         prev.Bucket,
			To:           bucket,
			Reason:       reason,
			At:           now,
		}
	}

	return Result{Ranking: r, Transition: transition}
}

// assignBucket implements the strict, ordered bucket assignment of §4.6,
// including the SELL-guard that forbids engine confidence alone from
// lifting an entity into BUY.
func (e *Engine) assignBucket(composite float64, in ranking.Inputs, engineContrib float64) (ranking.Bucket, bool) {
	if in.ConflictLock {
		return ranking.BucketWatch, false
	}
	if composite >= e.cfg.BuyScoreMin && in.EngineConfidence >= e.cfg.BuyConfidenceMin && in.Risk <= e.cfg.BuyRiskMax {
		withoutEngine := composite - engineContrib
		if withoutEngine < e.cfg.WatchThreshold {
			return ranking.BucketWatch, true
		}
		return ranking.BucketBuy, false
	}
	if composite < e.cfg.SellScoreMax || in.Risk >= e.cfg.SellRiskMin {
		return ranking.BucketSell, false
	}
	return ranking.BucketWatch, false
}

// cappedContribution computes weight*value, then clamps its deviation from
// the neutral weight*neutralValue baseline to ±cap, returning the full
// (neutral + clamped delta) contribution actually applied.
func cappedContribution(weight, value, neutralValue, capLimit float64) float64 {
	neutral := weight * neutralValue
	delta := weight*value - neutral
	if delta > capLimit {
		delta = capLimit
	}
	if delta < -capLimit {
		delta = -capLimit
	}
	return neutral + delta
}

// stabilityPenalty grows with the number of bucket flips in recent history,
// capped at 10 points.
func stabilityPenalty(recent []ranking.Bucket) float64 {
	if len(recent) < 2 {
		return 0
	}
	flips := 0
	for i := 1; i < len(recent); i++ {
		if recent[i] != recent[i-1] {
			flips++
		}
	}
	penalty := float64(flips) * 3
	if penalty > 10 {
		penalty = 10
	}
	return penalty
}

func transitionReason(in ranking.Inputs, prev ranking.Ranking, composite float64, guardApplied bool) ranking.TransitionReason {
	switch {
	case in.ConflictLock:
		return ranking.ReasonConflictLock
	case guardApplied:
		return ranking.ReasonSellBuyGuard
	case in.Risk >= 60:
		return ranking.ReasonRiskSpike
	case abs(in.ActorSignalScore) > abs(in.EngineConfidence-50):
		if in.ActorSignalScore > 0 {
			return ranking.ReasonActorSignalPos
		}
		return ranking.ReasonActorSignalNeg
	case composite > prev.Composite:
		return ranking.ReasonScoreIncrease
	default:
		return ranking.ReasonScoreDecrease
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
