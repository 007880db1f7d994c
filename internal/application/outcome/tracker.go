// Package outcome implements the OutcomeTracker, TrendValidation and
// AttributionOutcomeLink builders of §4.7: resolving a Ranking decision's
// realized outcome once its horizon elapses.
package outcome

import (
	"context"
	"time"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

// PriceLookup resolves an entity's price at a point in time, the minimal
// input the tracker needs to compute a realized return.
type PriceLookup interface {
	PriceAt(ctx context.Context, entity ranking.Entity, at time.Time) (float64, error)
}

// Tracker resolves outcomes once decidedAt+horizon has elapsed.
type Tracker struct {
	prices         PriceLookup
	trendBandPct   float64 // |returnPct| below this is "flat"
	verdictBandPct float64 // |returnPct| below this is "inconclusive" regardless of bucket
}

// New constructs a Tracker with the default 2% trend band and 1% verdict band.
func New(prices PriceLookup) *Tracker {
	return &Tracker{prices: prices, trendBandPct: 2.0, verdictBandPct: 1.0}
}

func horizonDuration(h ranking.Horizon) time.Duration {
	switch h {
	case ranking.Horizon1d:
		return 24 * time.Hour
	case ranking.Horizon7d:
		return 7 * 24 * time.Hour
	case ranking.Horizon30d:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Resolve returns the outcome observation for one (ranking, horizon) pair if
// its horizon has elapsed by now; it returns (nil, nil) when not yet due.
func (t *Tracker) Resolve(ctx context.Context, snapshotID string, entity ranking.Entity, bucket ranking.Bucket, decidedAt time.Time, horizon ranking.Horizon, now time.Time) (*ranking.OutcomeObservation, error) {
	due := decidedAt.Add(horizonDuration(horizon))
	if now.Before(due) {
		return nil, nil
	}

	priceAtDecision, err := t.prices.PriceAt(ctx, entity, decidedAt)
	if err != nil {
		return nil, err
	}
	priceAtResolve, err := t.prices.PriceAt(ctx, entity, due)
	if err != nil {
		return nil, err
	}

	returnPct := 0.0
	if priceAtDecision != 0 {
		returnPct = (priceAtResolve - priceAtDecision) / priceAtDecision * 100
	}

	return &ranking.OutcomeObservation{
		SnapshotID: snapshotID,
		Entity:     entity,
		Horizon:    horizon,
		DecidedAt:  decidedAt,
		ResolvedAt: due,
		Verdict:    t.verdict(bucket, returnPct),
		ReturnPct:  returnPct,
	}, nil
}

// verdict classifies whether the realized move confirms, rejects, or is
// inconclusive relative to the ranking decision's bucket direction.
func (t *Tracker) verdict(bucket ranking.Bucket, returnPct float64) ranking.Verdict {
	if absF(returnPct) < t.verdictBandPct || bucket == ranking.BucketWatch {
		return ranking.VerdictInconclusive
	}
	switch bucket {
	case ranking.BucketBuy:
		if returnPct > 0 {
			return ranking.VerdictConfirmed
		}
		return ranking.VerdictRejected
	case ranking.BucketSell:
		if returnPct < 0 {
			return ranking.VerdictConfirmed
		}
		return ranking.VerdictRejected
	default:
		return ranking.VerdictInconclusive
	}
}

// Trend assigns a TrendLabel from a realized return, independent of the
// ranking decision's bucket.
func (t *Tracker) Trend(snapshotID string, entity ranking.Entity, horizon ranking.Horizon, returnPct float64) ranking.TrendValidation {
	label := ranking.TrendFlat
	switch {
	case returnPct >= t.trendBandPct:
		label = ranking.TrendUp
	case returnPct <= -t.trendBandPct:
		label = ranking.TrendDown
	}
	return ranking.TrendValidation{SnapshotID: snapshotID, Entity: entity, Horizon: horizon, Label: label}
}

// Link joins a ranking decision to its resolved outcome.
func Link(snapshotID string, entity ranking.Entity, horizon ranking.Horizon, decisionBucket ranking.Bucket, outcome ranking.OutcomeObservation) ranking.AttributionOutcomeLink {
	return ranking.AttributionOutcomeLink{
		SnapshotID:     snapshotID,
		Entity:         entity,
		Horizon:        horizon,
		DecisionBucket: decisionBucket,
		Outcome:        outcome,
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
