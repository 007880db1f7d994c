// Package ranking holds the Ranking and BucketTransition value types and the
// bucket vocabulary shared by the RankingEngine and OutcomeTracker (§4.6, §4.7).
package ranking

import "time"

// Bucket is the trade-recommendation bucket assigned by the RankingEngine.
type Bucket string

const (
	BucketBuy   Bucket = "BUY"
	BucketWatch Bucket = "WATCH"
	BucketSell  Bucket = "SELL"
)

// TransitionReason is drawn from a closed set (§4.6).
type TransitionReason string

const (
	ReasonScoreIncrease    TransitionReason = "score_increase"
	ReasonScoreDecrease    TransitionReason = "score_decrease"
	ReasonConflictLock     TransitionReason = "conflict_lock"
	ReasonRiskSpike        TransitionReason = "risk_spike"
	ReasonActorSignalPos   TransitionReason = "actor_signal_positive"
	ReasonActorSignalNeg   TransitionReason = "actor_signal_negative"
	ReasonStabilityPenalty TransitionReason = "stability_penalty"
	ReasonSellBuyGuard     TransitionReason = "sell_buy_guard_downgrade"
)

// Entity identifies a ranked entity by address and chain.
type Entity struct {
	Address string
	ChainID string
}

// Inputs are the normalized-to-[0,100] signals the composite formula
// consumes (§4.6).
type Inputs struct {
	MarketCapScore   float64
	VolumeScore      float64
	MomentumScore    float64
	EngineConfidence float64 // [0,100]
	ActorSignalScore float64 // [-50,50], shifted by +50 in the composite formula
	Risk             float64 // [0,100]
	ConflictLock     bool    // set by actor signals indicating contradictory directions
}

// Ranking is the mutable, per-entity composite ranking record.
type Ranking struct {
	Entity Entity

	Composite  float64
	Confidence float64
	Risk       float64
	Bucket     Bucket

	StabilityPenalty float64
	EngineContrib    float64 // capped engine-confidence contribution actually applied
	ActorContrib     float64 // capped actor-signal contribution actually applied

	RecentBuckets []Bucket // short rolling history, most-recent last; used for stability penalty

	UpdatedAt time.Time
}

// BucketTransition is an append-only record of a bucket change.
type BucketTransition struct {
	TransitionID string
	Entity       Entity
	From         Bucket
	To           Bucket
	Reason       TransitionReason
	PrevID       string // previous transition id for this entity, "" if first
	At           time.Time
}

// Horizon is an outcome-resolution window (§4.7).
type Horizon string

const (
	Horizon1d  Horizon = "1d"
	Horizon7d  Horizon = "7d"
	Horizon30d Horizon = "30d"
)

// Verdict is the realized-outcome classification for a horizon.
type Verdict string

const (
	VerdictConfirmed    Verdict = "confirmed"
	VerdictRejected     Verdict = "rejected"
	VerdictInconclusive Verdict = "inconclusive"
)

// TrendLabel is assigned per horizon from outcome observations.
type TrendLabel string

const (
	TrendUp   TrendLabel = "up"
	TrendDown TrendLabel = "down"
	TrendFlat TrendLabel = "flat"
)

// OutcomeObservation anchors a realized outcome to a ranking decision.
type OutcomeObservation struct {
	SnapshotID string
	Entity     Entity
	Horizon    Horizon
	DecidedAt  time.Time
	ResolvedAt time.Time
	Verdict    Verdict
	ReturnPct  float64
}

// TrendValidation assigns a TrendLabel per horizon from outcome observations.
type TrendValidation struct {
	SnapshotID string
	Entity     Entity
	Horizon    Horizon
	Label      TrendLabel
}

// AttributionOutcomeLink joins a ranking decision to its outcome per horizon.
type AttributionOutcomeLink struct {
	SnapshotID     string
	Entity         Entity
	Horizon        Horizon
	DecisionBucket Bucket
	Outcome        OutcomeObservation
}

// DriftLevel classifies how far current feature distributions have drifted
// from the training baseline (consumed by DatasetBuilder's soft gate).
type DriftLevel string

const (
	DriftNone     DriftLevel = "NONE"
	DriftWarning  DriftLevel = "WARNING"
	DriftCritical DriftLevel = "CRITICAL"
)

// LearningSample is the upserted training-row artifact produced by the
// DatasetBuilder (§4.7).
type LearningSample struct {
	SampleID string // snapshotId:horizon

	SnapshotID string
	Horizon    Horizon
	Entity     Entity

	Features map[string]float64
	Labels   map[string]float64

	TrainEligible  bool
	QualityReasons []string
	Drift          DriftLevel

	CreatedAt time.Time
	UpdatedAt time.Time
}
