// Package signals holds the candidate/signal value types shared by the rule
// engine, confidence scorer and lifecycle manager.
package signals

import (
	"time"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
)

// RuleType enumerates the five deterministic detectors (§4.3).
type RuleType string

const (
	RuleNewCorridor        RuleType = "NEW_CORRIDOR"
	RuleDensitySpike       RuleType = "DENSITY_SPIKE"
	RuleDirectionImbalance RuleType = "DIRECTION_IMBALANCE"
	RuleActorRegimeChange  RuleType = "ACTOR_REGIME_CHANGE"
	RuleNewBridge          RuleType = "NEW_BRIDGE"
)

// detectorOrder fixes the tie-break precedence described in §4.3: the first
// detector to claim a signalKey in a run wins.
var detectorOrder = []RuleType{
	RuleNewCorridor,
	RuleDensitySpike,
	RuleDirectionImbalance,
	RuleActorRegimeChange,
	RuleNewBridge,
}

// DetectorOrder returns the fixed detector execution order.
func DetectorOrder() []RuleType {
	out := make([]RuleType, len(detectorOrder))
	copy(out, detectorOrder)
	return out
}

// Severity is the structural severity ladder assigned by a detector.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Scope names the structural granularity a candidate was detected at.
type Scope string

const (
	ScopeCorridor Scope = "corridor"
	ScopeActor    Scope = "actor"
	ScopeBridge   Scope = "bridge"
)

// Direction tags inflow/outflow for direction-imbalance candidates.
type Direction string

const (
	DirectionInflow  Direction = "inflow"
	DirectionOutflow Direction = "outflow"
)

// Metrics is a tagged bag of the numeric evidence a detector observed.
// Fields are explicitly optional (pointer) rather than a loose property bag —
// see DESIGN.md's re-architecture of the source's dynamic metrics object.
type Metrics struct {
	EvidenceCount     *int
	PrevEvidenceCount *int
	SpikeRatio        *float64
	Weight            *float64
	Confidence        *float64
	AvgCoverage       *float64
	NetFlowUSD        *float64
	TotalFlowUSD      *float64
	ImbalanceRatio    *float64
	TemporalSync      *float64
}

// Keys returns the set of non-nil metric field names, used by the
// ConfidenceScorer's evidence subscore (§4.4: min(100, 30+25*|metricsKeys|)).
func (m Metrics) Keys() []string {
	var keys []string
	add := func(name string, present bool) {
		if present {
			keys = append(keys, name)
		}
	}
	add("evidence_count", m.EvidenceCount != nil)
	add("prev_evidence_count", m.PrevEvidenceCount != nil)
	add("spike_ratio", m.SpikeRatio != nil)
	add("weight", m.Weight != nil)
	add("confidence", m.Confidence != nil)
	add("avg_coverage", m.AvgCoverage != nil)
	add("net_flow_usd", m.NetFlowUSD != nil)
	add("total_flow_usd", m.TotalFlowUSD != nil)
	add("imbalance_ratio", m.ImbalanceRatio != nil)
	add("temporal_sync", m.TemporalSync != nil)
	return keys
}

// Summary is the three-line explainability summary every candidate carries.
type Summary struct {
	What   string
	WhyNow string
	SoWhat string
}

// Evidence is a free-form, bounded list of human-readable evidence strings
// (e.g. sample tx hashes) attached to a candidate for the Trace.
type Evidence []string

// ClusterInput is the pre-typed cluster-membership view of an actor consumed
// by the confidence scorer's cluster-confirmation pass (§4.4 P2.B). Fields
// are optional: an actor may belong to zero or more grouping dimensions.
type ClusterInput struct {
	ActorID          string
	Type             graph.ActorType // used by the actor subscore's type-diversity penalty
	EntityID         string
	OwnerID          string
	CommunityID      string
	InfrastructureID string
	Weight           float64 // w_i from the actor-quality formula
}

// SignalCandidate is the ephemeral, per-run output of a single detector.
type SignalCandidate struct {
	Type      RuleType
	Severity  Severity
	Scope     Scope
	Window    string
	Primary   string   // primary entity id (actor or edge-derived)
	Secondary string   // optional secondary entity id
	Entities  []string // all entities referenced, for explain/trace
	Direction Direction

	PrimaryActorIDs []string
	PrimaryEdgeIDs  []string

	Metrics  Metrics
	Evidence Evidence
	Summary  Summary

	SignalKey SignalKey
}

// Lifecycle is the state machine stage of a durable Signal (§4.5).
type Lifecycle string

const (
	LifecycleNew      Lifecycle = "NEW"
	LifecycleActive   Lifecycle = "ACTIVE"
	LifecycleCooldown Lifecycle = "COOLDOWN"
	LifecycleResolved Lifecycle = "RESOLVED"
	// LifecycleHidden is a transient classification, never persisted (§4.5).
	LifecycleHidden Lifecycle = "HIDDEN"
)

// Label is the confidence-score bucket (§4.4).
type Label string

const (
	LabelHidden Label = "HIDDEN"
	LabelLow    Label = "LOW"
	LabelMedium Label = "MEDIUM"
	LabelHigh   Label = "HIGH"
)

// Penalty records one multiplicative adjustment applied to a raw confidence
// score, in the order it was applied.
type Penalty struct {
	Type       string
	Reason     string
	Multiplier float64
	Impact     float64 // absolute point impact: scoreBefore - scoreAfter
}

// Trace is the auditable record of a confidence computation: recomputing
// from it reproduces the final score and label exactly (§4.4).
type Trace struct {
	Subscores   map[string]float64 // coverage/actors/flow/temporal/evidence
	Weights     map[string]float64
	RawScore    float64 // round(sum(weight*subscore)) before penalties
	Penalties   []Penalty
	DecayFactor float64
	CappedAt    *float64
	FinalScore  float64
	Label       Label
	ComputedAt  time.Time
}

// Signal is the durable, deduplicated alert keyed by SignalKey.
type Signal struct {
	SignalKey SignalKey

	Type     RuleType
	Severity Severity
	Scope    Scope
	Window   string
	Entities []string
	Summary  Summary
	Evidence Evidence

	ConfidenceScore float64
	Label           Label
	Trace           Trace

	Lifecycle               Lifecycle
	SnapshotsWithoutTrigger int
	FirstTriggeredAt        time.Time
	LastTriggeredAt         time.Time
	ResolveReason           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Dispatchable implements the dispatch policy of §4.5: a signal is
// dispatchable iff severity is high and label is HIGH or MEDIUM; HIDDEN is
// never visible.
func (s Signal) Dispatchable() bool {
	if s.Label == LabelHidden {
		return false
	}
	return s.Severity == SeverityHigh && (s.Label == LabelHigh || s.Label == LabelMedium)
}
