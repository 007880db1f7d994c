// Package rules implements the RuleEngine of §4.3: five deterministic
// detectors that diff a current snapshot against its predecessor and emit
// SignalCandidates.
package rules

import (
	"github.com/sawpanic/signalgraph/internal/config"
	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

// Context is the input to one engine run.
type Context struct {
	Current    *graph.Snapshot
	Previous   *graph.Snapshot // nil if no prior snapshot exists
	Thresholds config.RuleThresholds
	Window     string
}

// detector is one of the five rule functions; each is pure and stateless.
type detector func(ctx Context) []signals.SignalCandidate

// Engine runs the fixed detector set in detector order and applies the
// per-run cap.
type Engine struct {
	detectors []detector
}

// New constructs the engine with all five detectors wired in the order
// fixed by signals.DetectorOrder (used for tie-breaking duplicate keys).
func New() *Engine {
	return &Engine{detectors: []detector{
		detectNewCorridor,
		detectDensitySpike,
		detectDirectionImbalance,
		detectActorRegimeChange,
		detectNewBridge,
	}}
}

// Detect runs every detector in order, discards duplicate signalKeys in
// favor of the first emitter, and truncates to MaxSignalsPerRun.
func (e *Engine) Detect(ctx Context) []signals.SignalCandidate {
	seen := make(map[signals.SignalKey]struct{})
	var out []signals.SignalCandidate

	for _, d := range e.detectors {
		for _, cand := range d(ctx) {
			if _, dup := seen[cand.SignalKey]; dup {
				continue
			}
			seen[cand.SignalKey] = struct{}{}
			out = append(out, cand)
		}
	}

	maxPerRun := ctx.Thresholds.MaxSignalsPerRun
	if maxPerRun > 0 && len(out) > maxPerRun {
		out = out[:maxPerRun]
	}
	return out
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// detectNewCorridor implements §4.3.1.
func detectNewCorridor(ctx Context) []signals.SignalCandidate {
	if ctx.Current == nil {
		return nil
	}
	th := ctx.Thresholds
	var out []signals.SignalCandidate

	for _, edge := range ctx.Current.EdgesSorted() {
		if ctx.Previous != nil {
			if _, existed := ctx.Previous.Edges[edge.ID]; existed {
				continue
			}
		}
		if edge.EvidenceCount < th.MinDensity {
			continue
		}
		if edge.Weight < th.MinWeight {
			continue
		}
		if edge.Confidence < th.MinConfidence {
			continue
		}
		if edge.AvgCoverage < th.CoverageRequired {
			continue
		}

		severity := signals.SeverityMedium
		if edge.EvidenceCount >= th.HighDensity && edge.Confidence >= th.HighConfidence {
			severity = signals.SeverityHigh
		}

		actorIDs := []string{edge.ID.A, edge.ID.B}
		edgeIDs := []string{edgeIDString(edge.ID)}
		key := signals.NewSignalKey(signals.RuleNewCorridor, ctx.Window, signals.ScopeCorridor, actorIDs, edgeIDs)

		out = append(out, signals.SignalCandidate{
			Type:            signals.RuleNewCorridor,
			Severity:        severity,
			Scope:           signals.ScopeCorridor,
			Window:          ctx.Window,
			Primary:         edge.ID.A,
			Secondary:       edge.ID.B,
			Entities:        actorIDs,
			PrimaryActorIDs: actorIDs,
			PrimaryEdgeIDs:  []string{edgeIDString(edge.ID)},
			Metrics: signals.Metrics{
				EvidenceCount: intPtr(edge.EvidenceCount),
				Weight:        floatPtr(edge.Weight),
				Confidence:    floatPtr(edge.Confidence),
				AvgCoverage:   floatPtr(edge.AvgCoverage),
			},
			Evidence: signals.Evidence{
				"new corridor between " + edge.ID.A + " and " + edge.ID.B,
			},
			Summary: signals.Summary{
				What:   "a new transfer corridor has appeared between two actors",
				WhyNow: "no prior-window edge existed for this pair",
				SoWhat: "indicates a newly formed or newly observed flow relationship",
			},
			SignalKey: key,
		})
	}
	return out
}

// detectDensitySpike implements §4.3.2.
func detectDensitySpike(ctx Context) []signals.SignalCandidate {
	if ctx.Current == nil || ctx.Previous == nil {
		return nil
	}
	th := ctx.Thresholds
	var out []signals.SignalCandidate

	for _, edge := range ctx.Current.EdgesSorted() {
		prevEdge, existed := ctx.Previous.Edges[edge.ID]
		if !existed {
			continue
		}
		if prevEdge.EvidenceCount < th.MinPrevForSpike {
			continue
		}
		if edge.AvgCoverage < th.CoverageRequired {
			continue
		}

		denom := prevEdge.EvidenceCount
		if denom < 1 {
			denom = 1
		}
		ratio := float64(edge.EvidenceCount-prevEdge.EvidenceCount) / float64(denom)
		if ratio < th.MinSpikeRatio {
			continue
		}

		severity := signals.SeverityMedium
		if ratio >= th.HighSpikeRatio && edge.EvidenceCount >= th.HighDensityCurrent {
			severity = signals.SeverityHigh
		}

		actorIDs := []string{edge.ID.A, edge.ID.B}
		edgeIDs := []string{edgeIDString(edge.ID)}
		key := signals.NewSignalKey(signals.RuleDensitySpike, ctx.Window, signals.ScopeCorridor, actorIDs, edgeIDs)

		out = append(out, signals.SignalCandidate{
			Type:            signals.RuleDensitySpike,
			Severity:        severity,
			Scope:           signals.ScopeCorridor,
			Window:          ctx.Window,
			Primary:         edge.ID.A,
			Secondary:       edge.ID.B,
			Entities:        actorIDs,
			PrimaryActorIDs: actorIDs,
			PrimaryEdgeIDs:  []string{edgeIDString(edge.ID)},
			Metrics: signals.Metrics{
				EvidenceCount:     intPtr(edge.EvidenceCount),
				PrevEvidenceCount: intPtr(prevEdge.EvidenceCount),
				SpikeRatio:        floatPtr(ratio),
				AvgCoverage:       floatPtr(edge.AvgCoverage),
			},
			Evidence: signals.Evidence{
				"transfer density between the two actors increased sharply versus the previous window",
			},
			Summary: signals.Summary{
				What:   "corridor transfer density spiked",
				WhyNow: "evidence count rose beyond the configured spike ratio",
				SoWhat: "may indicate a coordinated or urgent flow event",
			},
			SignalKey: key,
		})
	}
	return out
}

// detectDirectionImbalance implements §4.3.3.
func detectDirectionImbalance(ctx Context) []signals.SignalCandidate {
	if ctx.Current == nil {
		return nil
	}
	th := ctx.Thresholds
	var out []signals.SignalCandidate

	for _, actor := range ctx.Current.ActorsSorted() {
		total := actor.InflowUSD + actor.OutflowUSD
		if total <= 0 || total < th.MinTotalFlowUSD {
			continue
		}
		net := actor.NetFlowUSD
		absNet := net
		if absNet < 0 {
			absNet = -absNet
		}
		if absNet/total < th.MinImbalanceRatio {
			continue
		}
		if absNet < th.MinNetFlowUSD {
			continue
		}
		if actor.Coverage < th.CoverageRequired {
			continue
		}

		direction := signals.DirectionInflow
		if net < 0 {
			direction = signals.DirectionOutflow
		}

		actorIDs := []string{actor.ActorID}
		key := signals.NewSignalKey(signals.RuleDirectionImbalance, ctx.Window, signals.ScopeActor, actorIDs, nil)

		severity := signals.SeverityMedium
		if absNet/total >= th.MinImbalanceRatio*1.5 {
			severity = signals.SeverityHigh
		}

		out = append(out, signals.SignalCandidate{
			Type:            signals.RuleDirectionImbalance,
			Severity:        severity,
			Scope:           signals.ScopeActor,
			Window:          ctx.Window,
			Primary:         actor.ActorID,
			Entities:        actorIDs,
			Direction:       direction,
			PrimaryActorIDs: actorIDs,
			Metrics: signals.Metrics{
				NetFlowUSD:     floatPtr(net),
				TotalFlowUSD:   floatPtr(total),
				ImbalanceRatio: floatPtr(absNet / total),
				AvgCoverage:    floatPtr(actor.Coverage),
			},
			Evidence: signals.Evidence{
				"actor flow is strongly directional relative to total observed volume",
			},
			Summary: signals.Summary{
				What:   "actor flow is heavily imbalanced in one direction",
				WhyNow: "net flow ratio exceeds the configured imbalance threshold",
				SoWhat: "suggests accumulation or distribution behavior",
			},
			SignalKey: key,
		})
	}
	return out
}

var regimeTransitionAllowed = map[[2]graph.ParticipationTrend]bool{
	{graph.TrendStable, graph.TrendIncreasing}:     true,
	{graph.TrendIncreasing, graph.TrendDecreasing}: true,
	{graph.TrendStable, graph.TrendDecreasing}:     true,
}

// detectActorRegimeChange implements §4.3.4.
func detectActorRegimeChange(ctx Context) []signals.SignalCandidate {
	if ctx.Current == nil || ctx.Previous == nil {
		return nil
	}
	var out []signals.SignalCandidate

	for _, actor := range ctx.Current.ActorsSorted() {
		prevActor, existed := ctx.Previous.Actors[actor.ActorID]
		if !existed {
			continue
		}
		if prevActor.ParticipationTrend == actor.ParticipationTrend {
			continue
		}
		transition := [2]graph.ParticipationTrend{prevActor.ParticipationTrend, actor.ParticipationTrend}
		if !regimeTransitionAllowed[transition] {
			continue
		}

		severity := signals.SeverityMedium
		if prevActor.ParticipationTrend == graph.TrendIncreasing && actor.ParticipationTrend == graph.TrendDecreasing {
			severity = signals.SeverityHigh
		}

		actorIDs := []string{actor.ActorID}
		key := signals.NewSignalKey(signals.RuleActorRegimeChange, ctx.Window, signals.ScopeActor, actorIDs, nil)

		out = append(out, signals.SignalCandidate{
			Type:            signals.RuleActorRegimeChange,
			Severity:        severity,
			Scope:           signals.ScopeActor,
			Window:          ctx.Window,
			Primary:         actor.ActorID,
			Entities:        actorIDs,
			PrimaryActorIDs: actorIDs,
			Metrics: signals.Metrics{
				AvgCoverage: floatPtr(actor.Coverage),
			},
			Evidence: signals.Evidence{
				"participation trend shifted from " + string(prevActor.ParticipationTrend) + " to " + string(actor.ParticipationTrend),
			},
			Summary: signals.Summary{
				What:   "actor participation regime changed",
				WhyNow: "the trend classification moved between consecutive snapshots",
				SoWhat: "may indicate a shift in actor intent or activity level",
			},
			SignalKey: key,
		})
	}
	return out
}

// detectNewBridge implements §4.3.5.
func detectNewBridge(ctx Context) []signals.SignalCandidate {
	if ctx.Current == nil {
		return nil
	}
	th := ctx.Thresholds
	var out []signals.SignalCandidate

	for _, edge := range ctx.Current.EdgesSorted() {
		if edge.EdgeType != graph.EdgeBridge {
			continue
		}
		if ctx.Previous != nil {
			if _, existed := ctx.Previous.Edges[edge.ID]; existed {
				continue
			}
		}
		if edge.TemporalSync < th.MinBridgeSync {
			continue
		}

		actorIDs := []string{edge.ID.A, edge.ID.B}
		edgeIDs := []string{edgeIDString(edge.ID)}
		key := signals.NewSignalKey(signals.RuleNewBridge, ctx.Window, signals.ScopeBridge, actorIDs, edgeIDs)

		out = append(out, signals.SignalCandidate{
			Type:            signals.RuleNewBridge,
			Severity:        signals.SeverityMedium, // capped at medium by policy
			Scope:           signals.ScopeBridge,
			Window:          ctx.Window,
			Primary:         edge.ID.A,
			Secondary:       edge.ID.B,
			Entities:        actorIDs,
			PrimaryActorIDs: actorIDs,
			PrimaryEdgeIDs:  []string{edgeIDString(edge.ID)},
			Metrics: signals.Metrics{
				TemporalSync: floatPtr(edge.TemporalSync),
			},
			Evidence: signals.Evidence{
				"new cross-chain bridge relation observed with high temporal synchrony",
			},
			Summary: signals.Summary{
				What:   "a new bridge relation appeared between two actors",
				WhyNow: "leg timestamps are tightly synchronized, consistent with a single bridging operation",
				SoWhat: "may indicate cross-chain repositioning",
			},
			SignalKey: key,
		})
	}
	return out
}

func edgeIDString(id graph.EdgeID) string { return id.A + ":" + id.B }
