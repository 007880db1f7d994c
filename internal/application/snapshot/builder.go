// Package snapshot implements the SnapshotBuilder (§4.1): it aggregates the
// transfer log for a window into an immutable, content-addressed Snapshot.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
	"github.com/sawpanic/signalgraph/internal/pipelineerr"
)

// TransferSource is the consumed boundary contract of §6: list(chain,
// from..to, timestamp window) -> Transfer[].
type TransferSource interface {
	List(ctx context.Context, chain string, from, to time.Time) ([]graph.Transfer, error)
}

// Store is the produced/consumed snapshot store contract of §6.
type Store interface {
	Put(ctx context.Context, snap graph.Snapshot) error
	GetLatest(ctx context.Context, window graph.Window) (*graph.Snapshot, error)
	List(ctx context.Context, window graph.Window, limit int) ([]graph.Snapshot, error)
	GetByID(ctx context.Context, id string) (*graph.Snapshot, error)
}

// PriceProvider converts a raw token amount to USD; the core never inlines
// token metadata tables (§9 re-architecture note).
type PriceProvider interface {
	USDValue(assetAddress string, amountRaw string, at time.Time) (float64, error)
}

// ActorLookup resolves an address to its labeled actor id, type and cluster
// membership. Implementations may return the address itself as ActorID for
// unlabeled addresses, with IsExchangeOrMM=false and zero cluster fields.
type ActorLookup interface {
	Resolve(address string) ActorInfo
}

// ActorInfo is the static metadata ActorLookup supplies per address.
type ActorInfo struct {
	ActorID          string
	Type             graph.ActorType
	IsExchangeOrMM   bool
	EntityID         string
	OwnerID          string
	CommunityID      string
	InfrastructureID string
	Connectivity     float64
	History          float64
}

// Builder implements buildSnapshot(window) -> Snapshot (§4.1).
type Builder struct {
	source TransferSource
	store  Store
	prices PriceProvider
	actors ActorLookup
	chains []string
	log    zerolog.Logger
}

// New constructs a SnapshotBuilder.
func New(source TransferSource, store Store, prices PriceProvider, actors ActorLookup, chains []string, log zerolog.Logger) *Builder {
	return &Builder{source: source, store: store, prices: prices, actors: actors, chains: chains, log: log}
}

type aggState struct {
	actors map[string]*actorAgg
	edges  map[graph.EdgeID]*edgeAgg

	transfersTotal  int
	transfersStrong int
}

type actorAgg struct {
	info         ActorInfo
	inflowUSD    float64
	outflowUSD   float64
	txCount      int
	counterparts map[string]struct{}
	coverageSum  float64
	coverageN    int
}

type edgeAgg struct {
	id            graph.EdgeID
	edgeType      graph.EdgeType
	evidenceCount int
	magnitudeUSD  float64
	confidenceSum float64
	coverageSum   float64
	netAtoB       float64 // signed USD flow from A to B
	syncSamples   []time.Time
}

// Build runs buildSnapshot(window) for the half-open interval [now-window, now).
// Returns SnapshotUnavailable (wrapped as pipelineerr.KindInputMissing) if the
// transfer store is unreachable; never publishes a partial snapshot on that path.
func (b *Builder) Build(ctx context.Context, window graph.Window, now time.Time) (*graph.Snapshot, error) {
	from := now.Add(-window.Duration())

	state := &aggState{
		actors: make(map[string]*actorAgg),
		edges:  make(map[graph.EdgeID]*edgeAgg),
	}

	for _, chain := range b.chains {
		transfers, err := b.source.List(ctx, chain, from, now)
		if err != nil {
			return nil, pipelineerr.New(pipelineerr.KindInputMissing, "snapshot.Builder",
				fmt.Errorf("transfer source unavailable for chain %s: %w", chain, err))
		}
		for _, tr := range transfers {
			b.absorb(state, tr, now)
		}
	}

	actors := b.finalizeActors(state)
	edges := b.finalizeEdges(state)
	b.computeFlowShareAndTrend(ctx, window, actors)

	coveragePct := 0.0
	if state.transfersTotal > 0 {
		coveragePct = 100 * float64(state.transfersStrong) / float64(state.transfersTotal)
	}

	actorsByID := make(map[string]graph.Actor, len(actors))
	for _, a := range actors {
		actorsByID[a.ActorID] = a
	}
	edgesByID := make(map[graph.EdgeID]graph.Edge, len(edges))
	for _, e := range edges {
		edgesByID[e.ID] = e
	}

	id := graph.ComputeSnapshotID(window, from, now, actors, edges)
	snap := &graph.Snapshot{
		SnapshotID: id,
		Window:     window,
		BuiltAt:    now,
		From:       from,
		To:         now,
		Actors:     actorsByID,
		Edges:      edgesByID,
		Coverage: graph.Coverage{
			ActorsCoveragePct: coveragePct,
			TransfersTotal:    state.transfersTotal,
			TransfersStrong:   state.transfersStrong,
		},
	}

	if err := b.store.Put(ctx, *snap); err != nil {
		return nil, pipelineerr.New(pipelineerr.KindFatal, "snapshot.Builder", fmt.Errorf("publish snapshot: %w", err))
	}

	b.log.Info().Str("window", string(window)).Str("snapshot_id", id).
		Int("actors", len(actors)).Int("edges", len(edges)).
		Float64("coverage_pct", coveragePct).Msg("snapshot built")

	return snap, nil
}

func (b *Builder) absorb(state *aggState, tr graph.Transfer, now time.Time) {
	usd := tr.AmountUSD
	if usd == 0 && b.prices != nil {
		if v, err := b.prices.USDValue(tr.AssetAddress, tr.AmountRaw, tr.Timestamp); err == nil {
			usd = v
		}
	}

	fromInfo := b.resolve(tr.From)
	toInfo := b.resolve(tr.To)

	state.transfersTotal++
	strong := graph.StrongAttribution(tr.FromAttribution) && graph.StrongAttribution(tr.ToAttribution)
	if strong {
		state.transfersStrong++
	}

	fromAgg := b.getOrCreateActor(state, fromInfo)
	fromAgg.outflowUSD += usd
	fromAgg.txCount++
	fromAgg.counterparts[toInfo.ActorID] = struct{}{}
	fromAgg.coverageSum += attributionScore(tr.FromAttribution)
	fromAgg.coverageN++

	toAgg := b.getOrCreateActor(state, toInfo)
	toAgg.inflowUSD += usd
	toAgg.txCount++
	toAgg.counterparts[fromInfo.ActorID] = struct{}{}
	toAgg.coverageSum += attributionScore(tr.ToAttribution)
	toAgg.coverageN++

	if fromInfo.ActorID == toInfo.ActorID {
		return // self-transfer contributes no edge
	}

	edgeID := graph.NewEdgeID(fromInfo.ActorID, toInfo.ActorID)
	edge, ok := state.edges[edgeID]
	if !ok {
		edge = &edgeAgg{id: edgeID, edgeType: graph.EdgeTransfer}
		state.edges[edgeID] = edge
	}
	edge.evidenceCount++
	edge.magnitudeUSD += usd
	edge.confidenceSum += (attributionScore(tr.FromAttribution) + attributionScore(tr.ToAttribution)) / 2
	edge.coverageSum += (attributionScore(tr.FromAttribution) + attributionScore(tr.ToAttribution)) / 2
	edge.syncSamples = append(edge.syncSamples, tr.Timestamp)

	if edgeID.A == fromInfo.ActorID {
		edge.netAtoB += usd
	} else {
		edge.netAtoB -= usd
	}
}

func attributionScore(tag string) float64 {
	if graph.StrongAttribution(tag) {
		return 1.0
	}
	if tag == "weak" {
		return 0.3
	}
	return 0.0
}

func (b *Builder) resolve(address string) ActorInfo {
	if b.actors == nil {
		return ActorInfo{ActorID: address, Type: graph.ActorTrader}
	}
	return b.actors.Resolve(address)
}

func (b *Builder) getOrCreateActor(state *aggState, info ActorInfo) *actorAgg {
	agg, ok := state.actors[info.ActorID]
	if !ok {
		agg = &actorAgg{info: info, counterparts: make(map[string]struct{})}
		state.actors[info.ActorID] = agg
	}
	return agg
}

func (b *Builder) finalizeActors(state *aggState) []graph.Actor {
	totalVolume := 0.0
	for _, a := range state.actors {
		totalVolume += a.inflowUSD + a.outflowUSD
	}

	out := make([]graph.Actor, 0, len(state.actors))
	for id, a := range state.actors {
		coverage := 0.0
		if a.coverageN > 0 {
			coverage = a.coverageSum / float64(a.coverageN)
		}
		flowShare := 0.0
		if totalVolume > 0 {
			flowShare = (a.inflowUSD + a.outflowUSD) / totalVolume
		}

		out = append(out, graph.Actor{
			ActorID:           id,
			Type:              a.info.Type,
			InflowUSD:         a.inflowUSD,
			OutflowUSD:        a.outflowUSD,
			NetFlowUSD:        a.inflowUSD - a.outflowUSD,
			TxCount:           a.txCount,
			CounterpartyCount: len(a.counterparts),
			FlowShare:         flowShare,
			Coverage:          coverage,
			IsExchangeOrMM:    a.info.IsExchangeOrMM,
			EntityID:          a.info.EntityID,
			OwnerID:           a.info.OwnerID,
			CommunityID:       a.info.CommunityID,
			InfrastructureID:  a.info.InfrastructureID,
			Connectivity:      a.info.Connectivity,
			History:           a.info.History,
			// ParticipationTrend is filled in by computeFlowShareAndTrend.
		})
	}
	return out
}

func (b *Builder) finalizeEdges(state *aggState) []graph.Edge {
	maxMagnitude := 0.0
	for _, e := range state.edges {
		if e.magnitudeUSD > maxMagnitude {
			maxMagnitude = e.magnitudeUSD
		}
	}

	out := make([]graph.Edge, 0, len(state.edges))
	for id, e := range state.edges {
		weight := edgeWeight(e.evidenceCount, e.magnitudeUSD, maxMagnitude)
		confidence := 0.0
		coverage := 0.0
		if e.evidenceCount > 0 {
			confidence = e.confidenceSum / float64(e.evidenceCount)
			coverage = e.coverageSum / float64(e.evidenceCount)
		}
		out = append(out, graph.Edge{
			ID:             id,
			EdgeType:       e.edgeType,
			EvidenceCount:  e.evidenceCount,
			Weight:         weight,
			Confidence:     confidence,
			AvgCoverage:    coverage,
			MagnitudeUSD:   e.magnitudeUSD,
			TemporalSync:   temporalSync(e.syncSamples),
			NetDirectional: e.netAtoB,
		})
	}
	return out
}

// edgeWeight normalizes evidence count and relative magnitude to [0,1],
// equally weighting density and size.
func edgeWeight(evidence int, magnitude, maxMagnitude float64) float64 {
	densityTerm := 1 - 1/float64(1+evidence) // asymptotic to 1 as evidence grows
	magnitudeTerm := 0.0
	if maxMagnitude > 0 {
		magnitudeTerm = magnitude / maxMagnitude
	}
	w := 0.5*densityTerm + 0.5*magnitudeTerm
	if w > 1 {
		w = 1
	}
	if w < 0 {
		w = 0
	}
	return w
}

// temporalSync scores how tightly clustered a set of timestamps are,
// normalized to [0,1]; used by the NEW_BRIDGE detector's minSync gate.
func temporalSync(samples []time.Time) float64 {
	if len(samples) < 2 {
		if len(samples) == 1 {
			return 1
		}
		return 0
	}
	min, max := samples[0], samples[0]
	for _, s := range samples {
		if s.Before(min) {
			min = s
		}
		if s.After(max) {
			max = s
		}
	}
	span := max.Sub(min)
	const syncWindow = 10 * time.Minute
	if span >= syncWindow {
		return 0
	}
	return 1 - float64(span)/float64(syncWindow)
}

// computeFlowShareAndTrend fills ParticipationTrend by comparing each actor's
// net flow against the previous comparable snapshot for the same window.
func (b *Builder) computeFlowShareAndTrend(ctx context.Context, window graph.Window, actors []graph.Actor) {
	prev, err := b.store.GetLatest(ctx, window)
	if err != nil || prev == nil {
		for i := range actors {
			actors[i].ParticipationTrend = graph.TrendStable
		}
		return
	}
	for i, a := range actors {
		prevActor, ok := prev.Actors[a.ActorID]
		if !ok {
			actors[i].ParticipationTrend = graph.TrendStable
			continue
		}
		actors[i].ParticipationTrend = classifyTrend(prevActor.NetFlowUSD, a.NetFlowUSD)
	}
}

// classifyTrend buckets the relative change in net flow into the coarse
// trend vocabulary of §4.1, using a 20% relative-change deadband as "stable".
func classifyTrend(prevNet, currNet float64) graph.ParticipationTrend {
	base := absF(prevNet)
	if base < 1 {
		base = 1
	}
	delta := (currNet - prevNet) / base
	switch {
	case delta > 0.2:
		return graph.TrendIncreasing
	case delta < -0.2:
		return graph.TrendDecreasing
	default:
		return graph.TrendStable
	}
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
