// Package graph holds the core entities of the relations & snapshot layer:
// Transfer, Actor, Edge and Snapshot.
package graph

import "time"

// ActorType classifies an actor for rule and scoring purposes.
type ActorType string

const (
	ActorExchange    ActorType = "exchange"
	ActorProtocol    ActorType = "protocol"
	ActorMarketMaker ActorType = "market_maker"
	ActorInfra       ActorType = "infra"
	ActorFund        ActorType = "fund"
	ActorTrader      ActorType = "trader"
)

// Window is a supported snapshot aggregation window.
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

// Duration returns the wall-clock span of a window.
func (w Window) Duration() time.Duration {
	switch w {
	case Window1h:
		return time.Hour
	case Window24h:
		return 24 * time.Hour
	case Window7d:
		return 7 * 24 * time.Hour
	case Window30d:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Transfer is an immutable, append-only on-chain transfer record. Identity is
// the tuple (Chain, TxHash, LogIndex); the transfer store is assumed
// idempotent on that key.
type Transfer struct {
	Chain        string
	TxHash       string
	LogIndex     int
	From         string
	To           string
	AssetAddress string
	AmountRaw    string // decimal string; callers convert per-asset precision
	AmountUSD    float64
	Timestamp    time.Time

	// Attribution strength for the From/To endpoints, used by coverage
	// computation. "verified"/"attributed" count toward coverage; "weak"
	// and "" (unknown) do not.
	FromAttribution string
	ToAttribution    string
}

// StrongAttribution reports whether an attribution tag counts toward
// actorsCoveragePct.
func StrongAttribution(tag string) bool {
	return tag == "verified" || tag == "attributed"
}

// ParticipationTrend is the coarse direction of an actor's participation
// relative to the previous comparable snapshot.
type ParticipationTrend string

const (
	TrendStable     ParticipationTrend = "stable"
	TrendIncreasing ParticipationTrend = "increasing"
	TrendDecreasing ParticipationTrend = "decreasing"
)

// Actor is the per-snapshot aggregate for a single address or labeled cluster.
type Actor struct {
	ActorID            string
	Type               ActorType
	InflowUSD          float64
	OutflowUSD         float64
	NetFlowUSD         float64
	TxCount            int
	CounterpartyCount  int
	FlowShare          float64 // share of total window volume attributable to this actor
	Coverage           float64 // [0,1]
	ParticipationTrend ParticipationTrend

	// Cluster-confirmation inputs (§4.4 P2.B). All optional; absence is
	// equivalent to "not grouped" on that dimension.
	EntityID         string
	OwnerID          string
	CommunityID      string
	InfrastructureID string

	// Actor-quality inputs (§4.4 actors subscore).
	IsExchangeOrMM bool
	Connectivity   float64 // [0,1] normalized counterparty breadth
	History        float64 // [0,1] normalized track record / age
}

// EdgeType classifies the relation an Edge represents.
type EdgeType string

const (
	EdgeTransfer EdgeType = "transfer"
	EdgeBridge   EdgeType = "bridge"
)

// EdgeID is the canonical sorted-pair identity of an Edge within a window.
type EdgeID struct {
	A, B string // A <= B lexicographically
}

// NewEdgeID returns the canonical (sorted) identity for an unordered actor pair.
func NewEdgeID(a, b string) EdgeID {
	if a <= b {
		return EdgeID{A: a, B: b}
	}
	return EdgeID{A: b, B: a}
}

// Edge is the derived, bidirectional relation between two actors within a window.
type Edge struct {
	ID             EdgeID
	EdgeType       EdgeType
	EvidenceCount  int     // number of transfers observed in window
	Weight         float64 // [0,1] normalized from evidence + magnitude
	Confidence     float64 // [0,1] source attribution confidence
	AvgCoverage    float64 // mean endpoint coverage, used by rule coverage gates
	MagnitudeUSD   float64 // total transfer value observed on this edge
	TemporalSync   float64 // [0,1] synchrony of bridge-leg timestamps, bridges only
	NetDirectional float64 // signed net flow A->B minus B->A, for imbalance-adjacent rules
}

// Coverage is the attribution-quality summary for a Snapshot.
type Coverage struct {
	ActorsCoveragePct float64 // [0,100]
	TransfersTotal    int
	TransfersStrong   int
}
