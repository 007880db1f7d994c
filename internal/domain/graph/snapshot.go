package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// Snapshot is an immutable, content-addressed projection of actors and edges
// observed in a window. Two builds over identical input transfers yield an
// identical SnapshotID.
type Snapshot struct {
	SnapshotID string
	Window     Window
	BuiltAt    time.Time
	From, To   time.Time

	Actors   map[string]Actor // keyed by ActorID
	Edges    map[EdgeID]Edge
	Coverage Coverage
}

// ActorsSorted returns the snapshot's actors ordered by ActorID for
// deterministic iteration.
func (s *Snapshot) ActorsSorted() []Actor {
	out := make([]Actor, 0, len(s.Actors))
	for _, a := range s.Actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out
}

// EdgesSorted returns the snapshot's edges ordered by (A,B) for deterministic
// iteration and hashing.
func (s *Snapshot) EdgesSorted() []Edge {
	out := make([]Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.A != out[j].ID.A {
			return out[i].ID.A < out[j].ID.A
		}
		return out[i].ID.B < out[j].ID.B
	})
	return out
}

// ComputeSnapshotID derives a content-addressed id from the window bounds and
// the sorted actor/edge projections. Collision probability is treated as
// acceptable at 64 bits of truncated digest for this scope. Actor and edge
// ids are sorted here, so the caller's slice order does not affect the id.
func ComputeSnapshotID(window Window, from, to time.Time, actors []Actor, edges []Edge) string {
	h := sha256.New()
	writeStr := func(s string) { h.Write([]byte(s)); h.Write([]byte{0}) }

	writeStr(string(window))
	writeStr(from.UTC().Format(time.RFC3339Nano))
	writeStr(to.UTC().Format(time.RFC3339Nano))
	actorIDs := make([]string, 0, len(actors))
	for _, a := range actors {
		actorIDs = append(actorIDs, a.ActorID)
	}
	sort.Strings(actorIDs)
	for _, id := range actorIDs {
		writeStr(id)
	}
	edgeIDs := make([]string, 0, len(edges))
	for _, e := range edges {
		edgeIDs = append(edgeIDs, e.ID.A+":"+e.ID.B)
	}
	sort.Strings(edgeIDs)
	for _, id := range edgeIDs {
		writeStr(id)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8]) // 16 hex chars, 64 bits
}
