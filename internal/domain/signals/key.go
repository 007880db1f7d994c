package signals

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// SignalKey is the stable, content-addressed identity of a structural event
// (§4.3, §9). It replaces the source's ad-hoc cryptographic-digest-truncated
// hashing with an explicit value type built from the same inputs: type,
// window, scope, and the sorted actor/edge id sets. 64 bits of truncated
// SHA-256 is an acceptable collision rate for this scope's entity counts.
type SignalKey string

// NewSignalKey builds the stable key for a (type, window, scope, actors,
// edges) tuple. Inputs are sorted internally so callers never need to
// pre-sort; identical structural events across runs always yield identical
// keys, and any difference in the inputs yields a different key.
func NewSignalKey(ruleType RuleType, window string, scope Scope, actorIDs, edgeIDs []string) SignalKey {
	actors := append([]string(nil), actorIDs...)
	edges := append([]string(nil), edgeIDs...)
	sort.Strings(actors)
	sort.Strings(edges)

	h := sha256.New()
	h.Write([]byte(string(ruleType)))
	h.Write([]byte{0})
	h.Write([]byte(window))
	h.Write([]byte{0})
	h.Write([]byte(string(scope)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(actors, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(edges, ",")))

	sum := h.Sum(nil)
	return SignalKey(hex.EncodeToString(sum[:8]))
}
