package postgres

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/signalgraph/internal/application/snapshot"
	"github.com/sawpanic/signalgraph/internal/domain/graph"
)

// ActorDirectory implements snapshot.ActorLookup by loading the labeled
// address table into memory and serving Resolve from that cache: the
// interface is synchronous and error-free, so lookups cannot hit the
// database on the SnapshotBuilder's hot path.
type ActorDirectory struct {
	db *sqlx.DB

	mu    sync.RWMutex
	cache map[string]snapshot.ActorInfo
}

// NewActorDirectory constructs an empty ActorDirectory; call Refresh before
// first use.
func NewActorDirectory(db *sqlx.DB) *ActorDirectory {
	return &ActorDirectory{db: db, cache: map[string]snapshot.ActorInfo{}}
}

type actorDirectoryRow struct {
	Address          string  `db:"address"`
	ActorID          string  `db:"actor_id"`
	Type             string  `db:"actor_type"`
	IsExchangeOrMM   bool    `db:"is_exchange_or_mm"`
	EntityID         string  `db:"entity_id"`
	OwnerID          string  `db:"owner_id"`
	CommunityID      string  `db:"community_id"`
	InfrastructureID string  `db:"infrastructure_id"`
	Connectivity     float64 `db:"connectivity"`
	History          float64 `db:"history"`
}

// Refresh reloads the entire directory from Postgres. Intended to run
// periodically via the scheduler (e.g. hourly), not per-snapshot.
func (d *ActorDirectory) Refresh(ctx context.Context) error {
	var rows []actorDirectoryRow
	if err := d.db.SelectContext(ctx, &rows, `
		SELECT address, actor_id, actor_type, is_exchange_or_mm, entity_id, owner_id, community_id,
			infrastructure_id, connectivity, history
		FROM actor_directory`); err != nil {
		return err
	}

	next := make(map[string]snapshot.ActorInfo, len(rows))
	for _, row := range rows {
		next[row.Address] = snapshot.ActorInfo{
			ActorID:          row.ActorID,
			Type:             graph.ActorType(row.Type),
			IsExchangeOrMM:   row.IsExchangeOrMM,
			EntityID:         row.EntityID,
			OwnerID:          row.OwnerID,
			CommunityID:      row.CommunityID,
			InfrastructureID: row.InfrastructureID,
			Connectivity:     row.Connectivity,
			History:          row.History,
		}
	}

	d.mu.Lock()
	d.cache = next
	d.mu.Unlock()
	return nil
}

// Resolve returns the cached actor metadata for address, or an unlabeled
// default (address as ActorID, zero cluster fields) per the ActorLookup
// contract.
func (d *ActorDirectory) Resolve(address string) snapshot.ActorInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if info, ok := d.cache[address]; ok {
		return info
	}
	return snapshot.ActorInfo{ActorID: address}
}
