// Package postgres implements the sqlx + lib/pq repository adapters for the
// persistence contracts: upsert-by-key writes, no query syntax above this
// layer.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
)

// SnapshotRepo implements snapshot.Store against a single append-only table.
type SnapshotRepo struct {
	db *sqlx.DB
}

// NewSnapshotRepo constructs a SnapshotRepo.
func NewSnapshotRepo(db *sqlx.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

type snapshotRow struct {
	SnapshotID      string    `db:"snapshot_id"`
	Window          string    `db:"window"`
	BuiltAt         time.Time `db:"built_at"`
	FromTS          time.Time `db:"from_ts"`
	ToTS            time.Time `db:"to_ts"`
	ActorsJSON      []byte    `db:"actors_json"`
	EdgesJSON       []byte    `db:"edges_json"`
	Coverage        float64   `db:"coverage_pct"`
	TransfersTotal  int       `db:"transfers_total"`
	TransfersStrong int       `db:"transfers_strong"`
}

// Put inserts a snapshot; snapshots are content-addressed and immutable, so
// a conflict on snapshot_id is a no-op rather than an overwrite.
func (r *SnapshotRepo) Put(ctx context.Context, snap graph.Snapshot) error {
	row, err := toRow(snap)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, window, built_at, from_ts, to_ts, actors_json, edges_json, coverage_pct, transfers_total, transfers_strong)
		VALUES (:snapshot_id, :window, :built_at, :from_ts, :to_ts, :actors_json, :edges_json, :coverage_pct, :transfers_total, :transfers_strong)
		ON CONFLICT (snapshot_id) DO NOTHING`, row)
	return err
}

// GetLatest returns the most recently built snapshot for a window, or nil if
// none exists.
func (r *SnapshotRepo) GetLatest(ctx context.Context, window graph.Window) (*graph.Snapshot, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row, `
		SELECT snapshot_id, window, built_at, from_ts, to_ts, actors_json, edges_json, coverage_pct, transfers_total, transfers_strong
		FROM snapshots WHERE window = $1 ORDER BY built_at DESC LIMIT 1`, string(window))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List returns the most recent snapshots for a window, newest first.
func (r *SnapshotRepo) List(ctx context.Context, window graph.Window, limit int) ([]graph.Snapshot, error) {
	var rows []snapshotRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT snapshot_id, window, built_at, from_ts, to_ts, actors_json, edges_json, coverage_pct, transfers_total, transfers_strong
		FROM snapshots WHERE window = $1 ORDER BY built_at DESC LIMIT $2`, string(window), limit)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

// GetByID returns a single snapshot by its content-addressed id, or nil if
// absent.
func (r *SnapshotRepo) GetByID(ctx context.Context, id string) (*graph.Snapshot, error) {
	var row snapshotRow
	err := r.db.GetContext(ctx, &row, `
		SELECT snapshot_id, window, built_at, from_ts, to_ts, actors_json, edges_json, coverage_pct, transfers_total, transfers_strong
		FROM snapshots WHERE snapshot_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

func toRow(snap graph.Snapshot) (snapshotRow, error) {
	actorsJSON, err := json.Marshal(snap.ActorsSorted())
	if err != nil {
		return snapshotRow{}, err
	}
	edgesJSON, err := json.Marshal(snap.EdgesSorted())
	if err != nil {
		return snapshotRow{}, err
	}
	return snapshotRow{
		SnapshotID:      snap.SnapshotID,
		Window:          string(snap.Window),
		BuiltAt:         snap.BuiltAt,
		FromTS:          snap.From,
		ToTS:            snap.To,
		ActorsJSON:      actorsJSON,
		EdgesJSON:       edgesJSON,
		Coverage:        snap.Coverage.ActorsCoveragePct,
		TransfersTotal:  snap.Coverage.TransfersTotal,
		TransfersStrong: snap.Coverage.TransfersStrong,
	}, nil
}

func fromRow(row snapshotRow) (*graph.Snapshot, error) {
	var actors []graph.Actor
	if err := json.Unmarshal(row.ActorsJSON, &actors); err != nil {
		return nil, err
	}
	var edges []graph.Edge
	if err := json.Unmarshal(row.EdgesJSON, &edges); err != nil {
		return nil, err
	}

	actorMap := make(map[string]graph.Actor, len(actors))
	for _, a := range actors {
		actorMap[a.ActorID] = a
	}
	edgeMap := make(map[graph.EdgeID]graph.Edge, len(edges))
	for _, e := range edges {
		edgeMap[e.ID] = e
	}

	return &graph.Snapshot{
		SnapshotID: row.SnapshotID,
		Window:     graph.Window(row.Window),
		BuiltAt:    row.BuiltAt,
		From:       row.FromTS,
		To:         row.ToTS,
		Actors:     actorMap,
		Edges:      edgeMap,
		Coverage: graph.Coverage{
			ActorsCoveragePct: row.Coverage,
			TransfersTotal:    row.TransfersTotal,
			TransfersStrong:   row.TransfersStrong,
		},
	}, nil
}
