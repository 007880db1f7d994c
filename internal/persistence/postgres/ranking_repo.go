package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

// RankingRepo implements persistence.RankingStore: bulk upsert keyed by
// entity address, and an append-only transition log.
type RankingRepo struct {
	db *sqlx.DB
}

// NewRankingRepo constructs a RankingRepo.
func NewRankingRepo(db *sqlx.DB) *RankingRepo {
	return &RankingRepo{db: db}
}

type rankingRow struct {
	Address          string    `db:"address"`
	ChainID          string    `db:"chain_id"`
	Composite        float64   `db:"composite"`
	Confidence       float64   `db:"confidence"`
	Risk             float64   `db:"risk"`
	Bucket           string    `db:"bucket"`
	StabilityPenalty float64   `db:"stability_penalty"`
	EngineContrib    float64   `db:"engine_contrib"`
	ActorContrib     float64   `db:"actor_contrib"`
	RecentJSON       []byte    `db:"recent_buckets_json"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// BulkUpsert writes every ranking in one statement per row, keyed by
// (address, chain_id).
func (r *RankingRepo) BulkUpsert(ctx context.Context, rankings []ranking.Ranking) error {
	if len(rankings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, rk := range rankings {
		recent, err := json.Marshal(rk.RecentBuckets)
		if err != nil {
			return err
		}
		row := rankingRow{
			Address:          rk.Entity.Address,
			ChainID:          rk.Entity.ChainID,
			Composite:        rk.Composite,
			Confidence:       rk.Confidence,
			Risk:             rk.Risk,
			Bucket:           string(rk.Bucket),
			StabilityPenalty: rk.StabilityPenalty,
			EngineContrib:    rk.EngineContrib,
			ActorContrib:     rk.ActorContrib,
			RecentJSON:       recent,
			UpdatedAt:        rk.UpdatedAt,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO rankings (address, chain_id, composite, confidence, risk, bucket, stability_penalty,
				engine_contrib, actor_contrib, recent_buckets_json, updated_at)
			VALUES (:address, :chain_id, :composite, :confidence, :risk, :bucket, :stability_penalty,
				:engine_contrib, :actor_contrib, :recent_buckets_json, :updated_at)
			ON CONFLICT (address, chain_id) DO UPDATE SET
				composite = EXCLUDED.composite,
				confidence = EXCLUDED.confidence,
				risk = EXCLUDED.risk,
				bucket = EXCLUDED.bucket,
				stability_penalty = EXCLUDED.stability_penalty,
				engine_contrib = EXCLUDED.engine_contrib,
				actor_contrib = EXCLUDED.actor_contrib,
				recent_buckets_json = EXCLUDED.recent_buckets_json,
				updated_at = EXCLUDED.updated_at`, row); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadByBucket returns the most recently updated rankings in a bucket.
func (r *RankingRepo) ReadByBucket(ctx context.Context, bucket ranking.Bucket, limit int) ([]ranking.Ranking, error) {
	var rows []rankingRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT address, chain_id, composite, confidence, risk, bucket, stability_penalty, engine_contrib,
			actor_contrib, recent_buckets_json, updated_at
		FROM rankings WHERE bucket = $1 ORDER BY updated_at DESC LIMIT $2`, string(bucket), limit)
	if err != nil {
		return nil, err
	}
	out := make([]ranking.Ranking, 0, len(rows))
	for _, row := range rows {
		var recent []ranking.Bucket
		if err := json.Unmarshal(row.RecentJSON, &recent); err != nil {
			return nil, err
		}
		out = append(out, ranking.Ranking{
			Entity:           ranking.Entity{Address: row.Address, ChainID: row.ChainID},
			Composite:        row.Composite,
			Confidence:       row.Confidence,
			Risk:             row.Risk,
			Bucket:           ranking.Bucket(row.Bucket),
			StabilityPenalty: row.StabilityPenalty,
			EngineContrib:    row.EngineContrib,
			ActorContrib:     row.ActorContrib,
			RecentBuckets:    recent,
			UpdatedAt:        row.UpdatedAt,
		})
	}
	return out, nil
}

// AppendTransition writes one immutable BucketTransition row.
func (r *RankingRepo) AppendTransition(ctx context.Context, t ranking.BucketTransition) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO ranking_transitions (transition_id, address, chain_id, from_bucket, to_bucket, reason, prev_id, at)
		VALUES (:transition_id, :address, :chain_id, :from_bucket, :to_bucket, :reason, :prev_id, :at)`,
		map[string]interface{}{
			"transition_id": t.TransitionID,
			"address":       t.Entity.Address,
			"chain_id":      t.Entity.ChainID,
			"from_bucket":   string(t.From),
			"to_bucket":     string(t.To),
			"reason":        string(t.Reason),
			"prev_id":       t.PrevID,
			"at":            t.At,
		})
	return err
}
