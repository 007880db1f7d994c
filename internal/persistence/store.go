// Package persistence declares the owned ranking repository contract of §6,
// with upsert/find primitives only — the core holds no query syntax. The
// signal, snapshot and learning-sample stores are declared by the packages
// that consume them.
package persistence

import (
	"context"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

// RankingStore is the owned ranking repository: bulk upsert keyed by entity
// address, and read-back filtered by bucket.
type RankingStore interface {
	BulkUpsert(ctx context.Context, rankings []ranking.Ranking) error
	ReadByBucket(ctx context.Context, bucket ranking.Bucket, limit int) ([]ranking.Ranking, error)
	AppendTransition(ctx context.Context, t ranking.BucketTransition) error
}
