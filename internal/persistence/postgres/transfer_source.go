package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
)

// TransferSource implements snapshot.TransferSource as a read-only reader
// over the ingested transfer log; nothing in this package ever writes to it.
type TransferSource struct {
	db *sqlx.DB
}

// NewTransferSource constructs a TransferSource.
func NewTransferSource(db *sqlx.DB) *TransferSource {
	return &TransferSource{db: db}
}

type transferRow struct {
	Chain           string    `db:"chain"`
	TxHash          string    `db:"tx_hash"`
	LogIndex        int       `db:"log_index"`
	FromAddr        string    `db:"from_address"`
	ToAddr          string    `db:"to_address"`
	AssetAddress    string    `db:"asset_address"`
	AmountRaw       string    `db:"amount_raw"`
	AmountUSD       float64   `db:"amount_usd"`
	Timestamp       time.Time `db:"ts"`
	FromAttribution string    `db:"from_attribution"`
	ToAttribution   string    `db:"to_attribution"`
}

// List returns every transfer on chain within [from, to), ordered by
// timestamp for deterministic snapshot assembly.
func (r *TransferSource) List(ctx context.Context, chain string, from, to time.Time) ([]graph.Transfer, error) {
	var rows []transferRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT chain, tx_hash, log_index, from_address, to_address, asset_address, amount_raw, amount_usd, ts,
			from_attribution, to_attribution
		FROM transfers
		WHERE chain = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC, log_index ASC`, chain, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]graph.Transfer, 0, len(rows))
	for _, row := range rows {
		out = append(out, graph.Transfer{
			Chain:           row.Chain,
			TxHash:          row.TxHash,
			LogIndex:        row.LogIndex,
			From:            row.FromAddr,
			To:              row.ToAddr,
			AssetAddress:    row.AssetAddress,
			AmountRaw:       row.AmountRaw,
			AmountUSD:       row.AmountUSD,
			Timestamp:       row.Timestamp,
			FromAttribution: row.FromAttribution,
			ToAttribution:   row.ToAttribution,
		})
	}
	return out, nil
}
