package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

// PriceOracle implements both snapshot.PriceProvider (raw-token to USD, for
// transfer valuation) and outcome.PriceLookup (entity price at a point in
// time, for outcome resolution). Both read from price history tables
// populated by an external ingest job out of this pipeline's scope
// (spec.md's "seeded market data" Non-goal).
type PriceOracle struct {
	db *sqlx.DB
}

// NewPriceOracle constructs a PriceOracle.
func NewPriceOracle(db *sqlx.DB) *PriceOracle {
	return &PriceOracle{db: db}
}

type assetPriceRow struct {
	Decimals int     `db:"decimals"`
	Price    float64 `db:"usd_price"`
}

// USDValue converts a raw token amount to USD using the nearest price at or
// before `at` for assetAddress. No context parameter is available on this
// boundary (snapshot.PriceProvider), so a short fixed deadline is applied.
func (o *PriceOracle) USDValue(assetAddress string, amountRaw string, at time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var row assetPriceRow
	err := o.db.GetContext(ctx, &row, `
		SELECT decimals, usd_price FROM asset_prices
		WHERE asset_address = $1 AND observed_at <= $2
		ORDER BY observed_at DESC LIMIT 1`, assetAddress, at)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no price observed for asset %s at or before %s", assetAddress, at)
	}
	if err != nil {
		return 0, err
	}

	raw, err := strconv.ParseFloat(amountRaw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amountRaw %q: %w", amountRaw, err)
	}
	amount := raw / math.Pow10(row.Decimals)
	return amount * row.Price, nil
}

type entityPriceRow struct {
	Price float64 `db:"usd_price"`
}

// PriceAt returns the entity's USD price at or before `at`, for the
// OutcomeTracker's realized-return calculation.
func (o *PriceOracle) PriceAt(ctx context.Context, entity ranking.Entity, at time.Time) (float64, error) {
	var row entityPriceRow
	err := o.db.GetContext(ctx, &row, `
		SELECT usd_price FROM entity_prices
		WHERE address = $1 AND chain_id = $2 AND observed_at <= $3
		ORDER BY observed_at DESC LIMIT 1`, entity.Address, entity.ChainID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no price observed for entity %s/%s at or before %s", entity.ChainID, entity.Address, at)
	}
	return row.Price, err
}
