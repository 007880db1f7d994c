package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

// DatasetRepo implements dataset.Store: one row per sampleID (snapshotId:horizon).
type DatasetRepo struct {
	db *sqlx.DB
}

// NewDatasetRepo constructs a DatasetRepo.
func NewDatasetRepo(db *sqlx.DB) *DatasetRepo {
	return &DatasetRepo{db: db}
}

type learningSampleRow struct {
	SampleID      string    `db:"sample_id"`
	SnapshotID    string    `db:"snapshot_id"`
	Horizon       string    `db:"horizon"`
	Address       string    `db:"address"`
	ChainID       string    `db:"chain_id"`
	FeaturesJSON  []byte    `db:"features_json"`
	LabelsJSON    []byte    `db:"labels_json"`
	TrainEligible bool      `db:"train_eligible"`
	QualityJSON   []byte    `db:"quality_reasons_json"`
	Drift         string    `db:"drift"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// HasSample reports whether a sample already exists for sampleID.
func (r *DatasetRepo) HasSample(ctx context.Context, sampleID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM learning_samples WHERE sample_id = $1)`, sampleID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return exists, err
}

// Upsert writes a learning sample, overwriting any existing row for the same
// sampleID (full-mode rebuilds intentionally replace the quality verdict).
func (r *DatasetRepo) Upsert(ctx context.Context, sample ranking.LearningSample) error {
	features, err := json.Marshal(sample.Features)
	if err != nil {
		return err
	}
	labels, err := json.Marshal(sample.Labels)
	if err != nil {
		return err
	}
	quality, err := json.Marshal(sample.QualityReasons)
	if err != nil {
		return err
	}
	row := learningSampleRow{
		SampleID:      sample.SampleID,
		SnapshotID:    sample.SnapshotID,
		Horizon:       string(sample.Horizon),
		Address:       sample.Entity.Address,
		ChainID:       sample.Entity.ChainID,
		FeaturesJSON:  features,
		LabelsJSON:    labels,
		TrainEligible: sample.TrainEligible,
		QualityJSON:   quality,
		Drift:         string(sample.Drift),
		CreatedAt:     sample.CreatedAt,
		UpdatedAt:     sample.UpdatedAt,
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO learning_samples (sample_id, snapshot_id, horizon, address, chain_id, features_json, labels_json,
			train_eligible, quality_reasons_json, drift, created_at, updated_at)
		VALUES (:sample_id, :snapshot_id, :horizon, :address, :chain_id, :features_json, :labels_json,
			:train_eligible, :quality_reasons_json, :drift, :created_at, :updated_at)
		ON CONFLICT (sample_id) DO UPDATE SET
			features_json = EXCLUDED.features_json,
			labels_json = EXCLUDED.labels_json,
			train_eligible = EXCLUDED.train_eligible,
			quality_reasons_json = EXCLUDED.quality_reasons_json,
			drift = EXCLUDED.drift,
			updated_at = EXCLUDED.updated_at`, row)
	return err
}
