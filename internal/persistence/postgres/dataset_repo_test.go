package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/domain/ranking"
)

func TestDatasetRepo_HasSample_TrueWhenExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepo(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(rows)

	exists, err := repo.HasSample(context.Background(), "snap1:1d")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestDatasetRepo_Upsert_RunsConflictUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDatasetRepo(db)

	sample := ranking.LearningSample{
		SampleID:      "snap1:1d",
		SnapshotID:    "snap1",
		Horizon:       ranking.Horizon1d,
		Entity:        ranking.Entity{Address: "0xabc", ChainID: "ethereum"},
		Features:      map[string]float64{"f1": 1.0},
		Labels:        map[string]float64{"return": 0.1},
		TrainEligible: true,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	mock.ExpectExec("INSERT INTO learning_samples").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), sample)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
