package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/domain/signals"
)

func TestSignalRepo_Get_NoRowsReturnsNilSignal(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSignalRepo(db)

	mock.ExpectQuery("SELECT \\* FROM signals").WillReturnError(sql.ErrNoRows)

	sig, err := repo.Get(context.Background(), signals.SignalKey("deadbeef"))
	require.NoError(t, err)
	require.Nil(t, sig)
}

func TestSignalRepo_Upsert_RunsConflictUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSignalRepo(db)

	sig := signals.Signal{
		SignalKey:  signals.SignalKey("deadbeef"),
		Type:       signals.RuleNewCorridor,
		Severity:   signals.SeverityHigh,
		Scope:      signals.ScopeCorridor,
		Window:     "1h",
		Entities:   []string{"actorA"},
		Lifecycle:  signals.LifecycleActive,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	mock.ExpectExec("INSERT INTO signals").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), sig)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSignalRepo_ListLive_FiltersByWindowAndLifecycle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSignalRepo(db)

	cols := []string{"signal_key", "type", "severity", "scope", "window", "entities_json", "summary_json",
		"evidence_json", "confidence_score", "label", "trace_json", "lifecycle", "snapshots_without_trigger",
		"first_triggered_at", "last_triggered_at", "resolve_reason", "created_at", "updated_at"}
	rows := sqlmock.NewRows(cols).AddRow(
		"deadbeef", "NEW_CORRIDOR", "high", "corridor", "1h", []byte(`["a"]`), []byte(`{}`),
		[]byte(`[]`), 72.0, "MEDIUM", []byte(`{}`), "ACTIVE", 0,
		time.Now(), time.Now(), "", time.Now(), time.Now())

	mock.ExpectQuery("SELECT \\* FROM signals WHERE window").WillReturnRows(rows)

	out, err := repo.ListLive(context.Background(), "1h")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, signals.Lifecycle("ACTIVE"), out[0].Lifecycle)
}
