package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/signalgraph/internal/domain/graph"
)

func TestActorDirectory_RefreshThenResolve(t *testing.T) {
	db, mock := newMockDB(t)
	dir := NewActorDirectory(db)

	cols := []string{"address", "actor_id", "actor_type", "is_exchange_or_mm", "entity_id", "owner_id",
		"community_id", "infrastructure_id", "connectivity", "history"}
	rows := sqlmock.NewRows(cols).AddRow(
		"0xabc", "binance-hot-1", "exchange", true, "binance", "binance", "", "", 0.9, 0.8)
	mock.ExpectQuery("SELECT (.|\n)*FROM actor_directory").WillReturnRows(rows)

	err := dir.Refresh(context.Background())
	require.NoError(t, err)

	info := dir.Resolve("0xabc")
	assert.Equal(t, "binance-hot-1", info.ActorID)
	assert.Equal(t, graph.ActorExchange, info.Type)
	assert.True(t, info.IsExchangeOrMM)
}

func TestActorDirectory_Resolve_UnlabeledDefault(t *testing.T) {
	db, _ := newMockDB(t)
	dir := NewActorDirectory(db)

	info := dir.Resolve("0xunknown")
	assert.Equal(t, "0xunknown", info.ActorID)
	assert.False(t, info.IsExchangeOrMM)
}
