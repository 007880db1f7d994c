package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestTransferSource_List_OrdersByTimestamp(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransferSource(db)

	cols := []string{"chain", "tx_hash", "log_index", "from_address", "to_address", "asset_address",
		"amount_raw", "amount_usd", "ts", "from_attribution", "to_attribution"}
	rows := sqlmock.NewRows(cols).AddRow(
		"ethereum", "0xhash1", 0, "0xfrom", "0xto", "0xasset", "1000000", 500.0, time.Now(), "verified", "")

	mock.ExpectQuery("SELECT (.|\n)*FROM transfers(.|\n)*ORDER BY ts ASC").WillReturnRows(rows)

	out, err := repo.List(context.Background(), "ethereum", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "0xhash1", out[0].TxHash)
}
