package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalrelay/src/model"
)

func TestTradeRepositoryListByStrategySQL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&TradeRepository{}).WithDB(db)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "trades" WHERE strategy_id = $1 ORDER BY timestamp ASC, id ASC LIMIT $2`)).
		WithArgs(uint(3), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "strategy_id", "symbol", "action", "volume", "timestamp"}).
			AddRow(1, 3, "EURUSD", "BUY", 4.55, ts).
			AddRow(2, 3, "EURUSD", "SELL", 1.00, ts.Add(time.Minute)))

	got, err := repo.ListByStrategy(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4.55, got[0].Volume)
	assert.Equal(t, model.TradeActionSell, got[1].Action)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepositoryOrdersByTimestamp(t *testing.T) {
	db := newSQLiteDB(t)
	strategies := (&StrategyRepository{}).WithDB(db)
	trades := (&TradeRepository{}).WithDB(db)
	ctx := context.Background()

	s := sampleStrategy("S1")
	require.NoError(t, strategies.Create(ctx, s))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		require.NoError(t, trades.Create(ctx, &model.Trade{
			StrategyID:   s.ID,
			VenueOrderID: uint64(100 + i),
			Symbol:       "EURUSD",
			Action:       model.TradeActionBuy,
			Volume:       1,
			Price:        1.1,
			Timestamp:    base.Add(offset),
		}))
	}

	got, err := trades.ListByStrategy(ctx, s.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{101, 102, 100}, []uint64{got[0].VenueOrderID, got[1].VenueOrderID, got[2].VenueOrderID})

	limited, err := trades.ListByStrategy(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestExceptionRepositoryCreateAndList(t *testing.T) {
	db := newSQLiteDB(t)
	repo := (&ExceptionRepository{}).WithDB(db)
	ctx := context.Background()

	sid := uint(7)
	for _, msg := range []string{"first", "second"} {
		require.NoError(t, repo.Create(ctx, &model.Exception{
			Service:    "signal_relay",
			Module:     "alert_processor",
			Method:     "SubmitOrder",
			StrategyID: &sid,
			Message:    msg,
			Level:      model.ExceptionLevelError,
		}))
	}

	got, err := repo.ListByStrategy(ctx, sid, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Message)

	none, err := repo.ListByStrategy(ctx, 8, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
