package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signalrelay/src/model"
)

func TestStrategiesOmitsPassword(t *testing.T) {
	var buf bytes.Buffer
	Strategies(&buf, []model.Strategy{{
		ID:             1,
		Name:           "EURUSD scalper",
		Status:         model.StrategyStatusActive,
		AccountID:      "5012345",
		Password:       "enc:v1:sealed",
		Server:         "Demo-Server",
		RiskPercentage: 1.5,
		WebsocketURL:   "wss://alerts.example/ws",
	}}, map[uint]int64{1: 4242})

	out := buf.String()
	assert.Contains(t, out, "EURUSD scalper")
	assert.Contains(t, out, "Active")
	assert.Contains(t, out, "wss://alerts.example/ws")
	assert.Contains(t, out, "4242")
	assert.NotContains(t, out, "enc:v1:sealed")
}

func TestTradesRendersRows(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	Trades(&buf, []model.Trade{
		{ID: 1, VenueOrderID: 777, Symbol: "EURUSD", Action: model.TradeActionBuy, Volume: 4.55, Price: 1.1003, Timestamp: ts},
		{ID: 2, VenueOrderID: 778, Symbol: "GBPUSD", Action: model.TradeActionSell, Volume: 1, Price: 1.27, Timestamp: ts.Add(time.Minute)},
	})

	out := buf.String()
	assert.Contains(t, out, "2024-03-01T12:00:00Z")
	assert.Contains(t, out, "777")
	assert.Contains(t, out, "GBPUSD")
	assert.Contains(t, out, "SELL")
	assert.Contains(t, out, "4.55")
}
