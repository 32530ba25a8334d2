package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalrelay/src/model"
	"signalrelay/src/venue"
)

type fakeSession struct {
	mu      sync.Mutex
	calls   int
	account venue.Account
	symbols map[string]venue.Symbol
	ticks   map[string]venue.Tick
	result  venue.OrderResult
	err     error
	orders  []venue.OrderRequest
	panicOn string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		account: venue.Account{Balance: 10000, Currency: "USD"},
		symbols: map[string]venue.Symbol{
			"EURUSD": {Name: "EURUSD", Digits: 5, VolumeMin: 0.01, VolumeMax: 100},
		},
		ticks: map[string]venue.Tick{
			"EURUSD": {Bid: 1.1000, Ask: 1.1002},
		},
		result: venue.OrderResult{Code: venue.RetcodeDone, OrderID: 42, Comment: "Request executed"},
	}
}

func (s *fakeSession) touch(op string) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panicOn == op {
		panic("bridge exploded")
	}
}

func (s *fakeSession) AccountSnapshot(ctx context.Context) (venue.Account, error) {
	s.touch("account")
	return s.account, nil
}

func (s *fakeSession) SymbolMetadata(ctx context.Context, symbol string) (venue.Symbol, error) {
	s.touch("symbol")
	sym, ok := s.symbols[symbol]
	if !ok {
		return venue.Symbol{}, fmt.Errorf("%w: %s", venue.ErrUnknownSymbol, symbol)
	}
	return sym, nil
}

func (s *fakeSession) Tick(ctx context.Context, symbol string) (venue.Tick, error) {
	s.touch("tick")
	tick, ok := s.ticks[symbol]
	if !ok {
		return venue.Tick{}, venue.ErrNoTick
	}
	return tick, nil
}

func (s *fakeSession) SubmitOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	s.touch("order")
	s.orders = append(s.orders, req)
	if s.err != nil {
		return s.result, s.err
	}
	return s.result, nil
}

func (s *fakeSession) Close() error { return nil }

type memTrades struct {
	rows []*model.Trade
	err  error
}

func (m *memTrades) Create(ctx context.Context, trade *model.Trade) error {
	if m.err != nil {
		return m.err
	}
	trade.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, trade)
	return nil
}

type memExceptions struct {
	rows []*model.Exception
}

func (m *memExceptions) Create(ctx context.Context, exc *model.Exception) error {
	m.rows = append(m.rows, exc)
	return nil
}

func frame(name, message string) []byte {
	return []byte(fmt.Sprintf(`{"text":{"content":{"p":{"name":%q,"message":%q}}}}`, name, message))
}

func newTestProcessor(t *testing.T) (*Processor, *memTrades, *memExceptions, *logrustest.Hook) {
	t.Helper()
	log, hook := logrustest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	trades := &memTrades{}
	exceptions := &memExceptions{}
	p := NewProcessor(logrus.NewEntry(log), trades, exceptions)
	p.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	p.newID = func() string { return "alert-1" }
	return p, trades, exceptions, hook
}

func strategyS1() *model.Strategy {
	return &model.Strategy{ID: 7, Name: "S1", RiskPercentage: 1, Commission: 4, Status: model.StrategyStatusActive}
}

func TestHandleBuyExecutesAndRecords(t *testing.T) {
	p, trades, exceptions, _ := newTestProcessor(t)
	session := newFakeSession()

	p.Handle(context.Background(), strategyS1(), session, frame("S1", "BUY EURUSD 20 40"))

	require.Len(t, session.orders, 1)
	req := session.orders[0]
	assert.Equal(t, venue.SideBuy, req.Side)
	assert.Equal(t, "EURUSD", req.Symbol)
	assert.Equal(t, 4.55, req.Volume)
	assert.Equal(t, 1.1002, req.Price)
	assert.InDelta(t, 1.1000, req.StopLoss, 1e-9)
	assert.InDelta(t, 1.1006, req.TakeProfit, 1e-9)
	assert.Equal(t, venue.DefaultDeviation, req.Deviation)
	assert.Equal(t, venue.DefaultMagic, req.Magic)
	assert.Equal(t, "TradingView Alert: S1", req.Comment)
	assert.Equal(t, venue.TimeInForceGTC, req.TimeInForce)
	assert.Equal(t, venue.FillingIOC, req.Filling)

	require.Len(t, trades.rows, 1)
	trade := trades.rows[0]
	assert.Equal(t, uint(7), trade.StrategyID)
	assert.Equal(t, uint64(42), trade.VenueOrderID)
	assert.Equal(t, model.TradeActionBuy, trade.Action)
	assert.Equal(t, 4.55, trade.Volume)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), trade.Timestamp)
	assert.Empty(t, exceptions.rows)
}

func TestHandleSellPricesOffBid(t *testing.T) {
	p, trades, _, _ := newTestProcessor(t)
	session := newFakeSession()

	p.Handle(context.Background(), strategyS1(), session, frame("S1", "sell eurusd 20 40"))

	require.Len(t, session.orders, 1)
	req := session.orders[0]
	assert.Equal(t, 1.1000, req.Price)
	assert.InDelta(t, 1.1002, req.StopLoss, 1e-9)
	assert.InDelta(t, 1.0996, req.TakeProfit, 1e-9)
	require.Len(t, trades.rows, 1)
	assert.Equal(t, model.TradeActionSell, trades.rows[0].Action)
}

func TestHandleNameMismatch(t *testing.T) {
	p, trades, _, hook := newTestProcessor(t)
	session := newFakeSession()

	p.Handle(context.Background(), strategyS1(), session, frame("S2", "buy eurusd 20 40"))
	p.Handle(context.Background(), strategyS1(), session, frame("s1", "buy eurusd 20 40"))

	assert.Equal(t, 0, session.calls)
	assert.Empty(t, trades.rows)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestHandleMalformedInstruction(t *testing.T) {
	p, trades, _, _ := newTestProcessor(t)
	session := newFakeSession()

	for _, text := range []string{"long eurusd 20 40", "buy eurusd 20", "buy eurusd x 40"} {
		p.Handle(context.Background(), strategyS1(), session, frame("S1", text))
	}
	p.Handle(context.Background(), strategyS1(), session, []byte(`{"type":"pong"}`))
	p.Handle(context.Background(), strategyS1(), session, []byte(`garbage`))

	assert.Equal(t, 0, session.calls)
	assert.Empty(t, trades.rows)
}

func TestHandleOrderRejected(t *testing.T) {
	p, trades, exceptions, hook := newTestProcessor(t)
	session := newFakeSession()
	session.result = venue.OrderResult{Code: 10019, Comment: "No money"}
	session.err = &venue.OrderError{Code: 10019, Message: "No money"}

	p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy eurusd 20 40"))

	assert.Empty(t, trades.rows)
	require.Len(t, exceptions.rows, 1)
	exc := exceptions.rows[0]
	require.NotNil(t, exc.StrategyID)
	assert.Equal(t, uint(7), *exc.StrategyID)
	assert.Equal(t, model.ExceptionLevelError, exc.Level)
	assert.Contains(t, exc.Context, "TRADE_RETCODE_NO_MONEY")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, 10019, entry.Data["retcode"])
}

func TestHandleTransportFailureWritesNothing(t *testing.T) {
	p, trades, exceptions, _ := newTestProcessor(t)
	session := newFakeSession()
	session.err = venue.ErrTransport

	p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy eurusd 20 40"))

	assert.Empty(t, trades.rows)
	assert.Empty(t, exceptions.rows)
}

func TestHandleSizingFailures(t *testing.T) {
	t.Run("non-positive balance", func(t *testing.T) {
		p, trades, _, _ := newTestProcessor(t)
		session := newFakeSession()
		session.account.Balance = 0

		p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy eurusd 20 40"))

		assert.Empty(t, session.orders)
		assert.Empty(t, trades.rows)
	})

	t.Run("no conversion pair", func(t *testing.T) {
		p, trades, _, _ := newTestProcessor(t)
		session := newFakeSession()
		session.account.Currency = "CHF"

		p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy eurusd 20 40"))

		assert.Empty(t, session.orders)
		assert.Empty(t, trades.rows)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		p, trades, _, _ := newTestProcessor(t)
		session := newFakeSession()

		p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy xaueur 20 40"))

		assert.Empty(t, session.orders)
		assert.Empty(t, trades.rows)
	})

	t.Run("recording fails", func(t *testing.T) {
		p, trades, _, _ := newTestProcessor(t)
		trades.err = errors.New("disk full")
		session := newFakeSession()

		p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy eurusd 20 40"))

		assert.Len(t, session.orders, 1)
		assert.Empty(t, trades.rows)
	})
}

func TestHandleConversionReversePair(t *testing.T) {
	p, trades, _, _ := newTestProcessor(t)
	session := newFakeSession()
	session.account.Currency = "EUR"
	session.symbols["GBPUSD"] = venue.Symbol{Name: "GBPUSD", Digits: 5, VolumeMin: 0.01, VolumeMax: 100}
	session.ticks["GBPUSD"] = venue.Tick{Bid: 1.2500, Ask: 1.2502}
	session.ticks["EURUSD"] = venue.Tick{Bid: 1.2499, Ask: 1.25}

	p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy gbpusd 20 40"))

	require.Len(t, session.orders, 1)
	// pip value 1 / 1.25 = 0.8, 100 / (20*0.8 + 2) = 5.555...
	assert.Equal(t, 5.56, session.orders[0].Volume)
	require.Len(t, trades.rows, 1)

	p2, _, _, _ := newTestProcessor(t)
	reverse := newFakeSession()
	reverse.account.Currency = "JPY"
	reverse.symbols = map[string]venue.Symbol{
		"EURUSD": {Name: "EURUSD", Digits: 5, VolumeMin: 0.01, VolumeMax: 100},
		"USDJPY": {Name: "USDJPY", Digits: 3, VolumeMin: 0.01, VolumeMax: 100},
	}
	reverse.ticks["USDJPY"] = venue.Tick{Bid: 150.00, Ask: 150.02}
	reverse.account.Balance = 1000000

	p2.Handle(context.Background(), strategyS1(), reverse, frame("S1", "buy eurusd 20 40"))

	require.Len(t, reverse.orders, 1)
	// rate 1/150, pip value 150 JPY, 10000 / (20*150 + 2) = 3.331
	assert.Equal(t, 3.33, reverse.orders[0].Volume)
}

func TestHandleRecoversFromPanic(t *testing.T) {
	p, trades, _, hook := newTestProcessor(t)
	session := newFakeSession()
	session.panicOn = "tick"

	assert.NotPanics(t, func() {
		p.Handle(context.Background(), strategyS1(), session, frame("S1", "buy eurusd 20 40"))
	})
	assert.Empty(t, trades.rows)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
