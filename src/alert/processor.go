package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"signalrelay/src/model"
	"signalrelay/src/risk"
	"signalrelay/src/venue"
)

const (
	commentPrefix = "TradingView Alert: "
	serviceName   = "signal_relay"
	moduleName    = "alert_processor"
)

type TradeRecorder interface {
	Create(ctx context.Context, trade *model.Trade) error
}

type ExceptionRecorder interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Processor turns stream frames into venue orders. It holds no per-strategy state,
// so one instance serves every stream client; the venue session comes with each call.
type Processor struct {
	logger     *logrus.Entry
	trades     TradeRecorder
	exceptions ExceptionRecorder
	now        func() time.Time
	newID      func() string
}

// NewProcessor builds a processor. exceptions may be nil.
func NewProcessor(logger *logrus.Entry, trades TradeRecorder, exceptions ExceptionRecorder) *Processor {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Processor{
		logger:     logger,
		trades:     trades,
		exceptions: exceptions,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Handle processes one raw frame for strat. Every failure is logged and swallowed;
// a Trade row is written only after the venue confirms the order.
func (p *Processor) Handle(ctx context.Context, strat *model.Strategy, session venue.Session, raw []byte) {
	log := p.logger.WithFields(logrus.Fields{
		"strategy_id": strat.ID,
		"strategy":    strat.Name,
		"alert_id":    p.newID(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("%v", r)).Error("Panic while processing alert, alert dropped")
		}
	}()

	a, err := Decode(raw)
	if err != nil {
		log.WithError(err).Debug("Ignoring stream message without alert")
		return
	}

	log = log.WithField("alert_name", a.Name)
	log.WithField("alert_message", a.Instruction).Info("Alert received")

	if a.Name != strat.Name {
		log.Warn("Alert name does not match strategy name, ignoring alert")
		return
	}

	ins, err := ParseInstruction(a.Instruction)
	if err != nil {
		log.WithError(err).Warn("Malformed alert instruction, skipping")
		return
	}
	log = log.WithFields(logrus.Fields{"symbol": ins.Symbol, "action": ins.Action})

	if session == nil {
		log.Error("No venue session available, skipping trade")
		return
	}

	req, err := p.buildOrder(ctx, strat, session, ins, a.Name)
	if err != nil {
		log.WithError(err).Error("Failed to prepare order, skipping trade")
		return
	}

	result, err := session.SubmitOrder(ctx, req)
	if err != nil {
		p.orderFailed(ctx, log, strat, req, err)
		return
	}

	trade := &model.Trade{
		StrategyID:   strat.ID,
		VenueOrderID: result.OrderID,
		Symbol:       req.Symbol,
		Action:       strings.ToUpper(string(req.Side)),
		Volume:       req.Volume,
		Price:        req.Price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Profit:       result.Profit,
		Timestamp:    p.now().UTC(),
	}

	log.WithFields(logrus.Fields{
		"order":  result.OrderID,
		"volume": req.Volume,
		"price":  req.Price,
		"sl":     req.StopLoss,
		"tp":     req.TakeProfit,
	}).Info("Trade executed successfully")

	if err := p.trades.Create(ctx, trade); err != nil {
		log.WithError(err).WithField("order", result.OrderID).Error("Failed to record executed trade")
		return
	}
	log.WithField("trade_id", trade.ID).Info("Trade logged successfully")
}

// buildOrder sizes the position and prices entry, stop loss and take profit off the live tick.
func (p *Processor) buildOrder(ctx context.Context, strat *model.Strategy, session venue.Session, ins Instruction, alertName string) (venue.OrderRequest, error) {
	account, err := session.AccountSnapshot(ctx)
	if err != nil {
		return venue.OrderRequest{}, err
	}

	sym, err := session.SymbolMetadata(ctx, ins.Symbol)
	if err != nil {
		return venue.OrderRequest{}, err
	}

	var conversion *risk.ConversionQuote
	if risk.NeedsConversion(account.Currency, ins.Symbol) {
		conversion, err = p.conversionQuote(ctx, session, account.Currency, risk.QuoteCurrency(ins.Symbol))
		if err != nil {
			return venue.OrderRequest{}, err
		}
	}

	sizing, err := risk.ComputeVolume(risk.SizingInput{
		Balance:         account.Balance,
		RiskPercentage:  strat.RiskPercentage,
		StopLossPips:    ins.StopLossPips,
		Commission:      strat.Commission,
		Symbol:          ins.Symbol,
		Digits:          sym.Digits,
		VolumeMin:       sym.VolumeMin,
		VolumeMax:       sym.VolumeMax,
		AccountCurrency: account.Currency,
		Conversion:      conversion,
	})
	if err != nil {
		return venue.OrderRequest{}, err
	}

	tick, err := session.Tick(ctx, ins.Symbol)
	if err != nil {
		return venue.OrderRequest{}, err
	}

	pip := decimal.New(1, -sym.Digits)
	slDist := decimal.NewFromFloat(ins.StopLossPips).Mul(pip)
	tpDist := decimal.NewFromFloat(ins.TakeProfitPips).Mul(pip)

	var price, sl, tp decimal.Decimal
	if ins.Action == venue.SideBuy {
		price = decimal.NewFromFloat(tick.Ask)
		sl = price.Sub(slDist)
		tp = price.Add(tpDist)
	} else {
		price = decimal.NewFromFloat(tick.Bid)
		sl = price.Add(slDist)
		tp = price.Sub(tpDist)
	}

	return venue.OrderRequest{
		Side:        ins.Action,
		Symbol:      ins.Symbol,
		Volume:      sizing.Volume.InexactFloat64(),
		Price:       price.InexactFloat64(),
		StopLoss:    sl.Round(sym.Digits).InexactFloat64(),
		TakeProfit:  tp.Round(sym.Digits).InexactFloat64(),
		Deviation:   venue.DefaultDeviation,
		Magic:       venue.DefaultMagic,
		Comment:     commentPrefix + alertName,
		TimeInForce: venue.TimeInForceGTC,
		Filling:     venue.FillingIOC,
	}, nil
}

// conversionQuote looks up the direct account+quote pair, then the reverse one.
// It returns (nil, nil) when neither exists and lets the sizer reject the alert.
func (p *Processor) conversionQuote(ctx context.Context, session venue.Session, accountCurrency, quoteCurrency string) (*risk.ConversionQuote, error) {
	direct, reverse := risk.ConversionPairs(accountCurrency, quoteCurrency)

	for _, pair := range []struct {
		symbol  string
		reverse bool
	}{{direct, false}, {reverse, true}} {
		if _, err := session.SymbolMetadata(ctx, pair.symbol); err != nil {
			continue
		}
		tick, err := session.Tick(ctx, pair.symbol)
		if err != nil {
			return nil, err
		}
		return &risk.ConversionQuote{Symbol: pair.symbol, Reverse: pair.reverse, Bid: tick.Bid, Ask: tick.Ask}, nil
	}

	p.logger.WithFields(logrus.Fields{"direct": direct, "reverse": reverse}).Error("Neither conversion pair found on the venue")
	return nil, nil
}

func (p *Processor) orderFailed(ctx context.Context, log *logrus.Entry, strat *model.Strategy, req venue.OrderRequest, err error) {
	var orderErr *venue.OrderError
	if !errors.As(err, &orderErr) {
		log.WithError(err).Error("Failed to submit order to venue")
		return
	}

	log.WithFields(logrus.Fields{
		"retcode": orderErr.Code,
		"comment": orderErr.Message,
	}).Error("Failed to execute trade")

	if p.exceptions == nil {
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"retcode":      orderErr.Code,
		"retcode_text": venue.RetcodeText(orderErr.Code),
		"symbol":       req.Symbol,
		"side":         req.Side,
		"volume":       req.Volume,
		"price":        req.Price,
	})
	strategyID := strat.ID
	exc := &model.Exception{
		Service:    serviceName,
		Module:     moduleName,
		Method:     "SubmitOrder",
		StrategyID: &strategyID,
		Message:    orderErr.Error(),
		Level:      model.ExceptionLevelError,
		Context:    string(payload),
	}
	if err := p.exceptions.Create(ctx, exc); err != nil {
		log.WithError(err).Error("Failed to record order rejection")
	}
}
