package risk

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrNonPositiveBalance = errors.New("risk: account balance is zero or negative")
	ErrNoConversionRate   = errors.New("risk: no conversion rate between account and quote currency")
	ErrInvalidDenominator = errors.New("risk: invalid denominator for volume calculation")
)

var (
	lotUnits    = decimal.NewFromInt(100000)
	hundred     = decimal.NewFromInt(100)
	two         = decimal.NewFromInt(2)
	volumeScale = int32(2)
)

// ConversionQuote is the tick of the pair that converts quote currency into
// account currency. Reverse is set when the pair is quote+account.
type ConversionQuote struct {
	Symbol  string
	Reverse bool
	Bid     float64
	Ask     float64
}

type SizingInput struct {
	Balance         float64
	RiskPercentage  float64
	StopLossPips    float64
	Commission      float64
	Symbol          string
	Digits          int32
	VolumeMin       float64
	VolumeMax       float64
	AccountCurrency string
	Conversion      *ConversionQuote
}

// Sizing carries the computed volume and the intermediate figures it came from.
type Sizing struct {
	Volume      decimal.Decimal
	RiskAmount  decimal.Decimal
	PipValue    decimal.Decimal
	Denominator decimal.Decimal
	Clamped     bool
}

// QuoteCurrency is the three letter suffix of a symbol, EURGBP -> GBP.
func QuoteCurrency(symbol string) string {
	s := strings.ToUpper(symbol)
	if len(s) <= 3 {
		return s
	}
	return s[len(s)-3:]
}

// ConversionPairs returns the direct (account+quote) and reverse (quote+account) pair names.
func ConversionPairs(accountCurrency, quoteCurrency string) (direct, reverse string) {
	a, q := strings.ToUpper(accountCurrency), strings.ToUpper(quoteCurrency)
	return a + q, q + a
}

// NeedsConversion reports whether the symbol is quoted in a currency other than the account's.
func NeedsConversion(accountCurrency, symbol string) bool {
	return strings.ToUpper(accountCurrency) != QuoteCurrency(symbol)
}

// ComputeVolume sizes a position so that hitting the stop loss costs RiskPercentage
// of the balance, half the round-turn commission included.
//
// The result is rounded half-to-even to 2 decimals and clamped into [VolumeMin, VolumeMax].
func ComputeVolume(in SizingInput) (Sizing, error) {
	balance := decimal.NewFromFloat(in.Balance)
	if !balance.IsPositive() {
		return Sizing{}, ErrNonPositiveBalance
	}

	riskAmount := balance.Mul(decimal.NewFromFloat(in.RiskPercentage)).Div(hundred)

	pipValue := decimal.New(1, -in.Digits).Mul(lotUnits)
	if NeedsConversion(in.AccountCurrency, in.Symbol) {
		rate, err := conversionRate(in.Conversion)
		if err != nil {
			return Sizing{}, err
		}
		pipValue = pipValue.Div(rate)
	}

	halfCommission := decimal.NewFromFloat(in.Commission).Div(two)
	denominator := decimal.NewFromFloat(in.StopLossPips).Mul(pipValue).Add(halfCommission)
	if !denominator.IsPositive() {
		return Sizing{}, ErrInvalidDenominator
	}

	out := Sizing{
		RiskAmount:  riskAmount,
		PipValue:    pipValue,
		Denominator: denominator,
		Volume:      riskAmount.DivRound(denominator, 16).RoundBank(volumeScale),
	}

	minVol := decimal.NewFromFloat(in.VolumeMin)
	maxVol := decimal.NewFromFloat(in.VolumeMax)
	fields := logger.Fields{"symbol": in.Symbol, "volume": out.Volume.String()}

	switch {
	case out.Volume.LessThan(minVol):
		logger.WithFields(fields).WithField("volume_min", minVol.String()).
			Warn("Calculated volume is below the symbol minimum, adjusting to minimum")
		out.Volume = minVol
		out.Clamped = true
	case out.Volume.GreaterThan(maxVol):
		logger.WithFields(fields).WithField("volume_max", maxVol.String()).
			Warn("Calculated volume is above the symbol maximum, adjusting to maximum")
		out.Volume = maxVol
		out.Clamped = true
	}

	return out, nil
}

// conversionRate is the ask of a direct pair or the inverted bid of a reverse pair.
func conversionRate(q *ConversionQuote) (decimal.Decimal, error) {
	if q == nil {
		return decimal.Zero, ErrNoConversionRate
	}
	if q.Reverse {
		bid := decimal.NewFromFloat(q.Bid)
		if !bid.IsPositive() {
			return decimal.Zero, ErrNoConversionRate
		}
		return decimal.NewFromInt(1).DivRound(bid, 16), nil
	}
	ask := decimal.NewFromFloat(q.Ask)
	if !ask.IsPositive() {
		return decimal.Zero, ErrNoConversionRate
	}
	return ask, nil
}
