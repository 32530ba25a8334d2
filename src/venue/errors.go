package venue

import (
	"errors"
	"fmt"
)

var (
	ErrInit          = errors.New("venue: initialization failed")
	ErrAuth          = errors.New("venue: authorization rejected")
	ErrNoAccountInfo = errors.New("venue: account info unavailable")
	ErrUnknownSymbol = errors.New("venue: unknown symbol")
	ErrNoTick        = errors.New("venue: no tick")
	ErrTransport     = errors.New("venue: transport failure")
	ErrClosed        = errors.New("venue: session closed")
)

// OrderError is returned by SubmitOrder whenever the venue answers with anything
// but RetcodeDone, partial fills included.
type OrderError struct {
	Code    int
	Message string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("venue: order rejected: %d %s - %s", e.Code, RetcodeText(e.Code), e.Message)
}

// RetcodeDone is the only return code that counts as a successful submission.
const RetcodeDone = 10009

// Retcodes maps trade server return codes to their names.
var Retcodes = map[int]string{
	10004: "TRADE_RETCODE_REQUOTE",
	10006: "TRADE_RETCODE_REJECT",
	10007: "TRADE_RETCODE_CANCEL",
	10008: "TRADE_RETCODE_PLACED",
	10009: "TRADE_RETCODE_DONE",
	10010: "TRADE_RETCODE_DONE_PARTIAL",
	10011: "TRADE_RETCODE_ERROR",
	10012: "TRADE_RETCODE_TIMEOUT",
	10013: "TRADE_RETCODE_INVALID",
	10014: "TRADE_RETCODE_INVALID_VOLUME",
	10015: "TRADE_RETCODE_INVALID_PRICE",
	10016: "TRADE_RETCODE_INVALID_STOPS",
	10017: "TRADE_RETCODE_TRADE_DISABLED",
	10018: "TRADE_RETCODE_MARKET_CLOSED",
	10019: "TRADE_RETCODE_NO_MONEY",
	10020: "TRADE_RETCODE_PRICE_CHANGED",
	10021: "TRADE_RETCODE_PRICE_OFF",
	10022: "TRADE_RETCODE_INVALID_EXPIRATION",
	10023: "TRADE_RETCODE_ORDER_CHANGED",
	10024: "TRADE_RETCODE_TOO_MANY_REQUESTS",
	10025: "TRADE_RETCODE_NO_CHANGES",
	10026: "TRADE_RETCODE_SERVER_DISABLES_AT",
	10027: "TRADE_RETCODE_CLIENT_DISABLES_AT",
	10028: "TRADE_RETCODE_LOCKED",
	10029: "TRADE_RETCODE_FROZEN",
	10030: "TRADE_RETCODE_INVALID_FILL",
	10031: "TRADE_RETCODE_CONNECTION",
	10032: "TRADE_RETCODE_ONLY_REAL",
	10033: "TRADE_RETCODE_LIMIT_ORDERS",
	10034: "TRADE_RETCODE_LIMIT_VOLUME",
	10035: "TRADE_RETCODE_INVALID_ORDER",
	10036: "TRADE_RETCODE_POSITION_CLOSED",
	10038: "TRADE_RETCODE_INVALID_CLOSE_VOLUME",
	10039: "TRADE_RETCODE_CLOSE_ORDER_EXIST",
	10040: "TRADE_RETCODE_LIMIT_POSITIONS",
	10041: "TRADE_RETCODE_REJECT_CANCEL",
	10042: "TRADE_RETCODE_LONG_ONLY",
	10043: "TRADE_RETCODE_SHORT_ONLY",
	10044: "TRADE_RETCODE_CLOSE_ONLY",
	10045: "TRADE_RETCODE_FIFO_CLOSE",
}

// RetcodeText returns a readable name for a return code.
// Unknown codes come back as UNKNOWN_RETCODE_<code>.
func RetcodeText(code int) string {
	if msg, ok := Retcodes[code]; ok {
		return msg
	}
	return fmt.Sprintf("UNKNOWN_RETCODE_%d", code)
}
