package venue

import "context"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

const (
	// DefaultDeviation is the accepted slippage in price steps.
	DefaultDeviation = 20
	// DefaultMagic tags every order placed by the relay.
	DefaultMagic = 234000

	TimeInForceGTC = "gtc"
	FillingIOC     = "ioc"
)

type Credentials struct {
	AccountID string
	Password  string
	Server    string
	Directory string
}

type Account struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

type Symbol struct {
	Name      string  `json:"name"`
	Digits    int32   `json:"digits"`
	VolumeMin float64 `json:"volume_min"`
	VolumeMax float64 `json:"volume_max"`
}

type Tick struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

type OrderRequest struct {
	Side        Side    `json:"side"`
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Price       float64 `json:"price"`
	StopLoss    float64 `json:"sl"`
	TakeProfit  float64 `json:"tp"`
	Deviation   int     `json:"deviation"`
	Magic       int     `json:"magic"`
	Comment     string  `json:"comment"`
	TimeInForce string  `json:"type_time"`
	Filling     string  `json:"type_filling"`
}

type OrderResult struct {
	Code    int     `json:"retcode"`
	OrderID uint64  `json:"order"`
	Profit  float64 `json:"profit"`
	Comment string  `json:"comment"`
}

// Session is one authenticated handle on the venue. Implementations are not
// required to be safe for concurrent use; each stream client owns its own.
// No method retries internally.
type Session interface {
	AccountSnapshot(ctx context.Context) (Account, error)
	SymbolMetadata(ctx context.Context, symbol string) (Symbol, error)
	Tick(ctx context.Context, symbol string) (Tick, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	// Close releases the session. It is idempotent.
	Close() error
}

type Opener interface {
	Open(ctx context.Context, creds Credentials) (Session, error)
}

// OpenerFunc adapts a plain function to the Opener interface.
type OpenerFunc func(ctx context.Context, creds Credentials) (Session, error)

func (f OpenerFunc) Open(ctx context.Context, creds Credentials) (Session, error) {
	return f(ctx, creds)
}
