// Venue bridge client.
// The terminal SDK only runs next to the terminal itself, so the relay talks to a
// small bridge process over HTTP. One bridge session per strategy.
package venue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const sessionHeader = "X-Bridge-Session"

type bridgeStatus struct {
	OK        bool   `json:"ok"`
	Session   string `json:"session,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BridgeOpener opens sessions against a venue bridge.
type BridgeOpener struct {
	baseURL string
	timeout time.Duration
	// transport is swapped in tests
	transport http.RoundTripper
}

func NewBridgeOpener(baseURL string, timeout time.Duration) *BridgeOpener {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:18812"
		logger.WithField("base_url", baseURL).Warn("No venue bridge URL provided, using default")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BridgeOpener{baseURL: baseURL, timeout: timeout}
}

func (o *BridgeOpener) newHTTP() *resty.Client {
	c := resty.New().
		SetBaseURL(o.baseURL).
		SetTimeout(o.timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	if o.transport != nil {
		c.SetTransport(o.transport)
	}
	return c
}

// Open initializes the terminal found in creds.Directory and logs into the account.
// Transport or init failures return ErrInit, rejected credentials ErrAuth.
func (o *BridgeOpener) Open(ctx context.Context, creds Credentials) (Session, error) {
	s := &bridgeSession{http: o.newHTTP(), account: creds.AccountID}

	var initResp bridgeStatus
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"path": creds.Directory}).
		SetResult(&initResp).
		SetError(&initResp).
		Post("/initialize")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}
	if resp.IsError() || !initResp.OK {
		return nil, fmt.Errorf("%w: status %d code %d %s", ErrInit, resp.StatusCode(), initResp.ErrorCode, initResp.Error)
	}
	s.token = initResp.Session

	login, err := strconv.ParseInt(creds.AccountID, 10, 64)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: account id %q is not numeric", ErrAuth, creds.AccountID)
	}

	var loginResp bridgeStatus
	resp, err = s.request(ctx).
		SetBody(map[string]any{
			"login":    login,
			"password": creds.Password,
			"server":   creds.Server,
		}).
		SetResult(&loginResp).
		SetError(&loginResp).
		Post("/login")
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %v", ErrInit, err)
	}
	if resp.IsError() || !loginResp.OK {
		_ = s.Close()
		return nil, fmt.Errorf("%w: account %s on %s: code %d %s", ErrAuth, creds.AccountID, creds.Server, loginResp.ErrorCode, loginResp.Error)
	}

	logger.WithFields(logger.Fields{
		"account": creds.AccountID,
		"server":  creds.Server,
	}).Info("Connected to venue account")

	return s, nil
}

type bridgeSession struct {
	http    *resty.Client
	token   string
	account string

	mu     sync.Mutex
	closed bool
}

func (s *bridgeSession) request(ctx context.Context) *resty.Request {
	req := s.http.R().SetContext(ctx)
	if s.token != "" {
		req.SetHeader(sessionHeader, s.token)
	}
	return req
}

func (s *bridgeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *bridgeSession) AccountSnapshot(ctx context.Context) (Account, error) {
	if s.isClosed() {
		return Account{}, ErrClosed
	}
	var acc Account
	resp, err := s.request(ctx).SetResult(&acc).Get("/account")
	if err != nil {
		return Account{}, fmt.Errorf("%w: %w: %v", ErrNoAccountInfo, ErrTransport, err)
	}
	if resp.IsError() || acc.Currency == "" {
		return Account{}, fmt.Errorf("%w: status %d", ErrNoAccountInfo, resp.StatusCode())
	}
	return acc, nil
}

func (s *bridgeSession) SymbolMetadata(ctx context.Context, symbol string) (Symbol, error) {
	if s.isClosed() {
		return Symbol{}, ErrClosed
	}
	var sym Symbol
	resp, err := s.request(ctx).SetResult(&sym).Get("/symbols/" + url.PathEscape(symbol))
	if err != nil {
		return Symbol{}, fmt.Errorf("%w: %s: %w: %v", ErrUnknownSymbol, symbol, ErrTransport, err)
	}
	if resp.IsError() {
		return Symbol{}, fmt.Errorf("%w: %s: status %d", ErrUnknownSymbol, symbol, resp.StatusCode())
	}
	if sym.VolumeMax <= 0 || sym.VolumeMin > sym.VolumeMax {
		return Symbol{}, fmt.Errorf("%w: %s: volume range [%v, %v]", ErrUnknownSymbol, symbol, sym.VolumeMin, sym.VolumeMax)
	}
	if sym.Name == "" {
		sym.Name = symbol
	}
	return sym, nil
}

func (s *bridgeSession) Tick(ctx context.Context, symbol string) (Tick, error) {
	if s.isClosed() {
		return Tick{}, ErrClosed
	}
	var tick Tick
	resp, err := s.request(ctx).SetResult(&tick).Get("/symbols/" + url.PathEscape(symbol) + "/tick")
	if err != nil {
		return Tick{}, fmt.Errorf("%w: %s: %w: %v", ErrNoTick, symbol, ErrTransport, err)
	}
	if resp.IsError() || (tick.Bid == 0 && tick.Ask == 0) {
		return Tick{}, fmt.Errorf("%w: %s: status %d", ErrNoTick, symbol, resp.StatusCode())
	}
	return tick, nil
}

// SubmitOrder sends one market order. Anything but RetcodeDone is an *OrderError.
func (s *bridgeSession) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if s.isClosed() {
		return OrderResult{}, ErrClosed
	}
	var result OrderResult
	resp, err := s.request(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&result).
		Post("/orders")
	if err != nil {
		return OrderResult{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.IsError() && result.Code == 0 {
		return OrderResult{}, fmt.Errorf("%w: order endpoint status %d", ErrTransport, resp.StatusCode())
	}
	if result.Code != RetcodeDone {
		return result, &OrderError{Code: result.Code, Message: result.Comment}
	}
	return result, nil
}

// Close shuts the bridge session down. Calling it more than once is a no-op.
func (s *bridgeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.token == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := s.request(ctx).Post("/shutdown")
	if err != nil {
		return fmt.Errorf("%w: shutdown: %v", ErrTransport, err)
	}
	if resp.IsError() {
		return errors.New("venue: shutdown returned status " + strconv.Itoa(resp.StatusCode()))
	}
	logger.WithField("account", s.account).Info("Venue session closed")
	return nil
}
