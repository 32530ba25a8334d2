// Package stream keeps one websocket per active strategy alive and hands every
// inbound frame to an alert handler together with the strategy's venue session.
package stream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"signalrelay/src/model"
	"signalrelay/src/venue"
)

const writeWait = 10 * time.Second

var pingFrame = map[string]string{"type": "ping"}

var errStoppedWhileConnecting = errors.New("stream: stopped while connecting")

// Handler consumes inbound frames. Handle must not block forever; frames of one
// client are handled one at a time in arrival order.
type Handler interface {
	Handle(ctx context.Context, strategy *model.Strategy, session venue.Session, raw []byte)
}

// Dialer is satisfied by *websocket.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// CredentialsFunc resolves the venue login of a strategy, decrypting what needs decrypting.
type CredentialsFunc func(strategy *model.Strategy) (venue.Credentials, error)

type Options struct {
	Config       Config
	Opener       venue.Opener
	Handler      Handler
	Credentials  CredentialsFunc
	Dialer       Dialer
	Logger       *logrus.Entry
	OnTransition TransitionFunc
}

// Client is the stream connection of one strategy.
//
// Lifecycle: Disconnected -> Connecting -> Connected -> Disconnected ... and Stopped once
// Stop is called. A client cannot be restarted; build a new one instead.
type Client struct {
	strategy model.Strategy
	cfg      Config
	opener   venue.Opener
	handler  Handler
	creds    CredentialsFunc
	dialer   Dialer
	log      *logrus.Entry
	hook     TransitionFunc

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   State
	started bool
	stopped bool
	conn    *websocket.Conn
	session venue.Session

	stopOnce sync.Once
}

// NewClient builds a client for a copy of strategy. Opener and Handler are required.
func NewClient(strategy model.Strategy, opts Options) *Client {
	cfg := opts.Config.withDefaults()

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithFields(logrus.Fields{
		"strategy_id": strategy.ID,
		"strategy":    strategy.Name,
		"client_id":   uuid.NewString(),
	})

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec
		}
	}

	creds := opts.Credentials
	if creds == nil {
		creds = PlainCredentials
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		strategy: strategy,
		cfg:      cfg,
		opener:   opts.Opener,
		handler:  opts.Handler,
		creds:    creds,
		dialer:   dialer,
		log:      log,
		hook:     opts.OnTransition,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    StateDisconnected,
	}
}

// PlainCredentials uses the strategy fields as they are.
func PlainCredentials(s *model.Strategy) (venue.Credentials, error) {
	return venue.Credentials{
		AccountID: s.AccountID,
		Password:  s.Password,
		Server:    s.Server,
		Directory: s.Directory,
	}, nil
}

func (c *Client) StrategyID() uint { return c.strategy.ID }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start launches the connection loop. It is a no-op when already started or stopped.
func (c *Client) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.log.WithField("url", c.strategy.WebsocketURL).Info("Starting stream client")
	go c.run()
}

// Stop ends the client for good. It unblocks any dial, read or backoff in progress,
// waits for the loop to exit and closes the venue session. Safe to call repeatedly
// and from several goroutines.
func (c *Client) Stop() {
	c.stopOnce.Do(c.stop)
}

func (c *Client) stop() {
	c.mu.Lock()
	c.stopped = true
	started := c.started
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	if started {
		<-c.done
	}

	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()
	if session != nil {
		if err := session.Close(); err != nil {
			c.log.WithError(err).Warn("Failed to close venue session")
		}
	}

	c.setState(StateStopped)
	c.log.Info("Stream client stopped")
}

func (c *Client) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Client) setState(to State) {
	c.mu.Lock()
	from := c.state
	if from == to || from == StateStopped {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Debug("Stream state changed")
	if c.hook != nil {
		c.hook(c.strategy.ID, from, to)
	}
}

func (c *Client) run() {
	defer close(c.done)

	for {
		if c.ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		err := c.connectAndServe()
		if c.ctx.Err() != nil {
			return
		}
		c.setState(StateDisconnected)

		if err != nil {
			c.log.WithError(err).WithField("retry_in", c.cfg.ReconnectDelay.String()).Warn("Stream connection failed, reconnecting")
		} else {
			c.log.WithField("retry_in", c.cfg.ReconnectDelay.String()).Warn("Stream connection closed, reconnecting")
		}

		if !c.sleepBackoff() {
			return
		}
	}
}

func (c *Client) sleepBackoff() bool {
	timer := time.NewTimer(c.cfg.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ensureSession opens the venue session once and keeps it across reconnects.
func (c *Client) ensureSession() (venue.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		return session, nil
	}

	creds, err := c.creds(&c.strategy)
	if err != nil {
		return nil, fmt.Errorf("resolve venue credentials: %w", err)
	}

	session, err = c.opener.Open(c.ctx, creds)
	if err != nil {
		if session != nil {
			_ = session.Close()
		}
		c.log.WithError(err).Error("Failed to open venue session")
		return nil, fmt.Errorf("open venue session: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = session.Close()
		return nil, errStoppedWhileConnecting
	}
	c.session = session
	c.mu.Unlock()
	return session, nil
}

func (c *Client) connectAndServe() error {
	session, err := c.ensureSession()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(c.ctx, c.strategy.WebsocketURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.strategy.WebsocketURL, err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = conn.Close()
		return errStoppedWhileConnecting
	}
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	c.setState(StateConnected)
	c.log.Info("Stream connection opened")

	readDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeat(conn, readDone)
	}()

	err = c.readLoop(conn, session)

	close(readDone)
	_ = conn.Close()
	wg.Wait()

	if c.isStopped() {
		return nil
	}
	return err
}

// readLoop hands frames to the handler until the connection fails. In-flight alerts
// finish even when Stop cancels the client context.
func (c *Client) readLoop(conn *websocket.Conn, session venue.Session) error {
	handleCtx := context.WithoutCancel(c.ctx)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.handler.Handle(handleCtx, &c.strategy, session, data)
	}
}

// heartbeat pings every HeartbeatInterval. A failed write ends the heartbeat only;
// the read loop notices a dead connection on its own.
func (c *Client) heartbeat(conn *websocket.Conn, readDone <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.isStopped() {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(pingFrame); err != nil {
				c.log.WithError(err).Warn("Failed to send heartbeat")
				return
			}
		}
	}
}
