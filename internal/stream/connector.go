package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/metrics"
)

// ErrUnauthorized is reported when the remote refuses the session token. The
// connector does not reconnect after it.
var ErrUnauthorized = errors.New("stream: token rejected")

// Handler receives decoded events one at a time, in arrival order.
type Handler func(ctx context.Context, ev domain.StatusEvent)

type Options struct {
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	HandshakeTimeout time.Duration

	// OnConnected runs on the reader goroutine each time a connection becomes
	// live, before any frame of that connection is delivered.
	OnConnected func(ctx context.Context, reconnect bool)
	// OnError receives every connection failure.
	OnError func(err error)
}

type Connector struct {
	url     string
	opts    Options
	dialer  *websocket.Dialer
	metrics *metrics.Registry
	logger  *zap.Logger
}

func NewConnector(streamURL string, opts Options, m *metrics.Registry, logger *zap.Logger) *Connector {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Connector{
		url:  streamURL,
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		metrics: m,
		logger:  logger.With(zap.String("component", "stream")),
	}
}

// Handle is one live subscription. Close releases it.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

// Close stops the reconnect loop, closes the socket and waits for the reader
// goroutine to exit. Calling it again is a no-op.
func (h *Handle) Close() {
	h.shutdown()
	<-h.done
}

// Done is closed once the reader goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) shutdown() {
	h.once.Do(func() {
		h.cancel()
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.conn != nil {
			_ = h.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = h.conn.Close()
		}
	})
}

// attach records c as the live connection. It reports false, and closes c,
// when the handle is already shutting down.
func (h *Handle) attach(c *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		if c != nil {
			_ = c.Close()
		}
		return false
	}
	h.conn = c
	return true
}

// Connect opens the stream for token and delivers events to handler until the
// handle is closed. The first dial is synchronous: a rejected token returns
// ErrUnauthorized, any other failure is reported through OnError and retried
// in the background.
func (c *Connector) Connect(ctx context.Context, token string, handler Handler) (*Handle, error) {
	endpoint, err := c.endpoint(token)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial(ctx, endpoint)
	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}
	if err != nil {
		c.report(err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{ctx: loopCtx, cancel: cancel, done: make(chan struct{})}
	h.attach(conn)

	go func() {
		<-loopCtx.Done()
		h.shutdown()
	}()
	go c.run(loopCtx, h, endpoint, conn, handler)
	return h, nil
}

func (c *Connector) endpoint(token string) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", apperrors.NewInternalError("parsing stream url", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Connector) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}
		return nil, apperrors.NewNetworkError("dialing stream", statusOf(resp), err)
	}
	return conn, nil
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func (c *Connector) run(ctx context.Context, h *Handle, endpoint string, conn *websocket.Conn, handler Handler) {
	defer close(h.done)
	defer c.metrics.StreamConnected.Set(0)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialBackoff
	b.MaxInterval = c.opts.MaxBackoff
	b.MaxElapsedTime = 0

	reconnect := conn == nil
	for {
		if conn == nil {
			wait := b.NextBackOff()
			c.logger.Info("reconnecting", zap.Duration("in", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			var err error
			conn, err = c.dial(ctx, endpoint)
			if errors.Is(err, ErrUnauthorized) {
				c.report(err)
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.report(err)
				continue
			}
			if !h.attach(conn) {
				return
			}
			c.metrics.StreamReconnect.Inc()
		}
		b.Reset()

		c.metrics.StreamConnected.Set(1)
		c.logger.Info("stream connected", zap.Bool("reconnect", reconnect))
		if c.opts.OnConnected != nil {
			c.opts.OnConnected(ctx, reconnect)
		}

		err := c.read(ctx, conn, handler)
		c.metrics.StreamConnected.Set(0)
		h.attach(nil)
		_ = conn.Close()
		conn = nil
		reconnect = true

		if ctx.Err() != nil {
			return
		}
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			c.report(fmt.Errorf("%w: %v", ErrUnauthorized, err))
			return
		}
		c.report(apperrors.NewNetworkError("stream connection lost", 0, err))
	}
}

// read delivers frames until the connection fails.
func (c *Connector) read(ctx context.Context, conn *websocket.Conn, handler Handler) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.metrics.StreamFrames.Inc()

		ev, err := dto.DecodeStreamFrame(data)
		if err == nil {
			err = ev.Validate(domain.StatusSet{})
		}
		if err != nil {
			c.metrics.EventsDropped.WithLabelValues("malformed").Inc()
			c.logger.Warn("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}

		handler(ctx, ev)
	}
}

func (c *Connector) report(err error) {
	c.logger.Warn("stream failure", zap.Error(err))
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}
