package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"ordertrack/internal/catalog"
	"ordertrack/internal/config"
	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/infrastructure/pebble"
	"ordertrack/internal/metrics"
	"ordertrack/internal/order"
	"ordertrack/internal/server"
	"ordertrack/internal/session"
	"ordertrack/internal/stream"
	"ordertrack/internal/transport"
)

// App wires the session, transport, stream and engine for one process.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry

	kv        *pebble.Store
	sessions  *session.Store
	auth      *session.Service
	engine    *order.Engine
	connector *stream.Connector
	handler   http.Handler

	mu          sync.Mutex
	handle      *stream.Handle
	streamToken string

	closeOnce sync.Once
	closeErr  error
}

func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	kv, err := pebble.Open(cfg.Session.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewRegistry(),
		kv:      kv,
	}

	a.sessions = session.NewStore(session.NewKVPersister(kv), logger)
	if _, err := a.sessions.Restore(); err != nil {
		_ = kv.Close()
		return nil, err
	}

	client := transport.NewClient(cfg.API.BaseURL, cfg.API.Timeout, a.sessions, cfg.Transport.RetryMaxElapsed, logger)
	a.auth = session.NewService(a.sessions, client, logger)

	catalogCtrl, catalogSvc := catalog.NewModule(client, a.sessions, logger)
	orderCtrl, engine := order.NewModule(client, a.sessions, catalogSvc, cfg, a.metrics, logger)
	a.engine = engine

	a.connector = stream.NewConnector(cfg.Stream.URL, stream.Options{
		InitialBackoff:   cfg.Stream.InitialBackoff,
		MaxBackoff:       cfg.Stream.MaxBackoff,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		OnConnected:      engine.OnStreamConnected,
		OnError:          a.onStreamError,
	}, a.metrics, logger)

	a.sessions.OnClear(func() {
		a.StopSync()
		engine.Reset()
	})

	a.handler = server.NewRouter(
		orderCtrl,
		catalogCtrl,
		session.NewController(a.auth, logger),
		a.metrics,
		a.streamLive,
		logger,
	)

	return a, nil
}

func (a *App) Engine() *order.Engine { return a.engine }

func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Login(ctx context.Context, username, password string) (domain.Session, error) {
	return a.auth.Login(ctx, username, password)
}

func (a *App) Logout() error {
	return a.auth.Logout()
}

func (a *App) Session() (domain.Session, bool) {
	return a.sessions.Current()
}

// StartSync subscribes to the stream and then loads the first snapshot, so no
// change made after the subscription can be missed. A failed snapshot is
// logged and left to the next reload.
func (a *App) StartSync(ctx context.Context) error {
	token := a.sessions.Token()
	if token == "" {
		return apperrors.NewForbiddenError("no active session")
	}

	a.mu.Lock()
	if a.handle != nil {
		select {
		case <-a.handle.Done():
		default:
			a.mu.Unlock()
			return nil
		}
	}
	h, err := a.connector.Connect(ctx, token, a.engine.ApplyEvent)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.handle = h
	a.streamToken = token
	a.mu.Unlock()

	if err := a.engine.Start(ctx); err != nil {
		a.logger.Warn("initial snapshot failed", zap.Error(err))
	}
	return nil
}

// StopSync closes the stream subscription, if any.
func (a *App) StopSync() {
	a.mu.Lock()
	h := a.handle
	a.handle = nil
	a.mu.Unlock()

	if h != nil {
		h.Close()
	}
}

// Run starts synchronization for the restored session, if there is one, and
// serves the local API until ctx is cancelled. A login through the API starts
// synchronization for the new session.
func (a *App) Run(ctx context.Context) error {
	a.sessions.OnSet(func(sess domain.Session) {
		a.onLogin(ctx, sess)
	})

	if _, ok := a.sessions.Current(); ok {
		err := a.StartSync(ctx)
		if errors.Is(err, stream.ErrUnauthorized) {
			a.logger.Warn("persisted session was rejected, logging out")
			_ = a.sessions.Clear()
		} else if err != nil {
			return err
		}
	} else {
		a.logger.Info("no session, waiting for login")
	}
	defer a.StopSync()

	srv := server.New(a.cfg.Server.Port, a.handler, a.logger)
	return srv.Run(ctx)
}

func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.StopSync()
		a.closeErr = a.kv.Close()
	})
	return a.closeErr
}

// onLogin restarts synchronization for a new session. A token the stream
// refuses ends that session.
func (a *App) onLogin(ctx context.Context, sess domain.Session) {
	a.StopSync()
	a.engine.Reset()

	err := a.StartSync(ctx)
	if errors.Is(err, stream.ErrUnauthorized) {
		a.logger.Warn("stream rejected the new session, logging out", zap.String("subject", sess.Subject))
		if _, err := a.sessions.ClearIfToken(sess.Token); err != nil {
			a.logger.Error("clearing rejected session", zap.Error(err))
		}
		return
	}
	if err != nil {
		a.logger.Warn("starting sync after login", zap.Error(err))
	}
}

// onStreamError ends the session when the stream refuses the token. It runs on
// the reader goroutine, which Clear waits on, hence the goroutine. Only the
// session whose token was refused is cleared.
func (a *App) onStreamError(err error) {
	if !errors.Is(err, stream.ErrUnauthorized) {
		return
	}
	a.mu.Lock()
	token := a.streamToken
	a.mu.Unlock()

	a.logger.Warn("stream rejected the session token, logging out")
	go func() {
		if _, err := a.sessions.ClearIfToken(token); err != nil {
			a.logger.Error("clearing rejected session", zap.Error(err))
		}
	}()
}

func (a *App) streamLive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil {
		return false
	}
	select {
	case <-a.handle.Done():
		return false
	default:
		return true
	}
}
