package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"ordertrack/internal/catalog"
	"ordertrack/internal/metrics"
	"ordertrack/internal/order/controller"
	"ordertrack/internal/session"
)

// HealthFunc reports whether the push stream is currently live.
type HealthFunc func() (streamConnected bool)

func NewRouter(
	orderCtrl *controller.OrderController,
	catalogCtrl *catalog.Controller,
	sessionCtrl *session.Controller,
	m *metrics.Registry,
	health HealthFunc,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "ok",
			"streamConnected": health(),
		})
	})
	r.Handle("/metrics", m.Handler())

	r.Get("/session", sessionCtrl.HandleCurrent)
	r.Post("/session/login", sessionCtrl.HandleLogin)
	r.Post("/session/logout", sessionCtrl.HandleLogout)

	r.Get("/order-statuses", catalogCtrl.HandleListStatuses)
	r.Get("/merchants", catalogCtrl.HandleListMerchants)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", orderCtrl.ListOrders)
		r.Post("/", orderCtrl.CreateOrder)
		r.Get("/grouped", orderCtrl.ListGrouped)
		r.Post("/reload", orderCtrl.ReloadSnapshot)
		r.Get("/{orderId}", orderCtrl.GetOrder)
		r.Post("/{orderId}/refresh", orderCtrl.RefreshOrder)
		r.Get("/{orderId}/history", orderCtrl.GetHistory)
		r.Put("/{orderId}/status", orderCtrl.TransitionStatus)
	})

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("requestId", middleware.GetReqID(r.Context())),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}
