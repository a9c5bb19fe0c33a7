// Package httpapi is the broker's server front (C7): HTTP endpoints for
// login/session bootstrap and the websocket transport-accept handler.
// Grounded on the teacher's cmd/http/main.go (chi mount, zap logger) and
// internal/presentation/api (CORS middleware, thin JSON projections).
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hilthontt/syncbroker/internal/broker"
	"github.com/hilthontt/syncbroker/internal/config"
	httpjson "github.com/hilthontt/syncbroker/internal/infrastructure/json"
)

// Application bundles what the HTTP layer needs: the broker core and the
// logger, mirroring the teacher's own Application value.
type Application struct {
	cfg    config.Config
	broker *broker.Broker
	logger *zap.SugaredLogger
}

func NewApplication(cfg config.Config, b *broker.Broker, logger *zap.SugaredLogger) *Application {
	return &Application{cfg: cfg, broker: b, logger: logger}
}

// Mount builds the router: permissive CORS, then the login/session/health
// endpoints and the websocket accept endpoint, wrapped in an otelhttp
// handler so every call gets a span.
func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(app.enableCors)

	r.Get("/api/health", app.healthHandler)

	r.Post("/api/login/url", app.loginURLHandler)
	r.Post("/api/login/confirm/{token}", app.loginConfirmHandler)
	r.Post("/api/login/simple", app.loginSimpleHandler)
	r.Post("/api/login/validate", app.loginValidateHandler)

	r.With(app.requireUserJWT).Post("/api/session/create", app.sessionCreateHandler)
	r.With(app.requireUserJWT).Post("/api/session/join/{room}", app.sessionJoinHandler)

	r.Get("/ws", app.transportHandler)

	return otelhttp.NewHandler(r, "syncbroker")
}

// Run serves handler on the configured hostname/port until it exits.
func (app *Application) Run(handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", app.cfg.Server.Hostname, app.cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.logger.Infow("listening", "addr", addr)
	return server.ListenAndServe()
}

func (app *Application) healthHandler(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}
