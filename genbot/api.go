package genbot

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const statusPage = `<!DOCTYPE html>
<html>
<head><title>Telegram CC Generator Bot</title></head>
<body><h1>Telegram CC Generator Bot</h1><p>✅ Bot is Running Successfully</p></body>
</html>
`

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API is the HTTP surface of the bot: a status page and health probes.
type API struct {
	ready Pinger
}

func NewAPI(ready Pinger) *API {
	return &API{
		ready: ready,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Get("/", a.status)
	r.Get("/-/live", a.live)
	r.Get("/-/ready", a.readiness)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(statusPage))
}

func (a *API) live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if a.ready != nil {
		if err := a.ready.Ping(ctx); err != nil {
			http.Error(w, "access store not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
