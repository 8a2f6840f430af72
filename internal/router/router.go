package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/hub"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/transport"
)

type Config struct {
	ServiceName string
	// ConnectLimit caps WebSocket handshakes per client IP per ConnectWindow.
	// Zero disables the limit.
	ConnectLimit  int
	ConnectWindow time.Duration
}

func NewRouter(h *hub.Hub, ws http.Handler, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	r.Use(Recovery())

	r.Group(func(p chi.Router) {
		if cfg.ConnectLimit > 0 {
			window := cfg.ConnectWindow
			if window <= 0 {
				window = time.Minute
			}
			p.Use(httprate.LimitByIP(cfg.ConnectLimit, window))
		}
		p.Handle("/ws", ws)
	})

	r.Get("/api/shoutbox/messages", listMessages(h))

	return otelhttp.NewHandler(r, cfg.ServiceName)
}

type messagesResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// listMessages serves the same oldest-first snapshot a connecting client gets.
func listMessages(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				transport.WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			limit = n
		}

		msgs := h.Snapshot(r.Context(), limit)
		if msgs == nil {
			msgs = []domain.ChatMessage{}
		}
		transport.WriteJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
	}
}
