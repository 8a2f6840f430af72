package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/hub"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
)

// Authenticator resolves a handshake token to a chat identity.
type Authenticator interface {
	Verify(token string) (string, error)
}

type HandlerConfig struct {
	// AllowedOrigins lists origins permitted to open a connection. Empty or
	// "*" allows any origin.
	AllowedOrigins []string
	SendQueueSize  int
	// ReadLimit caps inbound frame size in bytes. Zero derives it from the
	// hub's maximum message length.
	ReadLimit int64
	// Auth is optional. When set, the handshake must carry a valid token.
	Auth Authenticator
}

type Handler struct {
	hub      *hub.Hub
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = ReadLimitFor(h.MaxMessageLength())
	}
	return &Handler{
		hub: h,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.GetLogger(r.Context())

	identity := ""
	if h.cfg.Auth != nil {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		sub, err := h.cfg.Auth.Verify(token)
		if err != nil {
			log.Debug("handshake rejected", zap.Error(err))
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		identity = sub
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade error", zap.Error(err))
		return
	}

	remote := remoteKey(r)
	client := NewClient(conn, remote, h.cfg.SendQueueSize)
	client.Start()

	// The request context ends with the handler; hub calls outlive it.
	ctx := context.Background()
	session, err := h.hub.Connect(ctx, client, remote, identity)
	if err != nil {
		log.Warn("hub refused connection", zap.Error(err))
		client.CloseWithReason(websocket.CloseGoingAway, "server shutting down")
		return
	}

	log.Info("connected", zap.String("session_id", session.ID), zap.String("remote", remote))
	observability.WebSocketConnectionsActive.Inc()

	conn.SetReadLimit(h.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.readLoop(ctx, session, client)
}

func (h *Handler) readLoop(ctx context.Context, s *hub.Session, c *Client) {
	log := observability.GetLogger(ctx).With(zap.String("session_id", s.ID))
	defer func() {
		h.hub.Disconnect(s)
		c.Close()
		log.Info("disconnected", zap.String("remote", s.RemoteKey))
		observability.WebSocketConnectionsActive.Dec()
	}()

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("read loop error", zap.Error(err))
			}
			return
		}
		h.dispatch(ctx, s, c, data)
	}
}

func (h *Handler) dispatch(ctx context.Context, s *hub.Session, c *Client, data []byte) {
	frame, err := decodeFrame(data)
	if err != nil {
		observability.ChatRejectionsTotal.WithLabelValues(domain.ErrorCode(err)).Inc()
		c.Send(domain.ErrorEvent(err))
		return
	}

	switch frame.Type {
	case FramePost:
		err = h.hub.Post(ctx, s, frame.post())
	case FrameEdit:
		err = h.hub.Edit(ctx, s, frame.edit())
	}
	if errors.Is(err, hub.ErrSessionClosed) {
		c.Close()
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	// Browsers cannot set headers on a WebSocket handshake.
	return r.URL.Query().Get("access_token")
}

// remoteKey is the client host after proxy headers were applied upstream.
func remoteKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func originChecker(allowed []string) func(r *http.Request) bool {
	normalized := lo.FilterMap(allowed, func(o string, _ int) (string, bool) {
		o = normalizeOrigin(o)
		return o, o != ""
	})
	if len(normalized) == 0 || lo.Contains(normalized, "*") {
		return func(r *http.Request) bool { return true }
	}

	set := lo.SliceToMap(normalized, func(o string) (string, struct{}) { return o, struct{}{} })
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin.
			return true
		}
		_, ok := set[normalizeOrigin(origin)]
		return ok
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}
