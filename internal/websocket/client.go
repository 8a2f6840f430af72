package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
)

const (
	SendQueueSize = 128
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10

	// A rune escaped as a JSON surrogate pair takes 12 bytes.
	maxEncodedRuneBytes = 12
	frameOverhead       = 4 << 10
)

// ReadLimitFor returns the largest inbound frame accepted when bodies may
// hold maxLen characters. One character of headroom lets a body just over
// the limit reach the hub and be rejected as too long.
func ReadLimitFor(maxLen int) int64 {
	if maxLen <= 0 {
		maxLen = domain.DefaultMaxMessageLength
	}
	return int64(maxLen+1)*maxEncodedRuneBytes + frameOverhead
}

// Client is the WebSocket end of a hub session. Frames reach the socket
// through SendQueue, drained by a single write goroutine.
type Client struct {
	RemoteKey string

	Conn      *websocket.Conn
	SendQueue chan []byte
	done      chan struct{}
	closed    atomic.Bool
	overflow  atomic.Bool
}

func NewClient(conn *websocket.Conn, remoteKey string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = SendQueueSize
	}
	return &Client{
		RemoteKey: remoteKey,
		Conn:      conn,
		SendQueue: make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
}

func (c *Client) Start() {
	go c.writeLoop()
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send encodes ev and queues it without blocking.
func (c *Client) Send(ev domain.Event) bool {
	payload, err := json.Marshal(ev)
	if err != nil {
		log().Error("client: marshal event", zap.String("type", string(ev.Type)), zap.Error(err))
		return false
	}
	return c.TrySend(payload)
}

// TrySend queues a raw frame. A full queue means the peer is not reading;
// the connection is dropped rather than letting it hold up everyone else.
func (c *Client) TrySend(msg []byte) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.SendQueue <- msg:
		return true
	default:
		if c.overflow.CompareAndSwap(false, true) {
			observability.SendQueueOverflowTotal.Inc()
			log().Warn("client: backpressure overflow, dropping connection", zap.String("remote", c.RemoteKey))
			go c.CloseWithReason(websocket.CloseTryAgainLater, "backpressure overflow")
		}
		return false
	}
}

func (c *Client) Close() {
	c.CloseWithReason(websocket.CloseNormalClosure, "server closing")
}

func (c *Client) CloseWithReason(code int, reason string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	log().Debug("client: closing",
		zap.String("remote", c.RemoteKey),
		zap.Int("code", code),
		zap.String("reason", reason),
	)
	close(c.done)

	if c.Conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		c.Conn.Close()
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.SendQueue:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log().Debug("client: write error", zap.String("remote", c.RemoteKey), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log().Debug("client: ping error", zap.String("remote", c.RemoteKey), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

func log() *zap.Logger {
	return observability.GetLogger(context.Background())
}
