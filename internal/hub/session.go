package hub

import (
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/ratelimit"
)

// Conn is the transport side of a live connection.
//
// Send must not block and must not call back into the hub: the hub holds its
// lock while sending. A Conn that cannot keep up should drop itself.
type Conn interface {
	Send(ev domain.Event) bool
	Close()
}

// Session is one live connection as the hub sees it.
type Session struct {
	ID        string
	RemoteKey string
	// Identity is the authenticated subject, empty when the handshake was anonymous.
	Identity string

	conn    Conn
	limiter *ratelimit.Window
}

func (s *Session) send(ev domain.Event) bool {
	return s.conn.Send(ev)
}
