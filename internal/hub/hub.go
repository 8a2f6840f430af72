package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/history"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/ratelimit"
)

const DefaultHistoryLimit = 50

var (
	ErrHubClosed     = errors.New("hub closed")
	ErrSessionClosed = errors.New("session not connected")
)

// Publisher receives every accepted chat event after it has been broadcast.
// Publish must not block; the hub calls it while holding its lock so that
// publishers observe events in broadcast order.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event)
}

type Options struct {
	MaxMessageLength int
	RatePoints       int
	RateWindow       time.Duration
	// HistoryLimit is the number of messages in a connect snapshot.
	HistoryLimit int
	// RecentSize bounds the in-memory buffer merged over store reads.
	// Defaults to HistoryLimit.
	RecentSize        int
	RequireEditAuthor bool

	Now   func() time.Time
	NewID func() string
}

func (o *Options) applyDefaults() {
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = domain.DefaultMaxMessageLength
	}
	if o.RatePoints <= 0 {
		o.RatePoints = ratelimit.DefaultPoints
	}
	if o.RateWindow <= 0 {
		o.RateWindow = ratelimit.DefaultDuration
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.RecentSize <= 0 {
		o.RecentSize = o.HistoryLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = newMessageID
	}
}

// newMessageID returns a time-ordered UUIDv7.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Hub owns the live session set and is the only place chat policy runs.
//
// Every operation that touches sessions or the recent buffer holds mu, so all
// sessions observe broadcasts in the same order. Store reads happen before the
// lock is taken; store writes happen behind publishers.
type Hub struct {
	opts       Options
	store      history.Reader
	publishers []Publisher

	mu       sync.Mutex
	sessions map[string]*Session
	recent   *recent
	closed   bool
}

func New(store history.Reader, opts Options, publishers ...Publisher) *Hub {
	opts.applyDefaults()
	return &Hub{
		opts:       opts,
		store:      store,
		publishers: publishers,
		sessions:   make(map[string]*Session),
		recent:     newRecent(opts.RecentSize),
	}
}

// MaxMessageLength is the longest accepted body in characters.
func (h *Hub) MaxMessageLength() int {
	return h.opts.MaxMessageLength
}

// Connect registers conn and sends it the recent-history snapshot.
// No other session observes the connect.
func (h *Hub) Connect(ctx context.Context, conn Conn, remoteKey, identity string) (*Session, error) {
	stored := h.readStore(ctx, h.opts.HistoryLimit)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	s := &Session{
		ID:        uuid.NewString(),
		RemoteKey: remoteKey,
		Identity:  identity,
		conn:      conn,
		limiter:   ratelimit.New(h.opts.RatePoints, h.opts.RateWindow),
	}
	h.sessions[s.ID] = s

	s.send(domain.HistoryEvent(h.merge(stored, h.opts.HistoryLimit)))

	observability.GetLogger(ctx).Debug("hub: session connected",
		zap.String("session_id", s.ID),
		zap.String("remote", remoteKey),
		zap.Int("sessions", len(h.sessions)),
	)
	return s, nil
}

// Post runs the new-message policy for s and broadcasts the accepted message.
// A rejection is reported to s alone and returned.
func (h *Hub) Post(ctx context.Context, s *Session, req domain.PostRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.live(s) {
		return ErrSessionClosed
	}

	now := h.opts.Now()
	if err := h.admit(s, now, domain.ValidatePost(req), req.Author, req.Body); err != nil {
		return h.reject(ctx, s, err)
	}

	msg := domain.ChatMessage{
		ID:        h.opts.NewID(),
		Author:    req.Author,
		Body:      req.Body,
		CreatedAt: now.UTC(),
	}
	h.recent.add(msg)
	h.accept(ctx, domain.MessageEvent(msg))
	return nil
}

// Edit runs the edit policy for s and broadcasts the full replacement message.
//
// An id still in the recent buffer keeps its author and created_at. For an
// older id the hub does not consult the store: the broadcast carries the
// author the request claims and created_at equal to the edit time, while the
// store changes only body and edited_at. Clients holding the message should
// keep their own created_at when applying a message_updated event.
func (h *Hub) Edit(ctx context.Context, s *Session, req domain.EditRequest) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.live(s) {
		return ErrSessionClosed
	}

	now := h.opts.Now()
	if err := h.admit(s, now, domain.ValidateEdit(req), req.Author, req.Body); err != nil {
		return h.reject(ctx, s, err)
	}

	editedAt := now.UTC()
	msg, known := h.recent.get(req.ID)
	if known {
		if h.opts.RequireEditAuthor && msg.Author != req.Author {
			return h.reject(ctx, s, domain.ErrNotAuthor)
		}
	} else {
		msg = domain.ChatMessage{ID: req.ID, Author: req.Author, CreatedAt: editedAt}
	}
	msg.Body = req.Body
	msg.EditedAt = &editedAt

	h.recent.update(msg)
	h.accept(ctx, domain.UpdatedEvent(msg))
	return nil
}

// admit applies the checks shared by posts and edits, in order: malformed
// input, rate limit, length, identity binding. Malformed input consumes no
// rate budget.
func (h *Hub) admit(s *Session, now time.Time, invalid error, author, body string) error {
	if invalid != nil {
		return invalid
	}
	if !s.limiter.Allow(now, 1) {
		return domain.ErrRateLimited
	}
	if domain.BodyLength(body) > h.opts.MaxMessageLength {
		return domain.ErrMessageTooLong
	}
	if s.Identity != "" && author != s.Identity {
		return domain.ErrAuthorMismatch
	}
	return nil
}

// Disconnect discards s and its limiter. Calling it again is a no-op.
func (h *Hub) Disconnect(s *Session) {
	if s == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.sessions[s.ID]; !ok || cur != s {
		return
	}
	delete(h.sessions, s.ID)
	s.limiter.Reset()
}

// Deliver broadcasts a chat event accepted by another instance. It runs no
// policy and is not handed to publishers.
func (h *Hub) Deliver(ev domain.Event) {
	if !ev.IsChat() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	msg := *ev.Message
	if ev.Type == domain.EventMessage {
		h.recent.add(msg)
	} else {
		h.recent.update(msg)
	}
	h.broadcast(ev)
	observability.ChatEventsTotal.WithLabelValues(string(ev.Type), "relay").Inc()
}

// Snapshot returns up to limit messages oldest first, merging the recent
// buffer over the store.
func (h *Hub) Snapshot(ctx context.Context, limit int) []domain.ChatMessage {
	if limit <= 0 || limit > h.opts.HistoryLimit {
		limit = h.opts.HistoryLimit
	}
	stored := h.readStore(ctx, limit)

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.merge(stored, limit)
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every session and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := lo.Values(h.sessions)
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.conn.Close()
	}
}

// live reports whether s is registered. Caller must hold h.mu.
func (h *Hub) live(s *Session) bool {
	if s == nil || h.closed {
		return false
	}
	cur, ok := h.sessions[s.ID]
	return ok && cur == s
}

// accept broadcasts ev and hands it to publishers. Caller must hold h.mu.
func (h *Hub) accept(ctx context.Context, ev domain.Event) {
	h.broadcast(ev)
	for _, p := range h.publishers {
		p.Publish(ctx, ev)
	}
	observability.ChatEventsTotal.WithLabelValues(string(ev.Type), "local").Inc()
}

// broadcast sends ev to every session. Caller must hold h.mu.
func (h *Hub) broadcast(ev domain.Event) {
	delivered := 0
	for _, s := range h.sessions {
		if s.send(ev) {
			delivered++
		}
	}
	observability.BroadcastFanout.Observe(float64(delivered))
}

// reject reports err to s only. Caller must hold h.mu.
func (h *Hub) reject(ctx context.Context, s *Session, err error) error {
	code := domain.ErrorCode(err)
	observability.ChatRejectionsTotal.WithLabelValues(code).Inc()
	observability.GetLogger(ctx).Debug("hub: action rejected",
		zap.String("session_id", s.ID),
		zap.String("remote", s.RemoteKey),
		zap.String("code", code),
	)
	s.send(domain.ErrorEvent(err))
	return err
}

func (h *Hub) readStore(ctx context.Context, limit int) []domain.ChatMessage {
	if h.store == nil {
		return nil
	}
	msgs, err := h.store.Recent(ctx, limit)
	if err != nil {
		observability.GetLogger(ctx).Warn("hub: history read failed, serving recent buffer only", zap.Error(err))
		return nil
	}
	return msgs
}

// merge overlays the recent buffer on stored messages by id and returns the
// newest limit of them oldest first. Caller must hold h.mu.
func (h *Hub) merge(stored []domain.ChatMessage, limit int) []domain.ChatMessage {
	byID := lo.KeyBy(stored, func(m domain.ChatMessage) string { return m.ID })
	for _, m := range h.recent.all() {
		byID[m.ID] = m
	}

	ordered := history.Chronological(lo.Values(byID))
	if len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}
