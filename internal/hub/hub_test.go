package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/history"
)

type fakeConn struct {
	mu     sync.Mutex
	events []domain.Event
	closed bool
}

func (c *fakeConn) Send(ev domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) received() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

func (c *fakeConn) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range c.received() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type failingReader struct{}

func (failingReader) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	return nil, errors.New("connection refused")
}

// unorderedReader returns records in whatever order they were given.
type unorderedReader []domain.ChatMessage

func (r unorderedReader) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	return r, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions(clk *clock) Options {
	n := 0
	return Options{
		MaxMessageLength: 500,
		RatePoints:       5,
		RateWindow:       5 * time.Second,
		HistoryLimit:     50,
		Now:              clk.Now,
		NewID: func() string {
			n++
			return fmt.Sprintf("m%d", n)
		},
	}
}

func connect(t *testing.T, h *Hub) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	s, err := h.Connect(context.Background(), conn, "127.0.0.1", "")
	require.NoError(t, err)
	return s, conn
}

func post(author, body string) domain.PostRequest {
	return domain.PostRequest{Author: author, Body: body}
}

func TestConnect_SnapshotOldestFirst(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	store := history.NewMemoryStore(0)
	require.NoError(t, store.Append(context.Background(), domain.ChatMessage{ID: "old", Author: "a", Body: "first", CreatedAt: t1}))
	require.NoError(t, store.Append(context.Background(), domain.ChatMessage{ID: "new", Author: "b", Body: "second", CreatedAt: t2}))

	h := New(store, testOptions(newClock()))
	_, a := connect(t, h)

	events := a.received()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventHistory, events[0].Type)
	require.Len(t, events[0].Messages, 2)
	assert.Equal(t, "old", events[0].Messages[0].ID)
	assert.Equal(t, "new", events[0].Messages[1].ID)
}

func TestConnect_NotObservedByOthers(t *testing.T) {
	h := New(history.NewMemoryStore(0), testOptions(newClock()))
	_, a := connect(t, h)
	a.reset()

	connect(t, h)

	assert.Empty(t, a.received())
	assert.Equal(t, 2, h.Count())
}

func TestConnect_SnapshotNonDecreasing(t *testing.T) {
	base := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	var records unorderedReader
	for _, offset := range []int{7, 2, 9, 2, 0, 5, 3} {
		records = append(records, domain.ChatMessage{
			ID:        fmt.Sprintf("r%d-%d", offset, len(records)),
			Author:    "a",
			Body:      "x",
			CreatedAt: base.Add(time.Duration(offset) * time.Second),
		})
	}

	h := New(records, testOptions(newClock()))
	_, a := connect(t, h)

	snap := a.ofType(domain.EventHistory)[0].Messages
	require.Len(t, snap, len(records))
	for i := 1; i < len(snap); i++ {
		assert.False(t, snap[i].CreatedAt.Before(snap[i-1].CreatedAt), "snapshot out of order at %d", i)
	}
}

func TestConnect_StoreFailureServesRecentBuffer(t *testing.T) {
	h := New(failingReader{}, testOptions(newClock()))
	s, _ := connect(t, h)
	require.NoError(t, h.Post(context.Background(), s, post("alice", "still here")))

	_, b := connect(t, h)

	snap := b.ofType(domain.EventHistory)
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Messages, 1)
	assert.Equal(t, "still here", snap[0].Messages[0].Body)
}

func TestConnect_AfterCloseFails(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	_, a := connect(t, h)

	h.Close()

	assert.True(t, a.closed)
	_, err := h.Connect(context.Background(), &fakeConn{}, "127.0.0.1", "")
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.Equal(t, 0, h.Count())
}

func TestPost_FanOutIncludesSender(t *testing.T) {
	pub := &recordingPublisher{}
	h := New(nil, testOptions(newClock()), pub)
	a, connA := connect(t, h)
	_, connB := connect(t, h)
	_, connC := connect(t, h)

	require.NoError(t, h.Post(context.Background(), a, post("alice", "hello")))

	for _, c := range []*fakeConn{connA, connB, connC} {
		msgs := c.ofType(domain.EventMessage)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello", msgs[0].Message.Body)
		assert.Equal(t, "alice", msgs[0].Message.Author)
		assert.Equal(t, "m1", msgs[0].Message.ID)
	}
	assert.Equal(t, 1, pub.count())
}

func TestPost_BroadcastOrderIsTotal(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, connA := connect(t, h)
	b, connB := connect(t, h)

	require.NoError(t, h.Post(context.Background(), a, post("alice", "1")))
	require.NoError(t, h.Post(context.Background(), b, post("bob", "2")))
	require.NoError(t, h.Post(context.Background(), a, post("alice", "3")))

	bodies := func(c *fakeConn) []string {
		var out []string
		for _, ev := range c.ofType(domain.EventMessage) {
			out = append(out, ev.Message.Body)
		}
		return out
	}
	assert.Equal(t, []string{"1", "2", "3"}, bodies(connA))
	assert.Equal(t, bodies(connA), bodies(connB))
}

func TestPost_RateLimitScenario(t *testing.T) {
	clk := newClock()
	pub := &recordingPublisher{}
	h := New(nil, testOptions(clk), pub)
	a, connA := connect(t, h)
	_, connB := connect(t, h)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Post(context.Background(), a, post("alice", fmt.Sprintf("msg %d", i))))
		clk.Advance(200 * time.Millisecond)
	}

	err := h.Post(context.Background(), a, post("alice", "one too many"))
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	assert.Len(t, connB.ofType(domain.EventMessage), 5)
	assert.Empty(t, connB.ofType(domain.EventError))
	errs := connA.ofType(domain.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeRateLimited, errs[0].Error.Code)
	assert.Equal(t, 5, pub.count())

	// The first post leaves the window five seconds after it was accepted.
	clk.Advance(5 * time.Second)
	assert.NoError(t, h.Post(context.Background(), a, post("alice", "later")))
}

func TestPost_SenderBucketDoesNotAffectOthers(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, connA := connect(t, h)
	b, connB := connect(t, h)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Post(context.Background(), a, post("alice", "hi")))
	}
	require.ErrorIs(t, h.Post(context.Background(), a, post("alice", "hi")), domain.ErrRateLimited)

	for i := 0; i < 5; i++ {
		assert.NoError(t, h.Post(context.Background(), b, post("bob", "hey")))
	}
	assert.Len(t, connA.ofType(domain.EventMessage), 10)
	assert.Empty(t, connB.ofType(domain.EventError))
}

func TestPost_TooLongRejected(t *testing.T) {
	store := history.NewMemoryStore(0)
	writer := history.NewWriter(store, 8, 0, 0)
	writer.Start(context.Background())
	h := New(store, testOptions(newClock()), writer)
	a, connA := connect(t, h)
	_, connB := connect(t, h)

	err := h.Post(context.Background(), a, post("alice", strings.Repeat("x", 501)))
	writer.Close()

	assert.ErrorIs(t, err, domain.ErrMessageTooLong)
	errs := connA.ofType(domain.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeMessageTooLong, errs[0].Error.Code)
	assert.Empty(t, connA.ofType(domain.EventMessage))
	assert.Empty(t, connB.ofType(domain.EventMessage))
	assert.Empty(t, connB.ofType(domain.EventError))

	stored, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, h.Snapshot(context.Background(), 10))
}

func TestPost_LengthCountsCharacters(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, connA := connect(t, h)

	require.NoError(t, h.Post(context.Background(), a, post("alice", strings.Repeat("é", 500))))
	assert.Len(t, connA.ofType(domain.EventMessage), 1)
}

func TestPost_MalformedConsumesNoBudget(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, connA := connect(t, h)

	for i := 0; i < 10; i++ {
		err := h.Post(context.Background(), a, post("", "no author"))
		require.ErrorIs(t, err, domain.ErrInvalidMessage)
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Post(context.Background(), a, post("alice", "ok")))
	}

	errs := connA.ofType(domain.EventError)
	require.Len(t, errs, 10)
	assert.Equal(t, domain.CodeInvalidMessage, errs[0].Error.Code)
}

func TestPost_IdentityBinding(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	conn := &fakeConn{}
	s, err := h.Connect(context.Background(), conn, "127.0.0.1", "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, h.Post(context.Background(), s, post("mallory", "hi")), domain.ErrAuthorMismatch)
	assert.NoError(t, h.Post(context.Background(), s, post("alice", "hi")))
	assert.Len(t, conn.ofType(domain.EventMessage), 1)
}

func TestEdit_UpdatedBroadcastScenario(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore(0)
	created := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, domain.ChatMessage{ID: "7", Author: "alice", Body: "hello", CreatedAt: created}))

	writer := history.NewWriter(store, 8, 0, 0)
	writer.Start(ctx)
	h := New(store, testOptions(newClock()), writer)
	a, connA := connect(t, h)
	_, connB := connect(t, h)

	require.NoError(t, h.Edit(ctx, a, domain.EditRequest{ID: "7", Author: "alice", Body: "hi"}))

	for _, c := range []*fakeConn{connA, connB} {
		updates := c.ofType(domain.EventMessageUpdated)
		require.Len(t, updates, 1)
		assert.Equal(t, "7", updates[0].Message.ID)
		assert.Equal(t, "hi", updates[0].Message.Body)
		require.NotNil(t, updates[0].Message.EditedAt)
		// Not in the recent buffer: created_at is the edit time.
		assert.True(t, updates[0].Message.CreatedAt.Equal(*updates[0].Message.EditedAt))
	}

	writer.Close()
	_, connC := connect(t, h)
	snap := connC.ofType(domain.EventHistory)[0].Messages
	require.Len(t, snap, 1)
	assert.Equal(t, "hi", snap[0].Body)
	assert.True(t, snap[0].CreatedAt.Equal(created))
	assert.Equal(t, "alice", snap[0].Author)
}

func TestEdit_RecentMessageKeepsCreatedAt(t *testing.T) {
	clk := newClock()
	h := New(history.NewMemoryStore(0), testOptions(clk))
	a, connA := connect(t, h)

	require.NoError(t, h.Post(context.Background(), a, post("alice", "typo")))
	created := connA.ofType(domain.EventMessage)[0].Message.CreatedAt
	clk.Advance(time.Minute)
	require.NoError(t, h.Edit(context.Background(), a, domain.EditRequest{ID: "m1", Author: "alice", Body: "fixed"}))

	updated := connA.ofType(domain.EventMessageUpdated)[0].Message
	assert.True(t, updated.CreatedAt.Equal(created))
	assert.True(t, updated.EditedAt.After(created))
}

func TestEdit_RecentMessageVisibleBeforePersistence(t *testing.T) {
	clk := newClock()
	h := New(history.NewMemoryStore(0), testOptions(clk))
	a, _ := connect(t, h)

	require.NoError(t, h.Post(context.Background(), a, post("alice", "typo")))
	clk.Advance(time.Second)
	require.NoError(t, h.Edit(context.Background(), a, domain.EditRequest{ID: "m1", Author: "alice", Body: "fixed"}))

	snap := h.Snapshot(context.Background(), 10)
	require.Len(t, snap, 1)
	assert.Equal(t, "fixed", snap[0].Body)
	assert.True(t, snap[0].EditedAt.After(snap[0].CreatedAt))
}

func TestEdit_SharesPostBudget(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, _ := connect(t, h)

	for i := 0; i < 4; i++ {
		require.NoError(t, h.Post(context.Background(), a, post("alice", "hi")))
	}
	require.NoError(t, h.Edit(context.Background(), a, domain.EditRequest{ID: "m1", Author: "alice", Body: "edit"}))

	assert.ErrorIs(t, h.Edit(context.Background(), a, domain.EditRequest{ID: "m1", Author: "alice", Body: "again"}), domain.ErrRateLimited)
	assert.ErrorIs(t, h.Post(context.Background(), a, post("alice", "hi")), domain.ErrRateLimited)
}

func TestEdit_TooLongRejected(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, connA := connect(t, h)
	require.NoError(t, h.Post(context.Background(), a, post("alice", "short")))

	err := h.Edit(context.Background(), a, domain.EditRequest{ID: "m1", Author: "alice", Body: strings.Repeat("x", 501)})

	assert.ErrorIs(t, err, domain.ErrMessageTooLong)
	assert.Empty(t, connA.ofType(domain.EventMessageUpdated))
	assert.Equal(t, "short", h.Snapshot(context.Background(), 10)[0].Body)
}

func TestEdit_AuthorCheck(t *testing.T) {
	opts := testOptions(newClock())
	opts.RequireEditAuthor = true
	h := New(nil, opts)
	a, _ := connect(t, h)
	b, connB := connect(t, h)

	require.NoError(t, h.Post(context.Background(), a, post("alice", "mine")))

	err := h.Edit(context.Background(), b, domain.EditRequest{ID: "m1", Author: "bob", Body: "yours now"})
	assert.ErrorIs(t, err, domain.ErrNotAuthor)
	assert.Equal(t, domain.CodeNotAuthor, connB.ofType(domain.EventError)[0].Error.Code)

	assert.NoError(t, h.Edit(context.Background(), a, domain.EditRequest{ID: "m1", Author: "alice", Body: "still mine"}))
}

func TestEdit_AuthorNotCheckedByDefault(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, _ := connect(t, h)
	b, _ := connect(t, h)

	require.NoError(t, h.Post(context.Background(), a, post("alice", "mine")))
	assert.NoError(t, h.Edit(context.Background(), b, domain.EditRequest{ID: "m1", Author: "bob", Body: "edited"}))
}

func TestDisconnect_Idempotent(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, _ := connect(t, h)
	_, connB := connect(t, h)
	connB.reset()

	h.Disconnect(a)
	assert.NotPanics(t, func() { h.Disconnect(a) })

	assert.Equal(t, 1, h.Count())
	assert.Empty(t, connB.received())
	assert.ErrorIs(t, h.Post(context.Background(), a, post("alice", "ghost")), ErrSessionClosed)
	assert.Empty(t, connB.received())
}

func TestReconnect_StartsFreshBucket(t *testing.T) {
	h := New(nil, testOptions(newClock()))
	a, _ := connect(t, h)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Post(context.Background(), a, post("alice", "hi")))
	}
	h.Disconnect(a)

	a2, _ := connect(t, h)
	assert.NoError(t, h.Post(context.Background(), a2, post("alice", "back")))
}

func TestDeliver_BroadcastsWithoutPublishing(t *testing.T) {
	pub := &recordingPublisher{}
	h := New(nil, testOptions(newClock()), pub)
	_, connA := connect(t, h)

	remote := domain.ChatMessage{ID: "remote-1", Author: "carol", Body: "from elsewhere", CreatedAt: time.Now().UTC()}
	h.Deliver(domain.MessageEvent(remote))
	h.Deliver(domain.ErrorEvent(domain.ErrRateLimited))

	msgs := connA.ofType(domain.EventMessage)
	require.Len(t, msgs, 1)
	assert.Equal(t, "remote-1", msgs[0].Message.ID)
	assert.Empty(t, connA.ofType(domain.EventError))
	assert.Equal(t, 0, pub.count())
	assert.Len(t, h.Snapshot(context.Background(), 10), 1)
}

func TestSnapshot_LimitsToNewest(t *testing.T) {
	opts := testOptions(newClock())
	opts.RatePoints = 100
	clk := newClock()
	opts.Now = clk.Now
	h := New(nil, opts)
	a, _ := connect(t, h)

	for i := 0; i < 10; i++ {
		require.NoError(t, h.Post(context.Background(), a, post("alice", fmt.Sprintf("%d", i))))
		clk.Advance(time.Millisecond)
	}

	snap := h.Snapshot(context.Background(), 3)
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"7", "8", "9"}, []string{snap[0].Body, snap[1].Body, snap[2].Body})
}

func TestConcurrentPosts(t *testing.T) {
	opts := testOptions(newClock())
	opts.RatePoints = 1000
	var mu sync.Mutex
	n := 0
	opts.NewID = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("c%d", n)
	}
	h := New(nil, opts)

	const clients = 8
	const perClient = 20
	sessions := make([]*Session, clients)
	conns := make([]*fakeConn, clients)
	for i := range sessions {
		sessions[i], conns[i] = connect(t, h)
	}

	var wg sync.WaitGroup
	for i := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for j := 0; j < perClient; j++ {
				_ = h.Post(context.Background(), s, post("alice", "x"))
			}
		}(sessions[i])
	}
	wg.Wait()

	first := conns[0].ofType(domain.EventMessage)
	require.Len(t, first, clients*perClient)
	for _, c := range conns[1:] {
		got := c.ofType(domain.EventMessage)
		require.Len(t, got, len(first))
		for i := range got {
			assert.Equal(t, first[i].Message.ID, got[i].Message.ID)
		}
	}
}
