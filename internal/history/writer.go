package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
)

const (
	DefaultQueueSize = 1024
	writeTimeout     = 5 * time.Second
)

type writeOp struct {
	event      domain.Event
	enqueuedAt time.Time
}

// Writer persists accepted chat events behind the live broadcast.
//
// Contract: Publish never blocks. A full queue drops the write, and a write
// that still fails after the configured retries is logged and dropped. Either
// way the message has already been delivered live; only durable history lags.
// A single worker keeps writes in the order the hub accepted them, so an edit
// is never applied before the message it edits.
type Writer struct {
	store   Store
	queue   chan writeOp
	retries int
	backoff time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewWriter(store Store, queueSize, retries int, backoff time.Duration) *Writer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if retries < 0 {
		retries = 0
	}
	return &Writer{
		store:   store,
		queue:   make(chan writeOp, queueSize),
		retries: retries,
		backoff: backoff,
	}
}

func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		log := observability.GetLogger(ctx)
		log.Info("history writer started")
		for op := range w.queue {
			w.write(op)
		}
		log.Info("history writer stopped")
	}()
}

// Publish enqueues the chat message carried by ev. Non-chat events are ignored.
func (w *Writer) Publish(ctx context.Context, ev domain.Event) {
	if !ev.IsChat() {
		return
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		observability.HistoryWritesDropped.Inc()
		return
	}

	select {
	case w.queue <- writeOp{event: ev, enqueuedAt: time.Now()}:
	default:
		observability.HistoryWritesDropped.Inc()
		observability.GetLogger(ctx).Warn("history writer: queue full, dropping write",
			zap.String("message_id", ev.Message.ID),
			zap.String("type", string(ev.Type)),
		)
	}
}

// Close stops accepting writes and waits until queued writes are attempted.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Writer) write(op writeOp) {
	msg := *op.event.Message
	opName := "append"
	if op.event.Type == domain.EventMessageUpdated {
		opName = "update"
	}
	log := observability.GetLogger(context.Background()).With(
		zap.String("message_id", msg.ID),
		zap.String("op", opName),
	)

	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * w.backoff)
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if opName == "update" {
			err = w.store.Update(ctx, msg)
		} else {
			err = w.store.Append(ctx, msg)
		}
		cancel()

		if err == nil {
			observability.HistoryWritesTotal.WithLabelValues(opName, "ok").Inc()
			observability.HistoryWriteLatency.Observe(time.Since(op.enqueuedAt).Seconds())
			return
		}
		log.Warn("history writer: write failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	observability.HistoryWritesTotal.WithLabelValues(opName, "error").Inc()
	log.Error("history writer: giving up, history will miss this write", zap.Error(err))
}
