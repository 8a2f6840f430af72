package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
)

const (
	DefaultChannel   = "shoutbox:events"
	defaultQueueSize = 256
)

var errMissingEvent = errors.New("relay: envelope without chat event")

// envelope tags an event with the instance that accepted it.
type envelope struct {
	Origin string       `json:"origin"`
	Event  domain.Event `json:"event"`
}

// Relay shares accepted chat events between shoutbox instances over Redis
// pub/sub. Delivery is best effort and unordered across instances.
type Relay struct {
	client     *redis.Client
	channel    string
	instanceID string
	queue      chan []byte

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(client *redis.Client, instanceID string) *Relay {
	return &Relay{
		client:     client,
		channel:    DefaultChannel,
		instanceID: instanceID,
		queue:      make(chan []byte, defaultQueueSize),
	}
}

func (r *Relay) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		log := observability.GetLogger(ctx)
		for payload := range r.queue {
			if err := r.client.Publish(context.Background(), r.channel, payload).Err(); err != nil {
				observability.RelayEventsTotal.WithLabelValues("out", "error").Inc()
				log.Warn("relay: publish failed", zap.Error(err))
				continue
			}
			observability.RelayEventsTotal.WithLabelValues("out", "ok").Inc()
		}
	}()
}

// Publish queues ev for other instances without blocking.
func (r *Relay) Publish(ctx context.Context, ev domain.Event) {
	if !ev.IsChat() {
		return
	}
	payload, err := r.encode(ev)
	if err != nil {
		observability.GetLogger(ctx).Error("relay: encode event", zap.Error(err))
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- payload:
	default:
		observability.RelayEventsTotal.WithLabelValues("out", "dropped").Inc()
	}
}

// Subscribe hands events accepted by other instances to deliver until ctx ends.
func (r *Relay) Subscribe(ctx context.Context, deliver func(domain.Event)) {
	pubsub := r.client.Subscribe(ctx, r.channel)

	go func() {
		log := observability.GetLogger(ctx)
		log.Info("relay: subscribed to channel", zap.String("channel", r.channel))
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				log.Info("relay: subscription loop stopping: context canceled")
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn("relay: pubsub channel closed")
					return
				}
				r.receive(ctx, []byte(msg.Payload), deliver)
			}
		}
	}()
}

func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Relay) receive(ctx context.Context, payload []byte, deliver func(domain.Event)) {
	env, err := decode(payload)
	if err != nil {
		observability.RelayEventsTotal.WithLabelValues("in", "error").Inc()
		observability.GetLogger(ctx).Warn("relay: dropping undecodable event", zap.Error(err))
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	observability.RelayEventsTotal.WithLabelValues("in", "ok").Inc()
	deliver(env.Event)
}

func (r *Relay) encode(ev domain.Event) ([]byte, error) {
	return json.Marshal(envelope{Origin: r.instanceID, Event: ev})
}

func decode(payload []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return envelope{}, err
	}
	if !env.Event.IsChat() {
		return envelope{}, errMissingEvent
	}
	return env, nil
}
