package bus

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"

	"submission-relay/internal/apperr"
	"submission-relay/internal/models"
)

// Bus is the ephemeral notification channel. Publishes are fire-and-forget
// broadcasts: nothing is stored and nothing is replayed to late subscribers.
type Bus struct {
	rdb     *redis.Client
	channel string
}

// New creates a Bus over the given pub/sub channel.
func New(rdb *redis.Client, channel string) *Bus {
	return &Bus{rdb: rdb, channel: channel}
}

// Publish broadcasts the event to whoever is subscribed right now. Success
// means the transport accepted the send, independent of subscriber count.
func (b *Bus) Publish(ctx context.Context, event *models.SubmissionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return apperr.Wrap(apperr.ErrBus, err, "failed to encode event")
	}

	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return apperr.Wrap(apperr.ErrBus, err, "failed to publish event")
	}
	return nil
}

// Subscribe opens a dedicated subscription that receives every event
// published on the channel from this moment onward, in publish order.
// The caller owns the handle and must Close it on every exit path.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, b.channel)

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, apperr.Wrap(apperr.ErrBus, err, "failed to subscribe")
	}

	sub := &Subscription{
		ps:     ps,
		events: make(chan *models.SubmissionEvent, 64),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

// Subscription is one observer's exclusive handle onto the bus. It is never
// shared across connections.
type Subscription struct {
	ps        *redis.PubSub
	events    chan *models.SubmissionEvent
	done      chan struct{}
	closeOnce sync.Once
}

// Events delivers decoded events in the order they were published. The
// channel is closed after Close or when the transport drops.
func (s *Subscription) Events() <-chan *models.SubmissionEvent {
	return s.events
}

// Close releases the subscription. Idempotent; safe to call from any exit
// path and from concurrent close signals.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.ps.Close(); err != nil {
			log.Printf("[BUS] Error closing subscription: %v", err)
		}
	})
}

func (s *Subscription) pump() {
	defer close(s.events)

	for msg := range s.ps.Channel() {
		var event models.SubmissionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("[BUS] Dropping undecodable event: %v", err)
			continue
		}
		select {
		case s.events <- &event:
		case <-s.done:
			return
		}
	}
}
