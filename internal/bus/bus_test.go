package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submission-relay/internal/models"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, "submissions")
}

func event(id string) *models.SubmissionEvent {
	return &models.SubmissionEvent{
		Type:      models.TypeSubmission,
		ID:        id,
		Timestamp: time.Now().UTC(),
		Teamname:  "Alpha",
		Filename:  "solution.cpp",
		CodeURL:   "https://files.test/" + id,
		Source:    models.SourceDirect,
	}
}

func receive(t *testing.T, sub *Subscription) *models.SubmissionEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishSucceedsWithZeroSubscribers(t *testing.T) {
	b := newTestBus(t)
	require.NoError(t, b.Publish(context.Background(), event("e1")))
}

func TestSubscriberReceivesEventsInPublishOrder(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, event("e1")))
	require.NoError(t, b.Publish(ctx, event("e2")))
	require.NoError(t, b.Publish(ctx, event("e3")))

	assert.Equal(t, "e1", receive(t, sub).ID)
	assert.Equal(t, "e2", receive(t, sub).ID)
	assert.Equal(t, "e3", receive(t, sub).ID)
}

func TestNoReplayForLateSubscriber(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, event("lost")))

	sub, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case ev := <-sub.Events():
		t.Fatalf("late subscriber received replayed event %q", ev.ID)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFanoutDeliversToAllSubscribersOnce(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	subs := make([]*Subscription, 3)
	for i := range subs {
		sub, err := b.Subscribe(ctx)
		require.NoError(t, err)
		defer sub.Close()
		subs[i] = sub
	}

	require.NoError(t, b.Publish(ctx, event("shared")))

	for _, sub := range subs {
		assert.Equal(t, "shared", receive(t, sub).ID)

		select {
		case ev := <-sub.Events():
			t.Fatalf("duplicate delivery of %q", ev.ID)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := newTestBus(t)

	sub, err := b.Subscribe(context.Background())
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Close")
	}
}

func TestClosedSubscriberDoesNotAffectOthers(t *testing.T) {
	b := newTestBus(t)
	ctx := context.Background()

	closed, err := b.Subscribe(ctx)
	require.NoError(t, err)
	alive, err := b.Subscribe(ctx)
	require.NoError(t, err)
	defer alive.Close()

	closed.Close()

	require.NoError(t, b.Publish(ctx, event("after-close")))
	assert.Equal(t, "after-close", receive(t, alive).ID)
}
