package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"submission-relay/internal/apperr"
	"submission-relay/internal/models"
)

// TaskQueue appends tasks to a named persistent Redis list. External workers
// pop destructively from the same list; this side never reads it.
type TaskQueue struct {
	rdb *redis.Client
	key string
}

// New creates a TaskQueue writing to the given list key.
func New(rdb *redis.Client, key string) *TaskQueue {
	return &TaskQueue{rdb: rdb, key: key}
}

// Enqueue serializes the task and appends it to the tail of the list.
// FIFO per list; never blocks on consumers. A transport failure aborts the
// whole submission upstream, so no local buffering or retry happens here.
func (q *TaskQueue) Enqueue(ctx context.Context, task *models.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return apperr.Wrap(apperr.ErrQueue, err, "failed to encode task")
	}

	if err := q.rdb.RPush(ctx, q.key, payload).Err(); err != nil {
		return apperr.Wrap(apperr.ErrQueue, err, "failed to enqueue task")
	}

	log.Printf("[QUEUE] TaskID=%s enqueued to %s", task.ID, q.key)
	return nil
}
