package redisconn

import (
	"context"
	"log"
	"sync"

	"github.com/go-redis/redis/v8"
)

var (
	once   sync.Once
	client *redis.Client
)

// Options describes how to reach the backing store.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Get returns the process-wide Redis client, creating it on first use.
// The client is safe for concurrent use and is never torn down mid-process.
func Get(opts Options) *redis.Client {
	once.Do(func() {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
	})
	return client
}

// MustConnect returns the shared client and verifies the connection once,
// exiting the process if the store is unreachable at startup.
func MustConnect(ctx context.Context, opts Options) *redis.Client {
	rdb := Get(opts)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("[INIT] Failed to connect to Redis: ", err)
	}
	log.Printf("[INIT] Connected to Redis at %s", opts.Addr)
	return rdb
}
