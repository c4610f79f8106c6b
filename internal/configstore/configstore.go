package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/go-redis/redis/v8"

	"submission-relay/internal/apperr"
	"submission-relay/internal/models"
)

const (
	hashKey     = "config"
	fieldCSS    = "css_string"
	fieldQuotes = "quotes"
)

// Store holds the small key-value configuration (template text, quote list)
// that the out-of-process worker reads. Backed by a single Redis hash.
type Store struct {
	rdb *redis.Client
}

// New creates a Store over the shared Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// WorkerConfig is the full content of the store; unset fields read as "".
type WorkerConfig struct {
	CSSString string `json:"css_string"`
	Quotes    string `json:"quotes"`
}

// Get reads both fields, treating missing fields as empty strings.
func (s *Store) Get(ctx context.Context) (*WorkerConfig, error) {
	css, err := s.rdb.HGet(ctx, hashKey, fieldCSS).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "failed to fetch configuration")
	}
	quotes, err := s.rdb.HGet(ctx, hashKey, fieldQuotes).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "failed to fetch configuration")
	}
	return &WorkerConfig{CSSString: css, Quotes: quotes}, nil
}

// Set updates whichever fields are non-empty. A quotes payload must be a
// JSON array of {author, quote} objects.
func (s *Store) Set(ctx context.Context, cssString, quotesString string) error {
	if quotesString != "" {
		if err := validateQuotes(quotesString); err != nil {
			return err
		}
	}

	updates := map[string]interface{}{}
	if cssString != "" {
		updates[fieldCSS] = cssString
	}
	if quotesString != "" {
		updates[fieldQuotes] = quotesString
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.rdb.HSet(ctx, hashKey, updates).Err(); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "failed to update configuration")
	}

	log.Printf("[CONFIG] Updated %d configuration field(s)", len(updates))
	return nil
}

// Reset deletes both fields.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.rdb.HDel(ctx, hashKey, fieldCSS, fieldQuotes).Err(); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "failed to reset configuration")
	}
	log.Print("[CONFIG] Reset configuration")
	return nil
}

func validateQuotes(quotesString string) error {
	var quotes []models.Quote
	if err := json.Unmarshal([]byte(quotesString), &quotes); err != nil {
		return apperr.New(apperr.ErrValidation, "invalid JSON format for quotes")
	}
	for _, q := range quotes {
		if q.Author == "" || q.Quote == "" {
			return apperr.New(apperr.ErrValidation, "each quote must have 'author' and 'quote' fields")
		}
	}
	return nil
}
