// Package redis stores checkout sessions and carts in Redis as JSON values
// with a sliding TTL.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/eubiosis/checkout/internal/domain/cart"
	"github.com/eubiosis/checkout/internal/domain/checkout"
)

// NewClient connects to the Redis at url.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// store is a typed JSON key-value store.
type store[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s store[T]) key(id string) string {
	return s.prefix + ":" + id
}

func (s store[T]) get(ctx context.Context, id string, notFound error) (*T, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", s.key(id))
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s", s.key(id))
	}
	return v, nil
}

func (s store[T]) set(ctx context.Context, id string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", s.key(id))
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", s.key(id))
	}
	return nil
}

func (s store[T]) del(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Wrapf(err, "delete %s", s.key(id))
	}
	return nil
}

// SessionStore implements checkout.SessionStore.
type SessionStore struct {
	s store[checkout.Session]
}

var _ checkout.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a SessionStore. Every save extends the TTL.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{s: store[checkout.Session]{client: client, prefix: "checkout", ttl: ttl}}
}

func (st *SessionStore) Get(ctx context.Context, id string) (*checkout.Session, error) {
	return st.s.get(ctx, id, checkout.ErrSessionNotFound)
}

func (st *SessionStore) Save(ctx context.Context, sess *checkout.Session) error {
	return st.s.set(ctx, sess.ID, sess)
}

// CartStore implements cart.Repository.
type CartStore struct {
	s store[cart.Cart]
}

var _ cart.Repository = (*CartStore)(nil)

// NewCartStore creates a CartStore.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{s: store[cart.Cart]{client: client, prefix: "cart", ttl: ttl}}
}

func (st *CartStore) Get(ctx context.Context, sessionID string) (*cart.Cart, error) {
	return st.s.get(ctx, sessionID, cart.ErrNotFound)
}

func (st *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	return st.s.set(ctx, c.SessionID, c)
}

func (st *CartStore) Delete(ctx context.Context, sessionID string) error {
	return st.s.del(ctx, sessionID)
}
