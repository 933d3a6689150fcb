package redislist

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xagent"
)

// boundedPush appends ARGV[1] unless the list already holds ARGV[2] entries.
var boundedPush = redis.NewScript(`
local n = redis.call('LLEN', KEYS[1])
if n >= tonumber(ARGV[2]) then
	return -1
end
return redis.call('RPUSH', KEYS[1], ARGV[1])
`)

// Store implements xagent.Store on Redis lists.
type Store struct {
	cfg    Config
	client *redis.Client
	codec  xagent.Codec

	closeOnce sync.Once
	closed    atomic.Bool

	metrics *storeMetrics
}

type storeMetrics struct {
	pushed       atomic.Uint64
	popped       atomic.Uint64
	refused      atomic.Uint64
	decodeErrors atomic.Uint64
}

var _ xagent.Store = (*Store)(nil)

// NewStore connects to Redis and clears the configured prefix.
// A nil codec selects xagent.JSONCodec.
func NewStore(cfg Config, codec xagent.Codec) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewStoreWithClient(client, cfg, codec)
}

// NewStoreWithClient wraps an existing client. The store owns client and
// closes it on Close.
func NewStoreWithClient(client *redis.Client, cfg Config, codec xagent.Codec) (*Store, error) {
	if codec == nil {
		codec = xagent.JSONCodec{}
	}
	s := &Store{
		cfg:     cfg,
		client:  client,
		codec:   codec,
		metrics: &storeMetrics{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.clear(ctx); err != nil {
		return nil, fmt.Errorf("redislist: clear prefix %q: %w", cfg.Prefix, err)
	}
	return s, nil
}

func (s *Store) key(mailbox string) string { return s.cfg.Prefix + ":" + mailbox }

// Push appends msg with RPUSH (or the bounded script when Capacity is set).
func (s *Store) Push(ctx context.Context, mailbox string, msg xagent.Message) error {
	if s.closed.Load() {
		return errors.New("redis store is closed")
	}
	data, err := s.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redislist: encode: %w", err)
	}

	if s.cfg.Capacity <= 0 {
		if err := s.client.RPush(ctx, s.key(mailbox), data).Err(); err != nil {
			return err
		}
		s.metrics.pushed.Add(1)
		return nil
	}

	n, err := boundedPush.Run(ctx, s.client, []string{s.key(mailbox)}, data, s.cfg.Capacity).Int64()
	if err != nil {
		return err
	}
	if n < 0 {
		s.metrics.refused.Add(1)
		return fmt.Errorf("%w: %s", xagent.ErrMailboxFull, mailbox)
	}
	s.metrics.pushed.Add(1)
	return nil
}

// Pop removes the head with LPOP. An empty or absent list yields ok=false.
func (s *Store) Pop(ctx context.Context, mailbox string) (xagent.Message, bool, error) {
	if s.closed.Load() {
		return xagent.Message{}, false, errors.New("redis store is closed")
	}
	data, err := s.client.LPop(ctx, s.key(mailbox)).Bytes()
	if errors.Is(err, redis.Nil) {
		return xagent.Message{}, false, nil
	}
	if err != nil {
		return xagent.Message{}, false, err
	}

	msg, err := s.codec.Unmarshal(data)
	if err != nil {
		s.metrics.decodeErrors.Add(1)
		return xagent.Message{}, false, fmt.Errorf("redislist: decode: %w", err)
	}
	s.metrics.popped.Add(1)
	return msg, true, nil
}

// Len returns LLEN of the mailbox list.
func (s *Store) Len(ctx context.Context, mailbox string) (int, error) {
	n, err := s.client.LLen(ctx, s.key(mailbox)).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Mailboxes lists identities with a non-empty list under the prefix.
func (s *Store) Mailboxes(ctx context.Context) ([]string, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.cfg.Prefix+":"))
	}
	return out, nil
}

// Close clears the prefix (unless KeepOnClose) and closes the client. Idempotent.
func (s *Store) Close(ctx context.Context) error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if !s.cfg.KeepOnClose {
			if err := s.clear(ctx); err != nil {
				closeErr = err
			}
		}
		if err := s.client.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	})
	return closeErr
}

// Stats returns store telemetry.
type Stats struct {
	Pushed       uint64
	Popped       uint64
	Refused      uint64
	DecodeErrors uint64
}

// Stats returns current store metrics.
func (s *Store) Stats() Stats {
	return Stats{
		Pushed:       s.metrics.pushed.Load(),
		Popped:       s.metrics.popped.Load(),
		Refused:      s.metrics.refused.Load(),
		DecodeErrors: s.metrics.decodeErrors.Load(),
	}
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.cfg.Prefix+":*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) clear(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}

	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}

	return nil
}
