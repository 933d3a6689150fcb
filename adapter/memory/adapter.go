package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xagent"
)

const StoreName = "memory"

// Overflow policies for bounded mailboxes.
const (
	OverflowReject     = "reject"
	OverflowDropOldest = "drop-oldest"
)

func init() {
	if err := xagent.RegisterStore(StoreName, func(cfg map[string]any, _ xagent.Codec) (xagent.Store, error) {
		c := ConfigFromMap(cfg)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewStore(c), nil
	}); err != nil {
		panic(fmt.Errorf("xagent/memory: failed to register store: %w", err))
	}
}

// Config controls memory store behavior.
type Config struct {
	// Capacity bounds each mailbox (default: 0 = unbounded).
	Capacity int
	// Overflow selects what Push does on a full mailbox: "reject" returns
	// xagent.ErrMailboxFull, "drop-oldest" evicts the head (default: "reject").
	Overflow string
}

func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}
	getStr := func(k, d string) string {
		if v, ok := cfg[k].(string); ok && v != "" {
			return v
		}
		return d
	}

	return Config{
		Capacity: maxInt(0, getInt("capacity", 0)),
		Overflow: getStr("overflow", OverflowReject),
	}
}

func (c Config) Validate() error {
	if c.Capacity < 0 {
		return errors.New("memory: capacity must be >= 0")
	}
	switch c.Overflow {
	case "", OverflowReject, OverflowDropOldest:
		return nil
	default:
		return fmt.Errorf("memory: unknown overflow policy %q", c.Overflow)
	}
}

// Store implements xagent.Store with one mutex-guarded slice queue per mailbox.
// Messages are held by value; nothing is encoded.
type Store struct {
	cfg Config

	mu        sync.RWMutex
	mailboxes map[string]*mailbox

	closed atomic.Bool

	metrics *storeMetrics
}

type storeMetrics struct {
	pushed  atomic.Uint64
	popped  atomic.Uint64
	evicted atomic.Uint64
	refused atomic.Uint64
}

var _ xagent.Store = (*Store)(nil)

// NewStore creates a new in-memory mailbox store.
func NewStore(cfg Config) *Store {
	if cfg.Overflow == "" {
		cfg.Overflow = OverflowReject
	}
	return &Store{
		cfg:       cfg,
		mailboxes: make(map[string]*mailbox),
		metrics:   &storeMetrics{},
	}
}

// Push appends msg to the named mailbox, creating it on first use.
func (s *Store) Push(_ context.Context, name string, msg xagent.Message) error {
	if s.closed.Load() {
		return errors.New("memory store is closed")
	}
	mb := s.ensure(name)

	mb.mu.Lock()
	defer mb.mu.Unlock()
	// Close swaps the mailbox map under s.mu; holding the read lock across the
	// append means a push either lands before Close or fails after it.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return errors.New("memory store is closed")
	}
	if s.cfg.Capacity > 0 && len(mb.queue) >= s.cfg.Capacity {
		if s.cfg.Overflow != OverflowDropOldest {
			s.metrics.refused.Add(1)
			return fmt.Errorf("%w: %s", xagent.ErrMailboxFull, name)
		}
		mb.queue[0] = xagent.Message{}
		mb.queue = mb.queue[1:]
		s.metrics.evicted.Add(1)
	}
	mb.queue = append(mb.queue, msg)
	s.metrics.pushed.Add(1)
	return nil
}

// Pop removes the head of the mailbox. Absent mailboxes are not created.
func (s *Store) Pop(_ context.Context, name string) (xagent.Message, bool, error) {
	if s.closed.Load() {
		return xagent.Message{}, false, errors.New("memory store is closed")
	}
	s.mu.RLock()
	mb, ok := s.mailboxes[name]
	s.mu.RUnlock()
	if !ok {
		return xagent.Message{}, false, nil
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()
	if len(mb.queue) == 0 {
		return xagent.Message{}, false, nil
	}
	msg := mb.queue[0]
	mb.queue[0] = xagent.Message{}
	mb.queue = mb.queue[1:]
	s.metrics.popped.Add(1)
	return msg, true, nil
}

// Len returns the mailbox depth (0 when absent).
func (s *Store) Len(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	mb, ok := s.mailboxes[name]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue), nil
}

// Mailboxes returns the identities that have received at least one message.
func (s *Store) Mailboxes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.mailboxes))
	for name := range s.mailboxes {
		out = append(out, name)
	}
	return out
}

// Close drops every mailbox.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	s.mailboxes = make(map[string]*mailbox)
	return nil
}

// Stats returns store telemetry.
type Stats struct {
	Pushed    uint64
	Popped    uint64
	Evicted   uint64
	Refused   uint64
	Mailboxes int
}

// Stats returns current store metrics.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	n := len(s.mailboxes)
	s.mu.RUnlock()
	return Stats{
		Pushed:    s.metrics.pushed.Load(),
		Popped:    s.metrics.popped.Load(),
		Evicted:   s.metrics.evicted.Load(),
		Refused:   s.metrics.refused.Load(),
		Mailboxes: n,
	}
}

type mailbox struct {
	mu    sync.Mutex
	queue []xagent.Message
}

func (s *Store) ensure(name string) *mailbox {
	s.mu.RLock()
	mb, ok := s.mailboxes[name]
	s.mu.RUnlock()
	if ok {
		return mb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if mb, ok := s.mailboxes[name]; ok {
		return mb
	}
	mb = &mailbox{}
	s.mailboxes[name] = mb
	return mb
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
