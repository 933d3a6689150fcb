// Package schedule publishes control commands to agents on cron schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xagent"
)

// Entry sends Command to Target each time Spec fires.
type Entry struct {
	// Spec is a standard five-field cron expression or a descriptor such as "@every 30s".
	Spec    string `yaml:"spec"`
	Target  string `yaml:"target"`
	Command string `yaml:"command"`
}

func (e Entry) Validate() error {
	if e.Target == "" {
		return errors.New("schedule: target required")
	}
	if e.Command == "" {
		return errors.New("schedule: command required")
	}
	if _, err := cron.ParseStandard(e.Spec); err != nil {
		return fmt.Errorf("schedule: spec %q: %w", e.Spec, err)
	}
	return nil
}

// Scheduler owns a cron runner bound to a bus.
type Scheduler struct {
	bus    xagent.MessageBus
	logger *xlog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[cron.EntryID]Entry
	fired   map[cron.EntryID]uint64
	ctx     context.Context
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *xlog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a stopped scheduler publishing through bus.
func New(bus xagent.MessageBus, opts ...Option) *Scheduler {
	s := &Scheduler{
		bus:     bus,
		logger:  xlog.Default(),
		cron:    cron.New(),
		entries: make(map[cron.EntryID]Entry),
		fired:   make(map[cron.EntryID]uint64),
		ctx:     context.Background(),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// Add registers e and returns its id.
func (s *Scheduler) Add(e Entry) (cron.EntryID, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	// The job reads id under s.mu, which is held until id and the entry are
	// recorded, so a runner that is already started cannot fire early.
	s.mu.Lock()
	defer s.mu.Unlock()
	var id cron.EntryID
	id, err := s.cron.AddFunc(e.Spec, func() {
		s.mu.Lock()
		jid := id
		s.mu.Unlock()
		_ = s.fire(jid)
	})
	if err != nil {
		return 0, err
	}
	s.entries[id] = e
	return id, nil
}

// Remove unregisters an entry.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)
	s.mu.Lock()
	delete(s.entries, id)
	delete(s.fired, id)
	s.mu.Unlock()
}

// Fired reports how many times an entry has published its command.
func (s *Scheduler) Fired(id cron.EntryID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired[id]
}

// Run starts the cron runner and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// Fire publishes the command of entry id immediately.
func (s *Scheduler) Fire(id cron.EntryID) error {
	return s.fire(id)
}

func (s *Scheduler) fire(id cron.EntryID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	ctx := s.ctx
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("schedule: unknown entry %d", id)
	}

	if err := s.bus.PublishCommand(ctx, e.Target, e.Command); err != nil {
		s.logger.Warn().Err(err).Str("target", e.Target).Str("command", e.Command).Msg("scheduled command failed")
		return err
	}
	s.mu.Lock()
	s.fired[id]++
	s.mu.Unlock()
	s.logger.Debug().Str("target", e.Target).Str("command", e.Command).Str("spec", e.Spec).Msg("scheduled command published")
	return nil
}
