// Package registry owns the running stream clients, at most one per strategy.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"signalrelay/src/model"
	"signalrelay/src/stream"
)

var ErrClosed = errors.New("registry: shut down")

// Runner is the part of *stream.Client the registry drives.
type Runner interface {
	Start()
	Stop()
	State() stream.State
}

// Factory builds a fresh, not yet started client for a strategy snapshot.
type Factory func(strategy model.Strategy) Runner

// StatusStore persists the Active/Inactive flag of a strategy.
type StatusStore interface {
	SetStatus(ctx context.Context, id uint, status string) error
}

// Registry maps strategy ids to running clients. Lifecycle calls for the same id are
// serialized; calls for different ids run in parallel.
type Registry struct {
	factory Factory
	status  StatusStore
	log     *logrus.Entry

	mu      sync.Mutex
	clients map[uint]*entry
	locks   map[uint]*sync.Mutex
	closed  bool
}

func New(factory Factory, status StatusStore, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		factory: factory,
		status:  status,
		log:     log.WithField("component", "registry"),
		clients: make(map[uint]*entry),
		locks:   make(map[uint]*sync.Mutex),
	}
}

func (r *Registry) keyLock(id uint) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// entry is a running client together with the record it was built from.
type entry struct {
	runner   Runner
	strategy model.Strategy
}

func (r *Registry) get(id uint) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	return e, ok
}

func (r *Registry) take(id uint) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	delete(r.clients, id)
	return e, ok
}

func (r *Registry) put(e *entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.clients[e.strategy.ID] = e
	return nil
}

// Activate starts a client for s unless one is already running, then marks s Active.
// When the status write fails the new client is stopped and dropped again.
func (r *Registry) Activate(ctx context.Context, s *model.Strategy) error {
	l := r.keyLock(s.ID)
	l.Lock()
	defer l.Unlock()

	if _, ok := r.get(s.ID); ok {
		return r.markActive(ctx, s.ID, nil)
	}
	started, err := r.start(*s)
	if err != nil {
		return err
	}
	return r.markActive(ctx, s.ID, started)
}

// Replace stores an edit of s through commit while no client of s is running.
// A running client is stopped before commit and a client built from s is started
// after it; the result reports whether that happened. Without a running client
// only commit runs, so a concurrent Deactivate is never undone. When commit fails
// the previous client is started again. Stored status is not written.
func (r *Registry) Replace(s *model.Strategy, commit func() error) (bool, error) {
	l := r.keyLock(s.ID)
	l.Lock()
	defer l.Unlock()

	old, ok := r.take(s.ID)
	if !ok {
		return false, commit()
	}

	log := r.log.WithFields(logrus.Fields{"strategy_id": s.ID, "strategy": s.Name})
	old.runner.Stop()
	log.Info("Stopped client for restart")

	if err := commit(); err != nil {
		if _, startErr := r.start(old.strategy); startErr != nil {
			log.WithError(startErr).Warn("Previous client not resumed, strategy stays Active without a client")
		}
		return false, err
	}

	if _, err := r.start(*s); err != nil {
		log.WithError(err).Warn("Edited strategy stays Active without a client")
		return false, fmt.Errorf("start strategy %d: %w", s.ID, err)
	}
	return true, nil
}

func (r *Registry) start(s model.Strategy) (Runner, error) {
	c := r.factory(s)
	if err := r.put(&entry{runner: c, strategy: s}); err != nil {
		return nil, err
	}
	c.Start()
	r.log.WithFields(logrus.Fields{"strategy_id": s.ID, "strategy": s.Name}).Info("Strategy client started")
	return c, nil
}

func (r *Registry) markActive(ctx context.Context, id uint, started Runner) error {
	if err := r.status.SetStatus(ctx, id, model.StrategyStatusActive); err != nil {
		if started != nil {
			r.take(id)
			started.Stop()
		}
		r.log.WithError(err).WithField("strategy_id", id).Error("Failed to mark strategy active, new client stopped")
		return fmt.Errorf("mark strategy %d active: %w", id, err)
	}
	return nil
}

// Deactivate stops the client of id, if any, and marks the strategy Inactive.
func (r *Registry) Deactivate(ctx context.Context, id uint) error {
	l := r.keyLock(id)
	l.Lock()
	defer l.Unlock()

	if e, ok := r.take(id); ok {
		e.runner.Stop()
		r.log.WithField("strategy_id", id).Info("Strategy client stopped")
	}
	if err := r.status.SetStatus(ctx, id, model.StrategyStatusInactive); err != nil {
		return fmt.Errorf("mark strategy %d inactive: %w", id, err)
	}
	return nil
}

// Forget stops the client of id without touching the stored status.
func (r *Registry) Forget(id uint) {
	l := r.keyLock(id)
	l.Lock()
	defer l.Unlock()

	if e, ok := r.take(id); ok {
		e.runner.Stop()
		r.log.WithField("strategy_id", id).Info("Strategy client removed")
	}
}

// StopAll stops every client in parallel and refuses new ones afterwards.
// Stored statuses are left as they are so Active strategies resume on next start.
func (r *Registry) StopAll() {
	r.mu.Lock()
	r.closed = true
	ids := make([]uint, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			l := r.keyLock(id)
			l.Lock()
			defer l.Unlock()
			if e, ok := r.take(id); ok {
				e.runner.Stop()
			}
		}(id)
	}
	wg.Wait()
	r.log.WithField("count", len(ids)).Info("All strategy clients stopped")
}

func (r *Registry) IsRunning(id uint) bool {
	_, ok := r.get(id)
	return ok
}

// States reports the connection state of every running client.
func (r *Registry) States() map[uint]stream.State {
	r.mu.Lock()
	clients := make(map[uint]Runner, len(r.clients))
	for id, e := range r.clients {
		clients[id] = e.runner
	}
	r.mu.Unlock()

	out := make(map[uint]stream.State, len(clients))
	for id, c := range clients {
		out[id] = c.State()
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
