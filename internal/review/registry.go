package review

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/novatra/novabot/internal/logging"
)

// DefaultTimeout is how long a session stays live without interaction.
const DefaultTimeout = 15 * time.Minute

// sweepSpec is the cron schedule of the expiry sweep.
const sweepSpec = "@every 1m"

// EvictFunc is called, outside the registry lock, for every session removed
// by the sweep.
type EvictFunc func(key int64, s *Session)

type entry struct {
	session    *Session
	lastActive time.Time
}

// Registry maps rendered review messages to their live sessions.
type Registry struct {
	timeout time.Duration
	onEvict EvictFunc
	now     func() time.Time
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*entry

	cron    *cron.Cron
	running bool
}

// NewRegistry creates a registry. A non-positive timeout uses DefaultTimeout.
func NewRegistry(timeout time.Duration, onEvict EvictFunc) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		timeout:  timeout,
		onEvict:  onEvict,
		now:      time.Now,
		log:      logging.WithComponent("review"),
		sessions: make(map[int64]*entry),
		cron:     cron.New(),
	}
}

// OnEvict replaces the eviction hook.
func (r *Registry) OnEvict(fn EvictFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEvict = fn
}

// Start schedules the periodic sweep.
func (r *Registry) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if _, err := r.cron.AddFunc(sweepSpec, func() { r.Sweep() }); err != nil {
		return err
	}
	r.cron.Start()
	r.running = true
	r.log.Info("review sweeper started", slog.Duration("timeout", r.timeout))
	return nil
}

// Stop halts the sweep and waits for a running one to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Put registers a session under key, usually the rendered message id.
func (r *Registry) Put(key int64, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = &entry{session: s, lastActive: r.now()}
}

// Get returns the live session for key and refreshes its idle timer.
// Expired and closed sessions are reported as missing.
func (r *Registry) Get(key int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[key]
	if !ok {
		return nil, false
	}
	if e.session.Closed() || r.now().Sub(e.lastActive) > r.timeout {
		return nil, false
	}
	e.lastActive = r.now()
	return e.session, true
}

// Remove drops a session without calling the eviction hook.
func (r *Registry) Remove(key int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
}

// Len returns the number of registered sessions, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts expired sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()
	evicted := make(map[int64]*Session)

	r.mu.Lock()
	onEvict := r.onEvict
	for key, e := range r.sessions {
		if now.Sub(e.lastActive) > r.timeout {
			evicted[key] = e.session
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()

	for key, s := range evicted {
		r.log.Debug("review session expired", slog.Int64("message_id", key), slog.Int64("batch_id", s.meta.BatchID))
		if onEvict != nil {
			onEvict(key, s)
		}
	}
	return len(evicted)
}
