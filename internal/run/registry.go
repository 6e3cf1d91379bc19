package run

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// slot counts the requests holding a controller. gen moves on every Acquire so an
// eviction decided on a stale view is abandoned.
type slot struct {
	c    *Controller
	refs int
	gen  uint64
}

// Registry holds one Controller per runner while it has something to keep:
// a live run, a request in flight, or a finished run that has not synced yet.
type Registry struct {
	deps Deps

	mu          sync.RWMutex
	controllers map[string]*slot
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps.withDefaults(), controllers: map[string]*slot{}}
}

// Acquire returns the runner's controller, creating it on first use.
// The caller must call release once done; the last release drops an idle controller.
func (r *Registry) Acquire(userID string) (*Controller, func()) {
	r.mu.Lock()
	s, ok := r.controllers[userID]
	if !ok {
		s = &slot{c: NewController(userID, r.deps)}
		r.controllers[userID] = s
	}
	s.refs++
	s.gen++
	r.mu.Unlock()

	var once sync.Once
	return s.c, func() { once.Do(func() { r.release(userID, s) }) }
}

func (r *Registry) release(userID string, s *slot) {
	r.mu.Lock()
	s.refs--
	refs, gen := s.refs, s.gen
	r.mu.Unlock()
	if refs == 0 {
		r.evict(userID, s, gen)
	}
}

// evict drops s if it is still unreferenced, unchanged since gen, and idle.
// The idle check runs outside r.mu since it waits on the controller lock.
func (r *Registry) evict(userID string, s *slot, gen uint64) bool {
	if !s.c.idle() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.controllers[userID] != s || s.refs > 0 || s.gen != gen {
		return false
	}
	delete(r.controllers, userID)
	return true
}

// Lookup returns an existing controller without pinning it.
func (r *Registry) Lookup(userID string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.controllers[userID]
	if !ok {
		return nil, false
	}
	return s.c, true
}

// Len counts the controllers currently held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// Sweep drops controllers whose pending runs have synced since their last release.
func (r *Registry) Sweep() int {
	type candidate struct {
		userID string
		s      *slot
		gen    uint64
	}
	r.mu.RLock()
	var cands []candidate
	for id, s := range r.controllers {
		if s.refs == 0 {
			cands = append(cands, candidate{id, s, s.gen})
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, c := range cands {
		if r.evict(c.userID, c.s, c.gen) {
			n++
		}
	}
	return n
}

// Run sweeps on every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Debug().Int("dropped", n).Int("held", r.Len()).Msg("run controllers swept")
			}
		}
	}
}

// RefreshBonuses satisfies profile.BonusRefresher.
func (r *Registry) RefreshBonuses(ctx context.Context, userID string) error {
	c, ok := r.Lookup(userID)
	if !ok {
		return nil
	}
	return c.RefreshBonuses(ctx)
}

// Active counts runners with a run in progress.
func (r *Registry) Active() int {
	n := 0
	for _, c := range r.snapshot() {
		if c.State() != StateNotRunning {
			n++
		}
	}
	return n
}

// Shutdown ends every live run so results reach the syncer before exit.
func (r *Registry) Shutdown(ctx context.Context) {
	for _, c := range r.snapshot() {
		if c.State() == StateNotRunning {
			continue
		}
		if _, err := c.End(ctx); err != nil {
			r.deps.Metrics.RunAbandoned()
			log.Error().Err(err).Str("user_id", c.UserID()).Msg("end run on shutdown")
		}
	}
}

func (r *Registry) snapshot() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Controller, 0, len(r.controllers))
	for _, s := range r.controllers {
		out = append(out, s.c)
	}
	return out
}
