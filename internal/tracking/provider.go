package tracking

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNoFix = errors.New("no gps fix available")

// Provider is the GPS source. Watch delivers fixes until ctx is cancelled, then closes the channel.
type Provider interface {
	CurrentPosition(ctx context.Context) (Fix, error)
	Watch(ctx context.Context) (<-chan Fix, error)
}

// PushProvider is fed by clients posting fixes. Only one watch is live at a time;
// fixes pushed while nobody watches update the current position and are otherwise dropped.
type PushProvider struct {
	mu       sync.Mutex
	last     Fix
	hasLast  bool
	watcher  chan Fix
	watchGen uint64
	arrived  chan struct{}
	timeout  time.Duration
}

const defaultFixTimeout = 10 * time.Second

func NewPushProvider(timeout time.Duration) *PushProvider {
	if timeout <= 0 {
		timeout = defaultFixTimeout
	}
	return &PushProvider{timeout: timeout, arrived: make(chan struct{})}
}

// Push hands a fix to the current watcher. It reports whether a watcher received it.
func (p *PushProvider) Push(fix Fix) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = fix
	if !p.hasLast {
		p.hasLast = true
		close(p.arrived)
	}
	if p.watcher == nil {
		return false
	}
	select {
	case p.watcher <- fix:
		return true
	default:
		return false
	}
}

// CurrentPosition returns the latest pushed fix, waiting up to the provider timeout for the first one.
func (p *PushProvider) CurrentPosition(ctx context.Context) (Fix, error) {
	p.mu.Lock()
	arrived := p.arrived
	p.mu.Unlock()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-arrived:
	case <-timer.C:
		return Fix{}, ErrNoFix
	case <-ctx.Done():
		return Fix{}, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, nil
}

func (p *PushProvider) Watch(ctx context.Context) (<-chan Fix, error) {
	ch := make(chan Fix, 32)

	p.mu.Lock()
	if p.watcher != nil {
		close(p.watcher)
	}
	p.watcher = ch
	p.watchGen++
	gen := p.watchGen
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.watchGen == gen && p.watcher != nil {
			close(p.watcher)
			p.watcher = nil
		}
	}()
	return ch, nil
}

// Watching reports whether a watch is currently registered.
func (p *PushProvider) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watcher != nil
}
