package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrTrackerStopped = errors.New("tracker stopped")
	ErrAlreadyPaused  = errors.New("tracker already paused")
	ErrNotPaused      = errors.New("tracker not paused")
)

// Ticker is the subset of time.Ticker the tracker needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func NewStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

type cmdKind int

const (
	cmdPause cmdKind = iota
	cmdResume
	cmdStop
	cmdBonuses
)

type command struct {
	kind    cmdKind
	bonuses Bonuses
	err     chan error
	final   chan Final
}

// Tracker runs one live run on its own goroutine. Fixes, the movement tick, the score
// tick and control commands are all serialized through that goroutine.
type Tracker struct {
	cfg       Config
	provider  Provider
	newTicker TickerFunc

	eng  *engine
	cmds chan command
	done chan struct{}

	snapMu sync.RWMutex
	snap   Snapshot

	startOnce sync.Once
	started   atomic.Bool
}

func NewTracker(cfg Config, provider Provider, listener Listener, newTicker TickerFunc) *Tracker {
	if newTicker == nil {
		newTicker = NewStdTicker
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	t := &Tracker{
		cfg:       cfg,
		provider:  provider,
		newTicker: newTicker,
		cmds:      make(chan command),
		done:      make(chan struct{}),
	}
	t.eng = newEngine(cfg, &publishingListener{inner: listener, t: t})
	return t
}

// Start seeds the run and launches the loop. Calling it twice has no effect.
func (t *Tracker) Start(ctx context.Context, seed Fix, b Bonuses, startedAt time.Time) {
	t.startOnce.Do(func() {
		t.eng.start(seed, b, startedAt)
		t.publish()
		t.started.Store(true)
		go t.loop(ctx)
	})
}

func (t *Tracker) Pause() error {
	return t.send(command{kind: cmdPause})
}

func (t *Tracker) Resume() error {
	return t.send(command{kind: cmdResume})
}

// SetBonuses swaps the per-tick multiplier inputs, e.g. after a boost is bought mid-run.
func (t *Tracker) SetBonuses(b Bonuses) error {
	return t.send(command{kind: cmdBonuses, bonuses: b})
}

// Stop halts the GPS watch and both tickers before returning the final state.
func (t *Tracker) Stop() Final {
	if !t.started.Load() {
		return t.eng.stop()
	}
	reply := make(chan Final, 1)
	select {
	case t.cmds <- command{kind: cmdStop, final: reply}:
		return <-reply
	case <-t.done:
		return t.eng.stop()
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	return t.snap
}

// Done is closed when the loop has exited.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

func (t *Tracker) send(c command) error {
	if !t.started.Load() {
		return ErrTrackerStopped
	}
	c.err = make(chan error, 1)
	select {
	case t.cmds <- c:
		return <-c.err
	case <-t.done:
		return ErrTrackerStopped
	}
}

func (t *Tracker) publish() {
	s := t.eng.snapshot()
	t.snapMu.Lock()
	t.snap = s
	t.snapMu.Unlock()
}

func (t *Tracker) loop(ctx context.Context) {
	defer close(t.done)

	var (
		fixes       <-chan Fix
		cancelWatch context.CancelFunc
		moveTicker  Ticker
		scoreTicker Ticker
		moveC       <-chan time.Time
		scoreC      <-chan time.Time
	)

	startWatch := func() {
		wctx, cancel := context.WithCancel(ctx)
		ch, err := t.provider.Watch(wctx)
		if err != nil {
			cancel()
			log.Error().Err(err).Msg("gps watch failed")
			return
		}
		fixes = ch
		cancelWatch = cancel
	}
	stopWatch := func() {
		if cancelWatch != nil {
			cancelWatch()
			cancelWatch = nil
		}
		fixes = nil
	}
	startMovement := func() {
		moveTicker = t.newTicker(t.cfg.TickInterval)
		moveC = moveTicker.C()
	}
	stopScore := func() {
		if scoreTicker != nil {
			scoreTicker.Stop()
			scoreTicker = nil
		}
		scoreC = nil
	}
	stopAll := func() {
		stopWatch()
		if moveTicker != nil {
			moveTicker.Stop()
			moveTicker = nil
		}
		moveC = nil
		stopScore()
	}
	syncScoreTicker := func() {
		active := t.eng.movement.State() == StateScoreActive
		switch {
		case active && scoreTicker == nil:
			scoreTicker = t.newTicker(t.cfg.TickInterval)
			scoreC = scoreTicker.C()
		case !active && scoreTicker != nil:
			stopScore()
		}
	}

	startWatch()
	startMovement()
	defer stopAll()

	for {
		select {
		case fix, ok := <-fixes:
			if !ok {
				fixes = nil
				continue
			}
			t.eng.handleFix(fix)
			syncScoreTicker()
			t.publish()

		case <-moveC:
			t.eng.movementTick()
			syncScoreTicker()
			t.publish()

		case now := <-scoreC:
			t.eng.scoreTick(now)
			t.publish()

		case c := <-t.cmds:
			switch c.kind {
			case cmdPause:
				if !t.eng.pause() {
					c.err <- ErrAlreadyPaused
					continue
				}
				stopAll()
				t.publish()
				c.err <- nil
			case cmdResume:
				if !t.eng.resume() {
					c.err <- ErrNotPaused
					continue
				}
				startWatch()
				startMovement()
				t.publish()
				c.err <- nil
			case cmdBonuses:
				t.eng.setBonuses(c.bonuses)
				c.err <- nil
			case cmdStop:
				stopAll()
				final := t.eng.stop()
				t.publish()
				c.final <- final
				return
			}

		case <-ctx.Done():
			t.eng.stop()
			t.publish()
			return
		}
	}
}

// publishingListener refreshes the tracker snapshot before forwarding, so listeners
// that read Snapshot see the state the event describes.
type publishingListener struct {
	inner Listener
	t     *Tracker
}

func (p *publishingListener) PositionChanged(pos Position) {
	p.t.publish()
	if p.inner != nil {
		p.inner.PositionChanged(pos)
	}
}

func (p *publishingListener) ScoreChanged(s Scoring) {
	p.t.publish()
	if p.inner != nil {
		p.inner.ScoreChanged(s)
	}
}

func (p *publishingListener) ScoreActivated(s Snapshot) {
	if p.inner != nil {
		p.inner.ScoreActivated(s)
	}
}

func (p *publishingListener) WarmUpReset(s Snapshot) {
	if p.inner != nil {
		p.inner.WarmUpReset(s)
	}
}

func (p *publishingListener) VehicleDetected(f Fix) {
	if p.inner != nil {
		p.inner.VehicleDetected(f)
	}
}

func (p *publishingListener) BoostExpired(now time.Time) {
	if p.inner != nil {
		p.inner.BoostExpired(now)
	}
}

func (p *publishingListener) FixProcessed(f Fix, r Result) {
	if o, ok := p.inner.(FixObserver); ok {
		o.FixProcessed(f, r)
	}
}
