package tracking

import (
	"time"

	"backend-runnersurfers/internal/shared/geo"
)

// Listener receives run events from the tracker goroutine. Implementations must not
// call back into the Tracker that invoked them.
type Listener interface {
	PositionChanged(Position)
	ScoreChanged(Scoring)
	ScoreActivated(Snapshot)
	WarmUpReset(Snapshot)
	VehicleDetected(Fix)
	BoostExpired(time.Time)
}

// FixObserver is an optional Listener extension that sees every fix and its verdict,
// including low-accuracy fixes that never reach PositionChanged.
type FixObserver interface {
	FixProcessed(Fix, Result)
}

type NopListener struct{}

func (NopListener) PositionChanged(Position) {}
func (NopListener) ScoreChanged(Scoring)     {}
func (NopListener) ScoreActivated(Snapshot)  {}
func (NopListener) WarmUpReset(Snapshot)     {}
func (NopListener) VehicleDetected(Fix)      {}
func (NopListener) BoostExpired(time.Time)   {}

type Config struct {
	Filter       FilterConfig
	Movement     MovementConfig
	TickInterval time.Duration
	// StaleTicks is how many movement ticks a speed reading stays valid without a fresh fix.
	StaleTicks int
}

func DefaultConfig() Config {
	return Config{
		Filter:       DefaultFilterConfig(),
		Movement:     DefaultMovementConfig(),
		TickInterval: time.Second,
		StaleTicks:   10,
	}
}

// engine holds the live run state. It is driven by exactly one goroutine.
type engine struct {
	cfg      Config
	filter   *Filter
	movement *Movement
	listener Listener

	bonuses   Bonuses
	startedAt time.Time
	paused    bool
	stopped   bool

	pos        Position
	path       []PathPoint
	score      Scoring
	staleTicks int
}

func newEngine(cfg Config, l Listener) *engine {
	if l == nil {
		l = NopListener{}
	}
	return &engine{
		cfg:      cfg,
		filter:   NewFilter(cfg.Filter),
		movement: NewMovement(cfg.Movement),
		listener: l,
	}
}

func (e *engine) start(seed Fix, b Bonuses, startedAt time.Time) {
	e.bonuses = b
	e.startedAt = startedAt
	e.paused = false
	e.stopped = false
	e.pos = Position{}
	e.score = Scoring{}
	e.path = e.path[:0]
	e.staleTicks = 0
	e.filter.Reset()
	e.filter.Seed(seed)
	e.path = append(e.path, seed.Point())
	e.pos.PathLen = len(e.path)
	e.pos.Last = seed.Point()
	e.pos.LastVerdict = VerdictSeed
	e.movement.Start()
}

func (e *engine) handleFix(fix Fix) Result {
	if e.paused || e.stopped {
		return Result{}
	}

	r := e.filter.Process(fix)
	if o, ok := e.listener.(FixObserver); ok {
		o.FixProcessed(fix, r)
	}
	if r.Verdict == VerdictLowAccuracy {
		return r
	}

	if r.OnPath {
		e.path = append(e.path, fix.Point())
		e.pos.PathLen = len(e.path)
		e.pos.Last = fix.Point()
	}
	if r.Verdict == VerdictAccepted {
		e.pos.DistanceKm += r.DistanceKm
	}
	e.pos.LastVerdict = r.Verdict

	var ev Event
	if r.UpdateSpeed {
		e.pos.SpeedKmh = r.SpeedKmh
		e.staleTicks = 0
		ev = e.movement.Observe(r.SpeedKmh)
	}

	e.listener.PositionChanged(e.pos)
	if r.Verdict == VerdictVehicle && r.Warn {
		e.listener.VehicleDetected(fix)
	}
	if ev == EventReset {
		e.zeroRate()
		e.listener.WarmUpReset(e.snapshot())
	}
	return r
}

func (e *engine) movementTick() Event {
	if e.paused || e.stopped {
		return EventNone
	}

	e.staleTicks++
	if e.cfg.StaleTicks > 0 && e.staleTicks > e.cfg.StaleTicks && e.pos.SpeedKmh != 0 {
		e.pos.SpeedKmh = 0
		e.movement.Observe(0)
		e.listener.PositionChanged(e.pos)
	}

	ev := e.movement.Tick()
	switch ev {
	case EventScoreActivated:
		e.listener.ScoreActivated(e.snapshot())
	case EventReset:
		e.zeroRate()
		e.listener.WarmUpReset(e.snapshot())
	}
	if e.movement.State() != StateScoreActive {
		e.zeroRate()
	}
	return ev
}

func (e *engine) scoreTick(now time.Time) {
	if e.paused || e.stopped {
		return
	}
	if e.movement.State() != StateScoreActive || !e.movement.HumanPace(e.pos.SpeedKmh) {
		e.zeroRate()
		return
	}

	boostPct := 0.0
	if e.bonuses.boostActive(now) {
		boostPct = e.bonuses.BoostScoreBonusPct
	} else if !e.bonuses.BoostEndsAt.IsZero() {
		e.bonuses.BoostEndsAt = time.Time{}
		e.bonuses.BoostScoreBonusPct = 0
		e.listener.BoostExpired(now)
	}

	mult := TickMultiplier(e.bonuses.Level, e.bonuses.ItemCoinBonusPct, boostPct)
	inc := ScoreIncrement(e.pos.SpeedKmh, mult)
	e.score.Score += inc
	e.score.PointsPerSecond = inc
	e.listener.ScoreChanged(e.score)
}

func (e *engine) zeroRate() {
	if e.score.PointsPerSecond == 0 {
		return
	}
	e.score.PointsPerSecond = 0
	e.listener.ScoreChanged(e.score)
}

func (e *engine) pause() bool {
	if e.paused || e.stopped {
		return false
	}
	e.paused = true
	e.movement.Stop()
	// Distance covered while paused must not be credited on resume.
	e.filter.Reset()
	e.pos.SpeedKmh = 0
	e.zeroRate()
	return true
}

func (e *engine) resume() bool {
	if !e.paused || e.stopped {
		return false
	}
	e.paused = false
	e.staleTicks = 0
	e.movement.Start()
	return true
}

func (e *engine) stop() Final {
	e.stopped = true
	e.movement.Stop()
	e.score.PointsPerSecond = 0
	f := Final{Snapshot: e.snapshot()}
	f.Path = append([]PathPoint(nil), e.path...)
	return f
}

func (e *engine) setBonuses(b Bonuses) {
	e.bonuses = b
}

func (e *engine) snapshot() Snapshot {
	return Snapshot{
		Position:      e.pos,
		Scoring:       e.score,
		State:         e.movement.State(),
		MovingSeconds: e.movement.MovingSeconds(),
		Paused:        e.paused,
		StartedAt:     e.startedAt,
		Pace:          geo.FormatPace(e.pos.SpeedKmh),
	}
}
