package tracking

import "fmt"

type State int

const (
	StateIdle State = iota
	StateNotMoving
	StateWarmingUp
	StateScoreActive
)

func (s State) String() string {
	switch s {
	case StateNotMoving:
		return "not_moving"
	case StateWarmingUp:
		return "warming_up"
	case StateScoreActive:
		return "score_active"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StateIdle
	case "not_moving":
		*s = StateNotMoving
	case "warming_up":
		*s = StateWarmingUp
	case "score_active":
		*s = StateScoreActive
	default:
		return fmt.Errorf("unknown movement state %q", b)
	}
	return nil
}

type Event int

const (
	EventNone Event = iota
	EventScoreActivated
	EventReset
)

type MovementConfig struct {
	MinHumanKmh   float64
	MaxHumanKmh   float64
	WarmUpSeconds int
}

func DefaultMovementConfig() MovementConfig {
	return MovementConfig{MinHumanKmh: 2, MaxHumanKmh: 20, WarmUpSeconds: 60}
}

// Movement gates score accrual behind a continuous stretch of human-pace movement.
type Movement struct {
	cfg           MovementConfig
	state         State
	movingSeconds int
	speed         float64
}

func NewMovement(cfg MovementConfig) *Movement {
	return &Movement{cfg: cfg}
}

func (m *Movement) HumanPace(speedKmh float64) bool {
	return speedKmh >= m.cfg.MinHumanKmh && speedKmh <= m.cfg.MaxHumanKmh
}

func (m *Movement) Start() {
	m.state = StateNotMoving
	m.movingSeconds = 0
	m.speed = 0
}

func (m *Movement) Stop() {
	m.state = StateIdle
	m.movingSeconds = 0
	m.speed = 0
}

// Observe records the latest speed. Leaving human pace drops the warm-up immediately.
func (m *Movement) Observe(speedKmh float64) Event {
	m.speed = speedKmh
	if m.state == StateIdle || m.HumanPace(speedKmh) {
		return EventNone
	}
	return m.reset()
}

// Tick is called once per second.
func (m *Movement) Tick() Event {
	if m.state == StateIdle {
		return EventNone
	}
	if !m.HumanPace(m.speed) {
		return m.reset()
	}
	m.movingSeconds++
	if m.state == StateNotMoving {
		m.state = StateWarmingUp
	}
	if m.state == StateWarmingUp && m.movingSeconds >= m.cfg.WarmUpSeconds {
		m.state = StateScoreActive
		return EventScoreActivated
	}
	return EventNone
}

func (m *Movement) reset() Event {
	wasMoving := m.state != StateNotMoving || m.movingSeconds > 0
	m.state = StateNotMoving
	m.movingSeconds = 0
	if wasMoving {
		return EventReset
	}
	return EventNone
}

func (m *Movement) State() State       { return m.state }
func (m *Movement) MovingSeconds() int { return m.movingSeconds }
func (m *Movement) Speed() float64     { return m.speed }
