package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-runnersurfers/internal/tracking"
)

var (
	ErrNotRunning     = errors.New("no run in progress")
	ErrAlreadyRunning = errors.New("run already in progress")
	ErrPaused         = errors.New("run is paused")
	ErrNotPaused      = errors.New("run is not paused")
	ErrGPSUnavailable = errors.New("gps unavailable")
)

type State int

const (
	StateNotRunning State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "not_running"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "not_running":
		*s = StateNotRunning
	case "running":
		*s = StateRunning
	case "paused":
		*s = StatePaused
	default:
		return fmt.Errorf("unknown run state %q", b)
	}
	return nil
}

// Store holds the live session and enforces the run lifecycle.
// Position fields and the score are written by separate callers.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	state    State
	starting bool
	session  Session
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

// Start seeds the session from the provider's current position.
func (s *Store) Start(ctx context.Context, p tracking.Provider) (tracking.Fix, error) {
	s.mu.Lock()
	if s.state != StateNotRunning || s.starting {
		s.mu.Unlock()
		return tracking.Fix{}, ErrAlreadyRunning
	}
	s.starting = true
	s.mu.Unlock()

	seed, err := p.CurrentPosition(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		return tracking.Fix{}, fmt.Errorf("%w: %v", ErrGPSUnavailable, err)
	}

	s.state = StateRunning
	s.session = Session{
		StartedAt: s.now(),
		Path:      []tracking.PathPoint{seed.Point()},
	}
	return seed, nil
}

// UpdatePosition applies the fix handler's fields: distance, speed and path.
func (s *Store) UpdatePosition(pos tracking.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNotRunning {
		return ErrNotRunning
	}
	if pos.DistanceKm > s.session.DistanceKm {
		s.session.DistanceKm = pos.DistanceKm
	}
	s.session.SpeedKmh = pos.SpeedKmh
	if pos.PathLen > len(s.session.Path) {
		s.session.Path = append(s.session.Path, pos.Last)
	}
	return nil
}

// UpdateScore applies the score tick's field. The score never goes down.
func (s *Store) UpdateScore(score int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNotRunning {
		return ErrNotRunning
	}
	if score > s.session.Score {
		s.session.Score = score
	}
	return nil
}

func (s *Store) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateNotRunning:
		return ErrNotRunning
	case StatePaused:
		return ErrPaused
	}
	s.state = StatePaused
	s.session.SpeedKmh = 0
	return nil
}

func (s *Store) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateNotRunning:
		return ErrNotRunning
	case StateRunning:
		return ErrNotPaused
	}
	s.state = StateRunning
	return nil
}

// End finalizes the session from the tracker's stopped state and clears the store.
func (s *Store) End(final tracking.Final) (Session, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNotRunning {
		return Session{}, time.Time{}, ErrNotRunning
	}

	out := s.session.clone()
	if final.DistanceKm > out.DistanceKm {
		out.DistanceKm = final.DistanceKm
	}
	if final.Score > out.Score {
		out.Score = final.Score
	}
	if len(final.Path) >= len(out.Path) {
		out.Path = append([]tracking.PathPoint(nil), final.Path...)
	}
	out.SpeedKmh = 0

	endedAt := s.now()
	s.state = StateNotRunning
	s.session = Session{}
	return out, endedAt, nil
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.clone()
}
