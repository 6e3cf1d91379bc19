package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-runnersurfers/internal/tracking"
)

type fixedProvider struct {
	fix tracking.Fix
	err error
}

func (p fixedProvider) CurrentPosition(context.Context) (tracking.Fix, error) { return p.fix, p.err }
func (p fixedProvider) Watch(context.Context) (<-chan tracking.Fix, error) {
	return make(chan tracking.Fix), nil
}

func clock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestStoreLifecycle(t *testing.T) {
	now, advance := clock(t0)
	s := NewStore(now)
	seed := tracking.Fix{Lat: 1, Lng: 2, AccuracyM: 5, Time: t0}

	if err := s.Pause(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	got, err := s.Start(context.Background(), fixedProvider{fix: seed})
	if err != nil || got != seed {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.Start(context.Background(), fixedProvider{fix: seed}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if sess := s.Session(); len(sess.Path) != 1 || !sess.StartedAt.Equal(t0) {
		t.Fatalf("expected seeded path, got %+v", sess)
	}

	p1 := tracking.PathPoint{Lat: 1.001, Lng: 2, Time: t0.Add(time.Second)}
	_ = s.UpdatePosition(tracking.Position{DistanceKm: 0.1, SpeedKmh: 9, PathLen: 2, Last: p1})
	_ = s.UpdateScore(15)
	_ = s.UpdateScore(10)
	sess := s.Session()
	if sess.DistanceKm != 0.1 || sess.Score != 15 || len(sess.Path) != 2 || sess.SpeedKmh != 9 {
		t.Fatalf("unexpected session %+v", sess)
	}

	if err := s.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected ErrNotPaused, got %v", err)
	}
	if err := s.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := s.Pause(); !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}

	advance(6 * time.Minute)
	final := tracking.Final{Path: []tracking.PathPoint{seed.Point(), p1}}
	final.DistanceKm = 0.12
	final.Score = 30
	out, endedAt, err := s.End(final)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if out.DistanceKm != 0.12 || out.Score != 30 || !endedAt.Equal(t0.Add(6*time.Minute)) {
		t.Fatalf("unexpected final session %+v at %v", out, endedAt)
	}
	if s.State() != StateNotRunning {
		t.Fatalf("expected not running after end")
	}
	if err := s.UpdateScore(99); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("late score update must be rejected, got %v", err)
	}
	if _, _, err := s.End(final); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on second end, got %v", err)
	}
}

func TestStoreStartGPSError(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Start(context.Background(), fixedProvider{err: tracking.ErrNoFix})
	if !errors.Is(err, ErrGPSUnavailable) {
		t.Fatalf("expected ErrGPSUnavailable, got %v", err)
	}
	if s.State() != StateNotRunning {
		t.Fatalf("failed start must leave store idle")
	}
}

func TestStateTextDecoding(t *testing.T) {
	for _, want := range []State{StateNotRunning, StateRunning, StatePaused} {
		b, _ := want.MarshalText()
		var got State
		if err := got.UnmarshalText(b); err != nil || got != want {
			t.Fatalf("%s: decoded %s, err %v", want, got, err)
		}
	}
	for _, want := range []SyncState{SyncUnsynced, SyncSyncing, SyncSynced, SyncFailed} {
		b, _ := want.MarshalText()
		var got SyncState
		if err := got.UnmarshalText(b); err != nil || got != want {
			t.Fatalf("%s: decoded %s, err %v", want, got, err)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("jogging")); err == nil {
		t.Fatalf("expected error for unknown run state")
	}
	var ss SyncState
	if err := ss.UnmarshalText([]byte("lost")); err == nil {
		t.Fatalf("expected error for unknown sync state")
	}
}
