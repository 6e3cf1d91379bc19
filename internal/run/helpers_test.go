package run

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-runnersurfers/internal/profile"
	"backend-runnersurfers/internal/shared/geo"
	"backend-runnersurfers/internal/tracking"
)

var kmPerDegreeLat = geo.HaversineKm(0, 0, 1, 0)

func northOf(from tracking.Fix, km float64, dt time.Duration) tracking.Fix {
	return tracking.Fix{Lat: from.Lat + km/kmPerDegreeLat, Lng: from.Lng, AccuracyM: 5, Time: from.Time.Add(dt)}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type manualTicker struct {
	c chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               {}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) New(time.Duration) tracking.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	tk := &manualTicker{c: make(chan time.Time)}
	f.tickers = append(f.tickers, tk)
	return tk
}

func (f *tickerFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (f *tickerFactory) fire(i int, at time.Time) {
	f.mu.Lock()
	tk := f.tickers[i]
	f.mu.Unlock()
	tk.c <- at
}

type recordingSink struct {
	mu         sync.Mutex
	kilometers []int
	milestones []int
	levels     []int
	activated  int
	vehicles   int
	boosts     []string
	syncFailed int
}

func (s *recordingSink) Kilometer(_ string, km int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kilometers = append(s.kilometers, km)
}

func (s *recordingSink) ExpMilestone(_ string, p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.milestones = append(s.milestones, p)
}

func (s *recordingSink) LevelUp(_ string, lvl int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels = append(s.levels, lvl)
}

func (s *recordingSink) BoostExpired(_ string, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boosts = append(s.boosts, id)
}

func (s *recordingSink) ScoreActivated(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated++
}

func (s *recordingSink) VehicleWarning(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles++
}

func (s *recordingSink) SyncFailed(string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncFailed++
}

var errDown = errors.New("database down")

// flakyPersister fails while down is set and records what it delivered.
type flakyPersister struct {
	mu        sync.Mutex
	down      bool
	failStats bool
	saved     []Run
	stats     []profile.StatsDelta
	users     []string
}

func (p *flakyPersister) setDown(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down = v
}

func (p *flakyPersister) SaveRun(_ context.Context, userID string, r Run) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return errDown
	}
	p.saved = append(p.saved, r)
	return nil
}

func (p *flakyPersister) IncrementProfileStats(_ context.Context, userID string, d profile.StatsDelta) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down || p.failStats {
		return errDown
	}
	p.stats = append(p.stats, d)
	p.users = append(p.users, userID)
	return nil
}

type capturingPublisher struct {
	mu    sync.Mutex
	snaps []tracking.Snapshot
}

func (p *capturingPublisher) PublishSnapshot(_ string, s tracking.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}
