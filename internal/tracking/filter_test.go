package tracking

import (
	"math"
	"testing"
	"time"
)

func TestFilterDropsLowAccuracy(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	start := Fix{Lat: 0, Lng: 0, AccuracyM: 5, Time: t0}
	f.Seed(start)

	r := f.Process(north(start, 0.03, 10*time.Second, 25))
	if r.Verdict != VerdictLowAccuracy {
		t.Fatalf("expected low accuracy verdict, got %s", r.Verdict)
	}
	if r.OnPath || r.DistanceKm != 0 || r.UpdateSpeed {
		t.Fatalf("low accuracy fix must be a no-op: %+v", r)
	}
}

func TestFilterSeedsFirstFix(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	r := f.Process(Fix{Lat: 1, Lng: 1, AccuracyM: 5, Time: t0})
	if r.Verdict != VerdictSeed || !r.OnPath {
		t.Fatalf("expected seed verdict, got %+v", r)
	}
}

func TestFilterAcceptsHumanPace(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	start := Fix{Lat: 0, Lng: 0, AccuracyM: 5, Time: t0}
	f.Seed(start)

	next := atSpeed(start, 10, 10*time.Second)
	r := f.Process(next)
	if r.Verdict != VerdictAccepted {
		t.Fatalf("expected accepted verdict, got %s", r.Verdict)
	}
	if math.Abs(r.DistanceKm-0.0277777) > 1e-5 {
		t.Fatalf("unexpected distance %v", r.DistanceKm)
	}
	if math.Abs(r.SpeedKmh-10) > 1e-3 || !r.UpdateSpeed {
		t.Fatalf("unexpected speed %v", r.SpeedKmh)
	}
}

func TestFilterRejectsVehicleSpeed(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	start := Fix{Lat: 0, Lng: 0, AccuracyM: 5, Time: t0}
	f.Seed(start)

	fast := north(start, 25.0/3600*10, 10*time.Second, 15)
	r := f.Process(fast)
	if r.Verdict != VerdictVehicle {
		t.Fatalf("expected vehicle verdict, got %s", r.Verdict)
	}
	if r.DistanceKm != 0 || r.SpeedKmh != 0 || !r.UpdateSpeed || !r.Warn {
		t.Fatalf("unexpected vehicle result %+v", r)
	}

	// The reference advanced to the vehicle fix, so the next delta starts there.
	walk := atSpeed(fast, 10, 10*time.Second)
	r = f.Process(walk)
	if r.Verdict != VerdictAccepted || math.Abs(r.DistanceKm-0.0277777) > 1e-5 {
		t.Fatalf("expected only the post-vehicle segment, got %+v", r)
	}
}

func TestFilterDeduplicatesVehicleWarnings(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	fix := Fix{Lat: 0, Lng: 0, AccuracyM: 5, Time: t0}
	f.Seed(fix)

	warnings := 0
	for i := 0; i < 6; i++ {
		fix = atSpeed(fix, 60, 2*time.Second)
		if r := f.Process(fix); r.Warn {
			warnings++
		}
	}
	// Twelve seconds of driving with a ten second cooldown.
	if warnings != 2 {
		t.Fatalf("expected 2 warnings, got %d", warnings)
	}
}

func TestFilterNoiseKeepsReference(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	start := Fix{Lat: 0, Lng: 0, AccuracyM: 5, Time: t0}
	f.Seed(start)

	jitter := north(start, 0.001, 5*time.Second, 5)
	r := f.Process(jitter)
	if r.Verdict != VerdictNoise || !r.OnPath || r.UpdateSpeed || r.DistanceKm != 0 {
		t.Fatalf("expected noise verdict, got %+v", r)
	}

	quick := north(start, 0.01, 500*time.Millisecond, 5)
	if r := f.Process(quick); r.Verdict != VerdictNoise {
		t.Fatalf("expected noise for sub-second interval, got %s", r.Verdict)
	}

	// Measured from the original anchor: 30 m in 10 s.
	later := north(start, 0.03, 10*time.Second, 5)
	r = f.Process(later)
	if r.Verdict != VerdictAccepted || math.Abs(r.DistanceKm-0.03) > 1e-6 {
		t.Fatalf("expected distance from original anchor, got %+v", r)
	}
}

func TestFilterSlowMovement(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	start := Fix{Lat: 0, Lng: 0, AccuracyM: 5, Time: t0}
	f.Seed(start)

	slow := atSpeed(start, 1, 10*time.Second)
	r := f.Process(slow)
	if r.Verdict != VerdictSlow {
		t.Fatalf("expected slow verdict, got %s", r.Verdict)
	}
	if r.DistanceKm != 0 || !r.UpdateSpeed || math.Abs(r.SpeedKmh-1) > 1e-3 {
		t.Fatalf("unexpected slow result %+v", r)
	}
}

func TestFilterReset(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	f.Seed(Fix{Time: t0})
	f.Reset()
	if r := f.Process(Fix{Lat: 3, Lng: 3, AccuracyM: 1, Time: t0.Add(time.Hour)}); r.Verdict != VerdictSeed {
		t.Fatalf("expected re-seed after reset, got %s", r.Verdict)
	}
}

func TestFilterReseedsWhenClockGoesBackwards(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	start := Fix{Lat: 0, Lng: 0, AccuracyM: 5, Time: t0}
	f.Seed(start)

	// A fix stamped a day ahead becomes the anchor.
	f.Process(north(start, 0.03, 24*time.Hour, 5))

	honest := atSpeed(start, 10, 10*time.Second)
	r := f.Process(honest)
	if r.Verdict != VerdictSeed || !r.OnPath || r.DistanceKm != 0 {
		t.Fatalf("expected re-seed on a fix older than the anchor, got %+v", r)
	}

	r = f.Process(atSpeed(honest, 10, 10*time.Second))
	if r.Verdict != VerdictAccepted || math.Abs(r.DistanceKm-0.0277777) > 1e-5 {
		t.Fatalf("expected distance to resume after re-seed, got %+v", r)
	}
}
