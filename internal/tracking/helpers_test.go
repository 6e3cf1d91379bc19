package tracking

import (
	"time"

	"backend-runnersurfers/internal/shared/geo"
)

var t0 = time.Date(2026, 4, 12, 7, 0, 0, 0, time.UTC)

// kmPerDegreeLat matches geo.HaversineKm along a meridian.
var kmPerDegreeLat = geo.HaversineKm(0, 0, 1, 0)

// north returns a fix moved km northwards and dt later.
func north(from Fix, km float64, dt time.Duration, accuracy float64) Fix {
	return Fix{
		Lat:       from.Lat + km/kmPerDegreeLat,
		Lng:       from.Lng,
		AccuracyM: accuracy,
		Time:      from.Time.Add(dt),
	}
}

// atSpeed returns a fix reached after dt at the given speed.
func atSpeed(from Fix, kmh float64, dt time.Duration) Fix {
	return north(from, kmh*dt.Hours(), dt, 5)
}

type recordingListener struct {
	positions   []Position
	scores      []Scoring
	activated   int
	resets      int
	vehicles    int
	boostExpiry int
	verdicts    []Verdict
}

func (r *recordingListener) PositionChanged(p Position) { r.positions = append(r.positions, p) }
func (r *recordingListener) ScoreChanged(s Scoring)     { r.scores = append(r.scores, s) }
func (r *recordingListener) ScoreActivated(Snapshot)    { r.activated++ }
func (r *recordingListener) WarmUpReset(Snapshot)       { r.resets++ }
func (r *recordingListener) VehicleDetected(Fix)        { r.vehicles++ }
func (r *recordingListener) BoostExpired(time.Time)     { r.boostExpiry++ }
func (r *recordingListener) FixProcessed(_ Fix, res Result) {
	r.verdicts = append(r.verdicts, res.Verdict)
}
