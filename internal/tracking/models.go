package tracking

import "time"

// Fix is a single GPS reading.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	AccuracyM float64   `json:"accuracy"`
	Time      time.Time `json:"timestamp"`
}

type PathPoint struct {
	Lat  float64   `json:"lat"`
	Lng  float64   `json:"lng"`
	Time time.Time `json:"timestamp"`
}

func (f Fix) Point() PathPoint {
	return PathPoint{Lat: f.Lat, Lng: f.Lng, Time: f.Time}
}

// Bonuses feed the per-tick multiplier. Permanent upgrades and skills are not part of it.
type Bonuses struct {
	Level              int       `json:"level"`
	ItemCoinBonusPct   float64   `json:"item_coin_bonus_pct"`
	BoostScoreBonusPct float64   `json:"boost_score_bonus_pct"`
	BoostEndsAt        time.Time `json:"boost_ends_at,omitempty"`
}

func (b Bonuses) boostActive(now time.Time) bool {
	return !b.BoostEndsAt.IsZero() && !now.After(b.BoostEndsAt)
}

// Position is the part of the live run written by the fix handler.
type Position struct {
	DistanceKm  float64   `json:"distance_km"`
	SpeedKmh    float64   `json:"speed_kmh"`
	PathLen     int       `json:"path_len"`
	Last        PathPoint `json:"last"`
	LastVerdict Verdict   `json:"last_verdict"`
}

// Scoring is the part of the live run written by the score tick.
type Scoring struct {
	Score           int64 `json:"score"`
	PointsPerSecond int64 `json:"points_per_second"`
}

type Snapshot struct {
	Position
	Scoring
	State         State     `json:"state"`
	MovingSeconds int       `json:"moving_seconds"`
	Paused        bool      `json:"paused"`
	StartedAt     time.Time `json:"started_at"`
	Pace          string    `json:"pace"`
}

// Final is the stable result returned once a tracker has stopped.
type Final struct {
	Snapshot
	Path []PathPoint `json:"path"`
}
