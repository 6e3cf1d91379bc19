package tracking

import (
	"time"

	"backend-runnersurfers/internal/shared/geo"
)

type Verdict string

const (
	VerdictLowAccuracy Verdict = "low_accuracy"
	VerdictSeed        Verdict = "seed"
	VerdictNoise       Verdict = "noise"
	VerdictVehicle     Verdict = "vehicle"
	VerdictSlow        Verdict = "slow"
	VerdictAccepted    Verdict = "accepted"
)

type FilterConfig struct {
	MaxAccuracyM           float64
	NoiseDistanceKm        float64
	MinInterval            time.Duration
	MinHumanKmh            float64
	MaxHumanKmh            float64
	VehicleWarningCooldown time.Duration
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MaxAccuracyM:           20,
		NoiseDistanceKm:        0.002,
		MinInterval:            time.Second,
		MinHumanKmh:            2,
		MaxHumanKmh:            20,
		VehicleWarningCooldown: 10 * time.Second,
	}
}

type Result struct {
	Verdict     Verdict
	DistanceKm  float64
	SpeedKmh    float64
	UpdateSpeed bool
	OnPath      bool
	// Warn is set on the first vehicle fix of each cooldown window.
	Warn bool
}

// Filter turns raw fixes into validated distance and speed. It is not safe for concurrent use.
type Filter struct {
	cfg        FilterConfig
	anchor     Fix
	hasAnchor  bool
	lastWarnAt time.Time
}

func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// Seed sets the reference fix without classifying it.
func (f *Filter) Seed(fix Fix) {
	f.anchor = fix
	f.hasAnchor = true
}

// Reset drops the reference fix so the next accepted reading re-seeds.
func (f *Filter) Reset() {
	f.hasAnchor = false
	f.anchor = Fix{}
}

func (f *Filter) Process(fix Fix) Result {
	if fix.AccuracyM > f.cfg.MaxAccuracyM {
		return Result{Verdict: VerdictLowAccuracy}
	}
	if !f.hasAnchor {
		f.Seed(fix)
		return Result{Verdict: VerdictSeed, OnPath: true}
	}

	dt := fix.Time.Sub(f.anchor.Time)
	// A reading older than the anchor means the anchor's clock was wrong; start over from here.
	if dt < 0 {
		f.Seed(fix)
		return Result{Verdict: VerdictSeed, OnPath: true}
	}
	dist := geo.HaversineKm(f.anchor.Lat, f.anchor.Lng, fix.Lat, fix.Lng)
	// The anchor stays put on noise so slow drift still adds up once it clears the threshold.
	if dist <= f.cfg.NoiseDistanceKm || dt < f.cfg.MinInterval {
		return Result{Verdict: VerdictNoise, OnPath: true}
	}

	speed := dist / dt.Seconds() * 3600
	f.Seed(fix)

	switch {
	case speed > f.cfg.MaxHumanKmh:
		warn := f.lastWarnAt.IsZero() || fix.Time.Sub(f.lastWarnAt) >= f.cfg.VehicleWarningCooldown
		if warn {
			f.lastWarnAt = fix.Time
		}
		return Result{Verdict: VerdictVehicle, SpeedKmh: 0, UpdateSpeed: true, OnPath: true, Warn: warn}
	case speed < f.cfg.MinHumanKmh:
		return Result{Verdict: VerdictSlow, SpeedKmh: speed, UpdateSpeed: true, OnPath: true}
	default:
		return Result{Verdict: VerdictAccepted, DistanceKm: dist, SpeedKmh: speed, UpdateSpeed: true, OnPath: true}
	}
}
