package tracking

import (
	"math"

	"backend-runnersurfers/internal/progression"
)

const (
	speedExponent    = 1.3
	basePointsFactor = 0.8
)

// TickMultiplier composes level, equipped item and an unexpired temporary boost.
func TickMultiplier(level int, itemCoinBonusPct, boostScoreBonusPct float64) float64 {
	return progression.ScoreMultiplier(level) *
		(1 + itemCoinBonusPct/100) *
		(1 + boostScoreBonusPct/100)
}

// ScoreIncrement is the points earned for one second at the given speed.
func ScoreIncrement(speedKmh, multiplier float64) int64 {
	if speedKmh <= 0 || multiplier <= 0 {
		return 0
	}
	base := math.Pow(speedKmh, speedExponent) * basePointsFactor
	return int64(math.Floor(base * multiplier))
}
