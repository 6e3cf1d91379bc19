package geo

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371

// DefaultWeightKg is used for calorie estimates when the runner has not set a weight.
const DefaultWeightKg = 70

// HaversineKm returns the great-circle distance between two coordinates in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// FormatPace renders minutes per kilometer as M'SS".
func FormatPace(speedKmh float64) string {
	if speedKmh <= 0 || math.IsNaN(speedKmh) || math.IsInf(speedKmh, 0) {
		return `--'--"`
	}
	pace := 60 / speedKmh
	minutes := int(math.Floor(pace))
	seconds := int(math.Floor((pace - float64(minutes)) * 60))
	return fmt.Sprintf(`%d'%02d"`, minutes, seconds)
}

// CaloriesFromDistance estimates burned calories; weightKg <= 0 falls back to DefaultWeightKg.
func CaloriesFromDistance(distanceKm, weightKg float64) int {
	if weightKg <= 0 {
		weightKg = DefaultWeightKg
	}
	if distanceKm <= 0 {
		return 0
	}
	return int(math.Floor(distanceKm * weightKg * 0.9))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
