package domain

import "math"

const earthRadiusMiles = 3958.8

// HaversineMiles returns the great-circle distance between a and b in miles.
func HaversineMiles(a, b Coordinates) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// roundTenth rounds to one decimal place for display distances.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
