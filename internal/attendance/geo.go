package attendance

import (
	"math"

	"zeiterfassung-backend/internal/apperr"
)

const earthRadiusM = 6371000.0

// GPS is a position reported by the stamping device.
type GPS struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the coordinates are on the globe.
func (g GPS) Validate() error {
	if g.Lat < -90 || g.Lat > 90 {
		return apperr.Validation("latitude %.6f out of range -90..90", g.Lat)
	}
	if g.Lng < -180 || g.Lng > 180 {
		return apperr.Validation("longitude %.6f out of range -180..180", g.Lng)
	}
	return nil
}

// DistanceM returns the great-circle distance between two positions in meters.
func DistanceM(a, b GPS) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

func validateOptional(g *GPS) error {
	if g == nil {
		return nil
	}
	return g.Validate()
}

func coords(g *GPS) (lat, lng *float64) {
	if g == nil {
		return nil, nil
	}
	la, ln := g.Lat, g.Lng
	return &la, &ln
}
