package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMiles(t *testing.T) {
	tests := []struct {
		name string
		a, b Coordinates
		want float64
	}{
		{"one degree of latitude", Coordinates{Lat: 30, Lng: -98}, Coordinates{Lat: 31, Lng: -98}, 69.09},
		{"same point", Coordinates{Lat: 29.42, Lng: -98.49}, Coordinates{Lat: 29.42, Lng: -98.49}, 0},
		{"san antonio to austin", Coordinates{Lat: 29.4241, Lng: -98.4936}, Coordinates{Lat: 30.2672, Lng: -97.7431}, 73.8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HaversineMiles(tc.a, tc.b)
			if tc.want == 0 {
				assert.InDelta(t, 0, got, 1e-9)
				return
			}
			assert.InEpsilon(t, tc.want, got, 0.01)
		})
	}
}

func TestHaversineMiles_Symmetric(t *testing.T) {
	a := Coordinates{Lat: 34.05, Lng: -118.24}
	b := Coordinates{Lat: 40.71, Lng: -74.01}
	assert.InDelta(t, HaversineMiles(a, b), HaversineMiles(b, a), 1e-9)
}
