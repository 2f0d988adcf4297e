package location

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 12.9716, lng1: 77.5946,
			lat2: 12.9716, lng2: 77.5946,
			wantKm:    0,
			tolerance: 1e-9,
		},
		{
			name: "MG Road to Koramangala (~4.5km)",
			lat1: 12.9756, lng1: 77.6050,
			lat2: 12.9352, lng2: 77.6245,
			wantKm:    4.9,
			tolerance: 0.5,
		},
		{
			name: "Bengaluru to Chennai (~290km)",
			lat1: 12.9716, lng1: 77.5946,
			lat2: 13.0827, lng2: 80.2707,
			wantKm:    290,
			tolerance: 10,
		},
		{
			name: "New York to Los Angeles (~3944km)",
			lat1: 40.7128, lng1: -74.0060,
			lat2: 34.0522, lng2: -118.2437,
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_ZeroForSamePoint(t *testing.T) {
	points := [][2]float64{{0, 0}, {90, 0}, {-90, 180}, {45.5, -120.25}, {-33.86, 151.21}}
	for _, p := range points {
		if d := HaversineKm(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("HaversineKm(%v, %v) = %f, want 0", p, p, d)
		}
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	pairs := [][4]float64{
		{25.0, 121.0, 26.0, 122.0},
		{12.9716, 77.5946, 12.9761, 77.5946},
		{-10, -170, 10, 170},
	}
	for _, p := range pairs {
		d1 := HaversineKm(p[0], p[1], p[2], p[3])
		d2 := HaversineKm(p[2], p[3], p[0], p[1])
		if math.Abs(d1-d2) > 1e-9 {
			t.Errorf("haversine is not symmetric for %v: %f vs %f", p, d1, d2)
		}
	}
}

func TestValidPoint(t *testing.T) {
	cases := []struct {
		lat, lng float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{0, -180.5, false},
		{math.NaN(), 0, false},
	}
	for _, tc := range cases {
		if got := ValidPoint(tc.lat, tc.lng); got != tc.want {
			t.Errorf("ValidPoint(%v, %v) = %v, want %v", tc.lat, tc.lng, got, tc.want)
		}
	}
}
