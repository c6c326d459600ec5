package attendance

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	// reference distances computed with the haversine formula, R=6371km
	tests := []struct {
		name string
		a, b Coordinate
		want float64 // meters
		tol  float64
	}{
		{
			name: "identical points",
			a:    Coordinate{Lat: -4.3217, Lng: 15.3125},
			b:    Coordinate{Lat: -4.3217, Lng: 15.3125},
			want: 0, tol: 0.001,
		},
		{
			name: "one degree of longitude at the equator",
			a:    Coordinate{Lat: 0, Lng: 0},
			b:    Coordinate{Lat: 0, Lng: 1},
			want: 111195, tol: 10,
		},
		{
			name: "about 150m apart",
			a:    Coordinate{Lat: -4.32170, Lng: 15.31250},
			b:    Coordinate{Lat: -4.32035, Lng: 15.31250},
			want: 150.1, tol: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Distance() = %v, want %v ± %v", got, tt.want, tt.tol)
			}
		})
	}
}

func TestWithinRange(t *testing.T) {
	base := Coordinate{Lat: -4.3217, Lng: 15.3125}

	tests := []struct {
		name string
		a, b Coordinate
		want bool
	}{
		{name: "identical points", a: base, b: base, want: true},
		// ~0.0009° of latitude ≈ 100m
		{name: "just inside the radius", a: base, b: Coordinate{Lat: base.Lat + 0.00089, Lng: base.Lng}, want: true},
		{name: "just outside the radius", a: base, b: Coordinate{Lat: base.Lat + 0.00095, Lng: base.Lng}, want: false},
		{name: "about 150m away", a: base, b: Coordinate{Lat: base.Lat + 0.00135, Lng: base.Lng}, want: false},
		{name: "about 500m away", a: base, b: Coordinate{Lat: base.Lat + 0.0045, Lng: base.Lng}, want: false},
		{name: "another city", a: base, b: Coordinate{Lat: -11.6609, Lng: 27.4794}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinRange(tt.a, tt.b); got != tt.want {
				t.Errorf("WithinRange() = %v, want %v (distance %vm)", got, tt.want, Distance(tt.a, tt.b))
			}
		})
	}
}
