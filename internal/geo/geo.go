// Package geo holds the spherical-earth primitives used to follow a route.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371000.0

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point represents a geographical location with latitude and longitude in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// Valid reports whether the point lies within the latitude and longitude ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// ParsePoint parses a string like "52.5200,13.4050" into a Point.
func ParsePoint(input string) (Point, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, input)
	}

	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidCoordinate, input)
	}

	p := Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: %q out of range", ErrInvalidCoordinate, input)
	}
	return p, nil
}

func toRadians(d float64) float64 { return d * math.Pi / 180 }
func toDegrees(r float64) float64 { return r * 180 / math.Pi }

func wrap360(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(from, to Point) float64 {
	φ1 := toRadians(from.Lat)
	φ2 := toRadians(to.Lat)
	Δφ := φ2 - φ1
	Δλ := toRadians(to.Lon - from.Lon)

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	δ := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * δ
}

// Bearing returns the initial bearing from one point to another in [0,360).
// Identical points yield 0.
func Bearing(from, to Point) float64 {
	if from == to {
		return 0
	}
	φ1 := toRadians(from.Lat)
	φ2 := toRadians(to.Lat)
	Δλ := toRadians(to.Lon - from.Lon)

	y := math.Sin(Δλ) * math.Cos(φ2)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(Δλ)

	b := wrap360(toDegrees(math.Atan2(y, x)))
	if b >= 360 {
		b = 0
	}
	return b
}

// TurnAngle returns the absolute difference between two bearings taking the
// shorter way around, in [0,180].
func TurnAngle(b1, b2 float64) float64 {
	diff := math.Abs(b2 - b1)
	diff = math.Mod(diff, 360)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}

// Lerp moves linearly in latitude/longitude from a toward b by fraction t.
func Lerp(a, b Point, t float64) Point {
	return Point{Lat: a.Lat + (b.Lat-a.Lat)*t, Lon: a.Lon + (b.Lon-a.Lon)*t}
}
