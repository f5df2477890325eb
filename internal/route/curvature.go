package route

import (
	"math"

	"github.com/ukydev/route-simulator/internal/geo"
)

const (
	// DefaultLookAhead is how far ahead, in meters, turns are inspected.
	DefaultLookAhead = 50.0

	// IntersectionAngle is the turn angle above which the vehicle is treated
	// as approaching an intersection.
	IntersectionAngle = 30.0

	maxLookAheadSegments = 10
)

// Curvature describes the sharpest turn ahead and the speed it allows.
type Curvature struct {
	Ceiling float64 // km/h
	MaxTurn float64 // degrees
	Label   string
}

// Intersection reports whether the turn ahead is sharp enough to be an
// intersection.
func (c Curvature) Intersection() bool {
	return c.MaxTurn > IntersectionAngle
}

// CeilingFactor maps a turn angle to a fraction of max speed and a label.
// Each band includes its lower bound.
func CeilingFactor(angle float64) (float64, string) {
	switch {
	case angle < 15:
		return 1.00, "straight"
	case angle < 30:
		return 0.65, "gentle turn"
	case angle < 60:
		return 0.45, "sharp turn"
	case angle < 90:
		return 0.35, "very sharp"
	default:
		return 0.25, "hairpin"
	}
}

// LookAhead scans up to ten segments from the cursor's current segment,
// stopping once more than lookAhead meters have been covered, and returns the
// speed ceiling for the sharpest turn found.
func LookAhead(c *Cursor, maxSpeed, lookAhead float64) Curvature {
	r := c.Route
	if c.Index >= len(r)-2 {
		return Curvature{Ceiling: maxSpeed, Label: "straight"}
	}

	accumulated := 0.0
	maxTurn := 0.0
	prevBearing := math.NaN()
	end := min(c.Index+maxLookAheadSegments, len(r)-1)

	for i := c.Index; i < end; i++ {
		bearing := geo.Bearing(r[i], r[i+1])
		if !math.IsNaN(prevBearing) {
			maxTurn = math.Max(maxTurn, geo.TurnAngle(prevBearing, bearing))
		}
		prevBearing = bearing

		accumulated += geo.Haversine(r[i], r[i+1])
		if accumulated > lookAhead {
			break
		}
	}

	factor, label := CeilingFactor(maxTurn)
	return Curvature{Ceiling: maxSpeed * factor, MaxTurn: maxTurn, Label: label}
}
