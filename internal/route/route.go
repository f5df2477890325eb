// Package route follows a decoded route polyline and inspects the road ahead.
package route

import (
	"github.com/ukydev/route-simulator/internal/geo"
)

// SnapDistance is the distance in meters under which the next waypoint is
// considered reached without consuming any travel budget.
const SnapDistance = 0.1

// Route is an ordered list of waypoints for one navigation leg.
type Route []geo.Point

// Active reports whether the route can be followed. Routes with fewer than two
// waypoints count as no route.
func (r Route) Active() bool {
	return len(r) >= 2
}

// Length returns the total path length in meters.
func (r Route) Length() float64 {
	total := 0.0
	for i := 0; i+1 < len(r); i++ {
		total += geo.Haversine(r[i], r[i+1])
	}
	return total
}

// Cursor tracks progress along a route. Position always lies on the segment
// from Route[Index] to Route[Index+1], or on the last waypoint once arrived.
type Cursor struct {
	Route    Route
	Position geo.Point
	Index    int
	Course   float64
}

// NewCursor places a cursor on the first waypoint of r keeping the given
// heading until the first movement.
func NewCursor(r Route, course float64) *Cursor {
	c := &Cursor{Route: r, Index: 0, Course: course}
	if len(r) > 0 {
		c.Position = r[0]
	}
	return c
}

// Arrived reports whether the cursor reached the final waypoint.
func (c *Cursor) Arrived() bool {
	return c.Index >= len(c.Route)-1
}

// Advance moves the cursor forward by up to distance meters and returns the
// distance actually consumed. It stops early on arrival.
func (c *Cursor) Advance(distance float64) float64 {
	consumed := 0.0
	for distance > 0 && !c.Arrived() {
		next := c.Route[c.Index+1]
		toNext := geo.Haversine(c.Position, next)

		if toNext < SnapDistance {
			c.Position = next
			c.Index++
			continue
		}

		if distance >= toNext {
			distance -= toNext
			consumed += toNext
			c.Position = next
			c.Index++
			continue
		}

		c.Position = geo.Lerp(c.Position, next, distance/toNext)
		consumed += distance
		distance = 0
	}

	if !c.Arrived() {
		next := c.Route[c.Index+1]
		if geo.Haversine(c.Position, next) > SnapDistance {
			c.Course = geo.Bearing(c.Position, next)
		}
	}
	return consumed
}

// Remaining returns the path distance in meters from the current position to
// the final waypoint.
func (c *Cursor) Remaining() float64 {
	if c.Arrived() {
		return 0
	}
	total := geo.Haversine(c.Position, c.Route[c.Index+1])
	for i := c.Index + 1; i+1 < len(c.Route); i++ {
		total += geo.Haversine(c.Route[i], c.Route[i+1])
	}
	return total
}
