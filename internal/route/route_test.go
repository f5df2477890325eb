package route

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/route-simulator/internal/geo"
)

// step returns the point span degrees away from p along bearing b, treating
// lat/lon as a plane. Good enough near the equator.
func step(p geo.Point, b, span float64) geo.Point {
	rad := b * math.Pi / 180
	return geo.Point{Lat: p.Lat + math.Cos(rad)*span, Lon: p.Lon + math.Sin(rad)*span}
}

func straightEast(n int) Route {
	r := Route{{Lat: 0, Lon: 0}}
	for i := 0; i < n; i++ {
		r = append(r, step(r[len(r)-1], 90, 0.0002))
	}
	return r
}

func TestRoute_Active(t *testing.T) {
	assert.False(t, Route(nil).Active())
	assert.False(t, Route{{Lat: 1, Lon: 1}}.Active())
	assert.True(t, straightEast(1).Active())
}

func TestCursor_AdvanceZeroIsNoop(t *testing.T) {
	c := NewCursor(straightEast(3), 42)
	c.Advance(10)
	before := *c

	consumed := c.Advance(0)

	assert.Zero(t, consumed)
	assert.Equal(t, before.Position, c.Position)
	assert.Equal(t, before.Index, c.Index)
	assert.Equal(t, before.Course, c.Course)
}

func TestCursor_AdvanceInterpolates(t *testing.T) {
	r := Route{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.001}}
	c := NewCursor(r, 0)

	segment := geo.Haversine(r[0], r[1])
	consumed := c.Advance(segment / 2)

	assert.InDelta(t, segment/2, consumed, 1e-9)
	assert.Equal(t, 0, c.Index)
	assert.InDelta(t, 0.0005, c.Position.Lon, 1e-9)
	assert.InDelta(t, 90, c.Course, 0.01)
	assert.False(t, c.Arrived())
}

func TestCursor_AdvancePastWaypoints(t *testing.T) {
	r := straightEast(4)
	c := NewCursor(r, 0)
	segment := geo.Haversine(r[0], r[1])

	c.Advance(segment * 2.5)

	assert.Equal(t, 2, c.Index)
	assert.InDelta(t, segment/2, geo.Haversine(r[2], c.Position), 0.01)
}

func TestCursor_SnapsNearZeroSegments(t *testing.T) {
	r := Route{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.0000001}, // ~1cm
		{Lat: 0, Lon: 0.001},
	}
	c := NewCursor(r, 0)

	consumed := c.Advance(5)

	assert.Equal(t, 1, c.Index)
	assert.InDelta(t, 5, consumed, 1e-9)
}

func TestCursor_Conservation(t *testing.T) {
	r := straightEast(8)
	r = append(r, step(r[len(r)-1], 0, 0.0003), step(step(r[len(r)-1], 0, 0.0003), 270, 0.0001))
	c := NewCursor(r, 0)

	total := 0.0
	for i := 0; i < 10000 && !c.Arrived(); i++ {
		total += c.Advance(3.7)
	}

	require.True(t, c.Arrived())
	assert.InDelta(t, r.Length(), total, SnapDistance*float64(len(r)))
	assert.Equal(t, r[len(r)-1], c.Position)
	assert.Zero(t, c.Remaining())
}

func TestCursor_Remaining(t *testing.T) {
	r := straightEast(3)
	c := NewCursor(r, 0)
	assert.InDelta(t, r.Length(), c.Remaining(), 1e-6)

	c.Advance(10)
	assert.InDelta(t, r.Length()-10, c.Remaining(), 0.01)
}

func TestCursor_CourseKeptWhenArrived(t *testing.T) {
	r := Route{{Lat: 0, Lon: 0}, {Lat: 0.001, Lon: 0}}
	c := NewCursor(r, 123)

	c.Advance(1000)

	assert.True(t, c.Arrived())
	assert.Equal(t, 123.0, c.Course)
}
