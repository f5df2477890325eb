package route

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ukydev/route-simulator/internal/geo"
)

const maxSpeed = 57.0

func TestCeilingFactor_Bands(t *testing.T) {
	cases := []struct {
		angle  float64
		factor float64
		label  string
	}{
		{0, 1.00, "straight"},
		{14.99, 1.00, "straight"},
		{15, 0.65, "gentle turn"},
		{29.99, 0.65, "gentle turn"},
		{30, 0.45, "sharp turn"},
		{60, 0.35, "very sharp"},
		{89.99, 0.35, "very sharp"},
		{90, 0.25, "hairpin"},
		{180, 0.25, "hairpin"},
	}
	for _, c := range cases {
		factor, label := CeilingFactor(c.angle)
		assert.Equal(t, c.factor, factor, "angle %v", c.angle)
		assert.Equal(t, c.label, label, "angle %v", c.angle)
	}
}

func TestCeilingFactor_NonIncreasing(t *testing.T) {
	prev, _ := CeilingFactor(0)
	for a := 0.0; a <= 180; a += 0.25 {
		f, _ := CeilingFactor(a)
		if f > prev {
			t.Fatalf("ceiling increased at %v: %v > %v", a, f, prev)
		}
		prev = f
	}
}

func TestLookAhead_ShortRouteIsStraight(t *testing.T) {
	c := NewCursor(straightEast(1), 0)
	got := LookAhead(c, maxSpeed, DefaultLookAhead)
	assert.Equal(t, Curvature{Ceiling: maxSpeed, Label: "straight"}, got)
}

// hairpinRoute heads east for two short segments, turns 100 degrees and then
// runs straight for a long way.
func hairpinRoute() Route {
	r := straightEast(2)
	for i := 0; i < 20; i++ {
		r = append(r, step(r[len(r)-1], 190, 0.0002))
	}
	return r
}

func TestLookAhead_HairpinDropsAndRecovers(t *testing.T) {
	r := hairpinRoute()
	c := NewCursor(r, 0)

	got := LookAhead(c, maxSpeed, DefaultLookAhead)
	assert.InDelta(t, 100, got.MaxTurn, 0.5)
	assert.Equal(t, "hairpin", got.Label)
	assert.InDelta(t, maxSpeed*0.25, got.Ceiling, 1e-9)
	assert.True(t, got.Intersection())

	// past the turn every window is straight again
	c.Advance(geo.Haversine(r[0], r[1]) + geo.Haversine(r[1], r[2]) + 1)
	assert.Equal(t, 2, c.Index)

	got = LookAhead(c, maxSpeed, DefaultLookAhead)
	assert.Equal(t, "straight", got.Label)
	assert.Equal(t, maxSpeed, got.Ceiling)
	assert.False(t, got.Intersection())
}

func TestLookAhead_StopsAfterDistance(t *testing.T) {
	// a gentle bend that lies beyond the look-ahead window
	r := straightEast(6)
	r = append(r, step(r[len(r)-1], 110, 0.0002), step(step(r[len(r)-1], 110, 0.0002), 110, 0.0002))
	c := NewCursor(r, 0)

	got := LookAhead(c, maxSpeed, DefaultLookAhead)
	assert.Equal(t, "straight", got.Label)

	got = LookAhead(c, maxSpeed, 500)
	assert.Equal(t, "gentle turn", got.Label)
}
