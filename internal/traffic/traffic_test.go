package traffic

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMachine(seed uint64) *Machine {
	return NewMachine(rand.New(rand.NewPCG(seed, seed)))
}

func TestMachine_IdleLimitIsUnbounded(t *testing.T) {
	m := newMachine(1)
	assert.Equal(t, Idle, m.State())
	assert.True(t, math.IsInf(m.Limit(), 1))
	assert.Nil(t, m.Active())
}

func TestMachine_ForcedEventCountsDownToZero(t *testing.T) {
	m := newMachine(1)
	m.Force(Event{Kind: Stop, Remaining: 3, SpeedLimit: 0})

	var seen []int
	for m.Active() != nil {
		seen = append(seen, m.Active().Remaining)
		m.Step(false)
	}
	assert.Equal(t, []int{3, 2, 1}, seen)
	assert.Equal(t, Idle, m.State())
}

func TestMachine_Exclusivity(t *testing.T) {
	m := newMachine(7)
	var current *Event
	prevRemaining := 0
	spawned := 0

	for tick := 0; tick < 20000; tick++ {
		m.Step(tick%50 < 10)
		ev := m.Active()
		if ev == nil {
			current = nil
			continue
		}
		if ev != current {
			require.Nil(t, current, "a new event replaced an active one at tick %d", tick)
			current = ev
			spawned++
		} else {
			require.Equal(t, prevRemaining-1, ev.Remaining, "counter must decrease by one")
		}
		require.Greater(t, ev.Remaining, 0)
		prevRemaining = ev.Remaining
	}
	assert.Greater(t, spawned, 10)
}

func TestMachine_GeneratedRanges(t *testing.T) {
	m := newMachine(42)
	counts := map[Kind]int{}

	for i := 0; i < 50000; i++ {
		ev := m.generate(i%2 == 0)
		if ev == nil {
			continue
		}
		counts[ev.Kind]++
		switch ev.Kind {
		case Stop, TrafficLight:
			assert.Equal(t, 0.0, ev.SpeedLimit)
			assert.GreaterOrEqual(t, ev.Remaining, 4)
			assert.LessOrEqual(t, ev.Remaining, 12)
			assert.Equal(t, i%2 == 0, ev.Kind == TrafficLight)
		case Slow:
			assert.GreaterOrEqual(t, ev.SpeedLimit, 20.0)
			assert.Less(t, ev.SpeedLimit, 35.0)
			assert.GreaterOrEqual(t, ev.Remaining, 6)
			assert.LessOrEqual(t, ev.Remaining, 16)
		case Following:
			assert.GreaterOrEqual(t, ev.SpeedLimit, 35.0)
			assert.Less(t, ev.SpeedLimit, 48.0)
			assert.GreaterOrEqual(t, ev.Remaining, 8)
			assert.LessOrEqual(t, ev.Remaining, 24)
		default:
			t.Fatalf("unexpected kind %v", ev.Kind)
		}
	}

	for _, k := range []Kind{Stop, TrafficLight, Slow, Following} {
		assert.NotZero(t, counts[k], "kind %v never generated", k)
	}
	// about 10% of draws produce an event
	total := counts[Stop] + counts[TrafficLight] + counts[Slow] + counts[Following]
	assert.InDelta(t, 5000, total, 500)
}

func TestMachine_Disabled(t *testing.T) {
	m := newMachine(3)
	m.Disable()
	for i := 0; i < 1000; i++ {
		m.Step(true)
		require.Nil(t, m.Active())
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "clear", Idle.String())
	assert.Equal(t, "traffic_light", TrafficLight.String())
	assert.Equal(t, "following", Following.String())
}
