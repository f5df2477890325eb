// Package traffic spawns and expires timed speed-limiting traffic events.
package traffic

import (
	"math"
	"math/rand/v2"
)

// Kind identifies a traffic event.
type Kind int

const (
	Idle Kind = iota
	Stop
	TrafficLight
	Slow
	Following
)

func (k Kind) String() string {
	switch k {
	case Stop:
		return "stop"
	case TrafficLight:
		return "traffic_light"
	case Slow:
		return "slow"
	case Following:
		return "following"
	default:
		return "clear"
	}
}

// Event is an active traffic disturbance. Remaining counts ticks and the
// event ends when it reaches zero.
type Event struct {
	Kind       Kind
	Remaining  int
	SpeedLimit float64 // km/h
}

// Draw thresholds over a uniform sample in [0,1).
const (
	StopChance             = 0.005
	IntersectionStopChance = 0.03
	SlowThreshold          = 0.05
	FollowingThreshold     = 0.10
)

// Machine holds at most one active event. A new event is only drawn while
// idle.
type Machine struct {
	rng      *rand.Rand
	active   *Event
	disabled bool
}

// NewMachine creates a machine drawing from rng.
func NewMachine(rng *rand.Rand) *Machine {
	return &Machine{rng: rng}
}

// Disable stops new events from being generated.
func (m *Machine) Disable() { m.disabled = true }

// Active returns the current event, or nil when idle.
func (m *Machine) Active() *Event { return m.active }

// Force replaces the active event.
func (m *Machine) Force(e Event) {
	m.active = &e
}

// State returns the current kind, Idle when no event is active.
func (m *Machine) State() Kind {
	if m.active == nil {
		return Idle
	}
	return m.active.Kind
}

// Limit returns the active speed limit, or +Inf when idle.
func (m *Machine) Limit() float64 {
	if m.active == nil {
		return math.Inf(1)
	}
	return m.active.SpeedLimit
}

// Step advances the machine by one tick. An active event counts down and is
// removed at zero; otherwise a new event may be drawn. approaching raises the
// odds of a full stop and labels it a traffic light.
func (m *Machine) Step(approaching bool) {
	if m.active != nil {
		m.active.Remaining--
		if m.active.Remaining <= 0 {
			m.active = nil
		}
		return
	}
	if m.disabled {
		return
	}
	m.active = m.generate(approaching)
}

func (m *Machine) generate(approaching bool) *Event {
	r := m.rng.Float64()

	stopChance := StopChance
	if approaching {
		stopChance = IntersectionStopChance
	}

	switch {
	case r < stopChance:
		kind := Stop
		if approaching {
			kind = TrafficLight
		}
		return &Event{Kind: kind, Remaining: m.intBetween(4, 12), SpeedLimit: 0}
	case r < SlowThreshold:
		return &Event{Kind: Slow, Remaining: m.intBetween(6, 16), SpeedLimit: m.uniform(20, 35)}
	case r < FollowingThreshold:
		return &Event{Kind: Following, Remaining: m.intBetween(8, 24), SpeedLimit: m.uniform(35, 48)}
	}
	return nil
}

func (m *Machine) intBetween(lo, hi int) int {
	return lo + m.rng.IntN(hi-lo+1)
}

func (m *Machine) uniform(lo, hi float64) float64 {
	return lo + m.rng.Float64()*(hi-lo)
}
