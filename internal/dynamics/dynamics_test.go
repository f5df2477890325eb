package dynamics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

const dt = 0.5

func TestVehicle_AcceleratesAtLimit(t *testing.T) {
	p := DefaultParams()
	p.Jitter = 0
	v := NewVehicle(p, nil, 0)

	v.Step(p.MaxSpeed, dt)
	assert.InDelta(t, 5.75, v.Speed, 1e-9)

	for i := 0; i < 20; i++ {
		v.Step(p.MaxSpeed, dt)
	}
	assert.Equal(t, p.MaxSpeed, v.Speed)
}

func TestVehicle_BrakesFasterThanItAccelerates(t *testing.T) {
	p := DefaultParams()
	p.Jitter = 0
	v := NewVehicle(p, nil, 0)
	v.Speed = 40

	v.Step(0, dt)
	assert.InDelta(t, 32, v.Speed, 1e-9)
	assert.InDelta(t, -16, v.Acceleration(dt), 1e-9)
}

func TestVehicle_HoldReachesZero(t *testing.T) {
	v := NewVehicle(DefaultParams(), rand.New(rand.NewPCG(1, 2)), 0)
	v.Speed = 40

	for i := 0; i < 5; i++ {
		v.Step(0, dt)
	}
	assert.Zero(t, v.Speed)
}

func TestVehicle_Bounds(t *testing.T) {
	p := DefaultParams()
	v := NewVehicle(p, rand.New(rand.NewPCG(9, 9)), 0)
	maxDelta := math.Max(p.MaxAcceleration, p.MaxDeceleration) * dt
	ceilings := []float64{math.Inf(1), 57, 0, 20, 1, 100, 14.25, 0, 35}

	prevOdo := v.Odometer
	for i := 0; i < 5000; i++ {
		prev := v.Speed
		v.Step(ceilings[i%len(ceilings)], dt)

		if v.Speed < 0 || v.Speed > p.MaxSpeed {
			t.Fatalf("speed %f out of bounds", v.Speed)
		}
		if math.Abs(v.Speed-prev) > maxDelta+1e-9 {
			t.Fatalf("speed changed by %f in one tick", v.Speed-prev)
		}
		if v.Odometer < prevOdo {
			t.Fatalf("odometer went backwards")
		}
		prevOdo = v.Odometer
	}
}

func TestVehicle_JitterWithinRange(t *testing.T) {
	p := DefaultParams()
	v := NewVehicle(p, rand.New(rand.NewPCG(5, 5)), 0)
	for i := 0; i < 1000; i++ {
		target := v.TargetSpeed(30)
		assert.GreaterOrEqual(t, target, 27.0)
		assert.LessOrEqual(t, target, 33.0)
	}
	assert.Equal(t, 57.0, v.TargetSpeed(math.Inf(1)))
	assert.Equal(t, 0.0, v.TargetSpeed(0))
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(36, dt), 1e-9)
}

func TestVehicle_Odometer(t *testing.T) {
	p := DefaultParams()
	p.Jitter = 0
	v := NewVehicle(p, nil, 1234)
	assert.Equal(t, int64(1200), v.ReportedOdometer())

	v.Speed = 36
	v.Step(36, dt)
	assert.InDelta(t, 1239, v.Odometer, 1e-9)
	assert.Equal(t, int64(1200), v.ReportedOdometer())

	v.Odometer = 1250
	assert.Equal(t, int64(1300), v.ReportedOdometer())
}

func TestVehicle_ArrivalCeiling(t *testing.T) {
	v := NewVehicle(DefaultParams(), nil, 0)
	assert.Equal(t, 5.0, v.ArrivalCeiling(0))
	assert.Equal(t, 5.0, v.ArrivalCeiling(-3))
	// 16 km/h/s over 50 m
	assert.InDelta(t, math.Sqrt(2*16/3.6*50)*3.6, v.ArrivalCeiling(50), 1e-9)
	assert.Greater(t, v.ArrivalCeiling(200), v.ArrivalCeiling(100))
}
