// Package dynamics integrates vehicle speed toward a target under
// acceleration and braking limits and keeps the odometer.
package dynamics

import (
	"math"
	"math/rand/v2"
)

// Params describes the longitudinal limits of the vehicle.
type Params struct {
	MaxSpeed        float64 // km/h
	MaxAcceleration float64 // km/h per second
	MaxDeceleration float64 // km/h per second
	Jitter          float64 // +/- km/h added to the target
	CreepSpeed      float64 // km/h floor of the arrival ceiling
}

// DefaultParams returns the limits of a 57 km/h scooter.
func DefaultParams() Params {
	return Params{
		MaxSpeed:        57,
		MaxAcceleration: 11.5,
		MaxDeceleration: 16,
		Jitter:          3,
		CreepSpeed:      5,
	}
}

// Vehicle is the longitudinal state of the simulated vehicle.
type Vehicle struct {
	Params    Params
	Speed     float64 // km/h
	PrevSpeed float64 // km/h
	Target    float64 // km/h
	Odometer  float64 // meters

	rng *rand.Rand
}

// NewVehicle creates a vehicle at rest with the given odometer reading.
// rng may be nil when Params.Jitter is zero.
func NewVehicle(p Params, rng *rand.Rand, odometer float64) *Vehicle {
	return &Vehicle{Params: p, rng: rng, Odometer: odometer}
}

// TargetSpeed applies jitter to the ceiling and clamps it to [0, MaxSpeed].
// A zero ceiling is a hold and gets no jitter.
func (v *Vehicle) TargetSpeed(ceiling float64) float64 {
	target := ceiling
	if target > 0 && v.Params.Jitter > 0 && v.rng != nil {
		target += (v.rng.Float64()*2 - 1) * v.Params.Jitter
	}
	return math.Max(0, math.Min(v.Params.MaxSpeed, target))
}

// Step moves the speed toward the ceiling for dt seconds and returns the
// distance covered in meters, which is also added to the odometer.
func (v *Vehicle) Step(ceiling, dt float64) float64 {
	v.PrevSpeed = v.Speed
	v.Target = v.TargetSpeed(ceiling)

	if v.Target > v.PrevSpeed {
		v.Speed = math.Min(v.Target, v.PrevSpeed+v.Params.MaxAcceleration*dt)
	} else {
		v.Speed = math.Max(v.Target, v.PrevSpeed-v.Params.MaxDeceleration*dt)
	}

	distance := Distance(v.Speed, dt)
	v.Odometer += distance
	return distance
}

// Acceleration returns the speed change of the last step in km/h per second.
func (v *Vehicle) Acceleration(dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	return (v.Speed - v.PrevSpeed) / dt
}

// ReportedOdometer returns the odometer rounded to the nearest 100 meters.
func (v *Vehicle) ReportedOdometer() int64 {
	return int64(math.Round(v.Odometer/100) * 100)
}

// ArrivalCeiling returns the highest speed from which the vehicle can still
// brake within remaining meters, never below the creep speed.
func (v *Vehicle) ArrivalCeiling(remaining float64) float64 {
	decel := v.Params.MaxDeceleration / 3.6 // m/s^2
	ceiling := math.Sqrt(2*decel*math.Max(0, remaining)) * 3.6
	return math.Max(v.Params.CreepSpeed, ceiling)
}

// Distance converts a speed in km/h held for dt seconds into meters.
func Distance(speed, dt float64) float64 {
	return (speed / 3600) * 1000 * dt
}
