// Package electrical derives motor current, terminal voltage and battery
// state of charge from the speed trajectory.
package electrical

import "math"

const gravity = 9.81

// Params describes the battery pack and motor.
type Params struct {
	MinVoltage     float64 // V, pack cutoff
	MaxVoltage     float64 // V, pack full
	InitialVoltage float64 // V
	CapacityAh     float64
	NominalVoltage float64 // V, used to size the pack in Wh
	InitialSoC     float64 // 0..1

	MaxContinuousCurrent float64 // A
	MaxPeakCurrent       float64 // A
	MaxRegenCurrent      float64 // A
	PeakWindow           float64 // seconds

	RatedPower         float64 // W
	MotorEfficiency    float64 // 0..1
	InternalResistance float64 // ohm
	MinThrottlePower   float64 // W

	RollingCoefficient float64
	RollingMass        float64 // kg
	DragFactor         float64 // 0.5 * rho * Cd * A
	EffectiveMass      float64 // kg
	MaxDesiredAccel    float64 // km/h per second

	RegenThreshold float64 // km/h per second of deceleration
	RegenGain      float64
	MaxRegenPower  float64 // W
}

// DefaultParams returns a 13S pack driving a 3 kW hub motor.
func DefaultParams() Params {
	return Params{
		MinVoltage:     39.0,
		MaxVoltage:     54.6,
		InitialVoltage: 50.4,
		CapacityAh:     35.0,
		NominalVoltage: 48.0,
		InitialSoC:     0.8,

		MaxContinuousCurrent: 50,
		MaxPeakCurrent:       80,
		MaxRegenCurrent:      10,
		PeakWindow:           20,

		RatedPower:         3000,
		MotorEfficiency:    0.85,
		InternalResistance: 0.01,
		MinThrottlePower:   200,

		RollingCoefficient: 0.01,
		RollingMass:        150,
		DragFactor:         0.5 * 1.225 * 0.7 * 0.6,
		EffectiveMass:      170,
		MaxDesiredAccel:    10,

		RegenThreshold: 5,
		RegenGain:      10,
		MaxRegenPower:  500,
	}
}

// CapacityWh returns the pack energy capacity.
func (p Params) CapacityWh() float64 {
	return p.CapacityAh * p.NominalVoltage
}

// Battery is the pack state. Discharged and Regenerated only grow.
type Battery struct {
	Voltage     float64 `json:"voltage"`
	SoC         float64 `json:"soc"`
	EnergyWh    float64 `json:"energy_wh"`
	CapacityWh  float64 `json:"capacity_wh"`
	Discharged  float64 `json:"discharged_wh"`
	Regenerated float64 `json:"regenerated_wh"`
}

// Reading is the electrical outcome of one tick.
type Reading struct {
	Current     float64 `json:"current"` // A
	Voltage     float64 `json:"voltage"` // V at the terminals
	Power       float64 `json:"power"`   // W drawn from the pack
	DischargeWh float64 `json:"discharge_wh"`
	RegenWh     float64 `json:"regen_wh"`
	ThrottleOn  bool    `json:"throttle_on"`
	PeakWindow  float64 `json:"peak_window"` // seconds left
}

// Model is a binary throttle with hysteresis feeding a simple pack model.
type Model struct {
	params     Params
	battery    Battery
	throttleOn bool
	peakTimer  float64
}

// NewModel creates a model with the pack at its initial charge.
func NewModel(p Params) *Model {
	capacity := p.CapacityWh()
	return &Model{
		params: p,
		battery: Battery{
			Voltage:    p.InitialVoltage,
			SoC:        p.InitialSoC,
			EnergyWh:   capacity * p.InitialSoC,
			CapacityWh: capacity,
		},
	}
}

// Battery returns a copy of the pack state.
func (m *Model) Battery() Battery { return m.battery }

// Throttle updates the persisted throttle flag from the speed error. Above
// 3 km/h below target it engages and more than 1 km/h above target it
// releases. Inside that band it is on whenever the error is above -0.5 km/h,
// so a vehicle cruising at its target keeps drawing current.
func (m *Model) Throttle(speedError float64) bool {
	switch {
	case speedError > 3:
		m.throttleOn = true
	case speedError < -1:
		m.throttleOn = false
	default:
		m.throttleOn = speedError > -0.5
	}
	return m.throttleOn
}

// Step runs one tick. Speeds are in km/h and dt in seconds.
func (m *Model) Step(speed, target, prevSpeed, dt float64) Reading {
	p := m.params
	voltage := m.battery.Voltage
	speedError := target - speed

	acceleration := 0.0
	if dt > 0 {
		acceleration = (speed - prevSpeed) / dt
	}

	m.peakTimer = math.Max(0, m.peakTimer-dt)

	var current, power float64
	if m.Throttle(speedError) && speed >= 1 {
		power = m.requiredPower(speed, speedError)
		if voltage > 0 {
			current = power / voltage
		}

		if speedError > 10 && current > p.MaxContinuousCurrent {
			current = math.Min(current, p.MaxPeakCurrent)
			m.peakTimer = p.PeakWindow
		} else {
			current = math.Min(current, p.MaxContinuousCurrent)
		}
	}

	terminal := math.Max(p.MinVoltage, voltage-current*p.InternalResistance)

	discharge := 0.0
	if current > 0 {
		discharge = power * dt / 3600
	}

	regen := 0.0
	if acceleration < -p.RegenThreshold && voltage > 0 {
		regenPower := math.Abs(acceleration) * p.RegenGain / 3.6 * (speed / 3.6)
		regenPower = math.Min(regenPower, p.MaxRegenPower)
		regenCurrent := math.Min(regenPower/voltage, p.MaxRegenCurrent)
		regen = regenCurrent * voltage * dt / 3600
	}

	m.apply(discharge, regen)

	return Reading{
		Current:     current,
		Voltage:     terminal,
		Power:       power,
		DischargeWh: discharge,
		RegenWh:     regen,
		ThrottleOn:  m.throttleOn,
		PeakWindow:  m.peakTimer,
	}
}

// requiredPower returns the electrical power in W needed to hold or gain
// speed, capped at the motor rating.
func (m *Model) requiredPower(speed, speedError float64) float64 {
	p := m.params
	v := speed / 3.6

	rolling := p.RollingCoefficient * p.RollingMass * gravity * v
	drag := p.DragFactor * v * v * v
	mechanical := math.Max(p.MinThrottlePower, rolling+drag)

	if speedError > 0 {
		desired := math.Min(speedError, p.MaxDesiredAccel) / 3.6
		mechanical += p.EffectiveMass * desired * v
	}

	if p.MotorEfficiency <= 0 {
		return 0
	}
	return math.Min(mechanical/p.MotorEfficiency, p.RatedPower)
}

func (m *Model) apply(discharge, regen float64) {
	p := m.params
	b := &m.battery

	b.EnergyWh = math.Max(0, math.Min(b.EnergyWh-discharge+regen, b.CapacityWh))
	if b.CapacityWh > 0 {
		b.SoC = b.EnergyWh / b.CapacityWh
	} else {
		b.SoC = 0
	}
	b.Voltage = p.MinVoltage + (p.MaxVoltage-p.MinVoltage)*b.SoC
	b.Discharged += discharge
	b.Regenerated += regen
}
