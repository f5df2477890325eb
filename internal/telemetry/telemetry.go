// Package telemetry publishes the state of each simulation tick.
package telemetry

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/ukydev/route-simulator/internal/geo"
	"github.com/ukydev/route-simulator/internal/store"
)

// Frame is the published state of one tick.
type Frame struct {
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`

	Position geo.Point `json:"position"`
	Course   float64   `json:"course"`

	Speed        float64 `json:"speed"`        // km/h
	Target       float64 `json:"target"`       // km/h
	Acceleration float64 `json:"acceleration"` // km/h per second
	Odometer     int64   `json:"odometer"`
	OdometerRaw  float64 `json:"odometer_raw"`

	Road      string  `json:"road"`
	TurnAngle float64 `json:"turn_angle"`
	Traffic   string  `json:"traffic"`

	Motor *Motor `json:"motor,omitempty"`
}

// Motor carries the electrical part of a frame when the model is enabled.
type Motor struct {
	Voltage       float64 `json:"voltage"` // V
	Current       float64 `json:"current"` // A
	BatteryCharge float64 `json:"battery_charge"`
	DischargeWh   float64 `json:"discharge_wh"`
	RegenWh       float64 `json:"regen_wh"`
}

// MotorVoltageMillis returns the terminal voltage in mV.
func (m Motor) MotorVoltageMillis() int64 { return int64(m.Voltage * 1000) }

// MotorCurrentMillis returns the motor current in mA.
func (m Motor) MotorCurrentMillis() int64 { return int64(m.Current * 1000) }

// ChargePercent returns the state of charge as a whole percentage.
func (m Motor) ChargePercent() int64 { return int64(m.BatteryCharge * 100) }

// Publisher receives one frame per tick.
type Publisher interface {
	Publish(ctx context.Context, f Frame) error
}

// StoreWriter writes each frame as one atomic batch of field updates, each
// followed by a change notification.
type StoreWriter struct {
	Store store.Store
}

func (w *StoreWriter) Publish(ctx context.Context, f Frame) error {
	b := w.Store.Begin(ctx)
	defer b.Discard()

	set := func(group, field, value string) {
		b.Set(group, field, value)
		b.Notify(group, field)
	}

	set("gps", "latitude", strconv.FormatFloat(f.Position.Lat, 'f', 6, 64))
	set("gps", "longitude", strconv.FormatFloat(f.Position.Lon, 'f', 6, 64))
	set("gps", "course", strconv.FormatFloat(f.Course, 'f', 1, 64))
	set("engine-ecu", "speed", strconv.FormatInt(int64(math.Round(f.Speed)), 10))
	set("engine-ecu", "odometer", strconv.FormatInt(f.Odometer, 10))

	if f.Motor != nil {
		set("engine-ecu", "motor:voltage", strconv.FormatInt(f.Motor.MotorVoltageMillis(), 10))
		set("engine-ecu", "motor:current", strconv.FormatInt(f.Motor.MotorCurrentMillis(), 10))
		set("battery:0", "charge", strconv.FormatInt(f.Motor.ChargePercent(), 10))
	}

	return b.Commit()
}

// PublishDestination announces the navigation destination for display.
func PublishDestination(ctx context.Context, st store.Store, p geo.Point) error {
	b := st.Begin(ctx)
	defer b.Discard()
	b.Set("navigation", "destination", strconv.FormatFloat(p.Lat, 'f', -1, 64)+","+strconv.FormatFloat(p.Lon, 'f', -1, 64))
	b.Notify("navigation", "destination")
	return b.Commit()
}

// Multi fans a frame out to several publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, f Frame) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
