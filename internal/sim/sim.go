// Package sim runs the fixed-rate tick loop that drives a vehicle along
// routes and publishes its state.
package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/route-simulator/internal/dynamics"
	"github.com/ukydev/route-simulator/internal/electrical"
	"github.com/ukydev/route-simulator/internal/geo"
	"github.com/ukydev/route-simulator/internal/models"
	"github.com/ukydev/route-simulator/internal/route"
	"github.com/ukydev/route-simulator/internal/store"
	"github.com/ukydev/route-simulator/internal/telemetry"
	"github.com/ukydev/route-simulator/internal/traffic"
)

// State is the orchestrator state.
type State int

const (
	NeedRoute State = iota
	Following
	Arrived
	Paused
)

func (s State) String() string {
	switch s {
	case NeedRoute:
		return "need_route"
	case Following:
		return "following"
	case Arrived:
		return "arrived"
	case Paused:
		return "paused"
	}
	return "unknown"
}

const (
	// ReadyState is the vehicle state value that lets the simulation run.
	ReadyState       = "ready-to-drive"
	RandomSpan       = 0.05 // degrees around the current position
	DefaultRetry     = 5 * time.Second
	DefaultInterval  = 500 * time.Millisecond
	DefaultReadiness = 2 // ticks between readiness polls
)

// RouteProvider returns the route shape between two points.
type RouteProvider interface {
	Route(ctx context.Context, start, end geo.Point) (route.Route, error)
}

// Electrical is the optional motor and battery model.
type Electrical interface {
	Step(speed, target, prevSpeed, dt float64) electrical.Reading
	Battery() electrical.Battery
}

// TripRecorder stores finished legs.
type TripRecorder interface {
	InsertTrip(ctx context.Context, trip models.Trip) error
}

// Config tunes a Simulator. Zero values fall back to defaults.
type Config struct {
	Start       geo.Point
	Destination *geo.Point

	Interval       time.Duration
	RetryDelay     time.Duration
	ReadinessEvery int
	LookAhead      float64
	Dynamics       dynamics.Params

	NoTraffic bool
	Roam      bool
	VehicleID string
}

// Deps are the collaborators of a Simulator. Electrical and Trips may be nil.
type Deps struct {
	Store      store.Store
	Routes     RouteProvider
	Publisher  telemetry.Publisher
	Electrical Electrical
	Trips      TripRecorder
	Rand       *rand.Rand
}

// Simulator owns all mutable simulation state. It is not safe for
// concurrent use; Run drives it from a single goroutine.
type Simulator struct {
	cfg Config

	store      store.Store
	routes     RouteProvider
	publisher  telemetry.Publisher
	electrical Electrical
	trips      TripRecorder
	rng        *rand.Rand
	now        func() time.Time

	Vehicle *dynamics.Vehicle
	Traffic *traffic.Machine

	state    State
	resume   State
	ready    bool
	tick     uint64
	cooldown int

	position    geo.Point
	course      float64
	cursor      *route.Cursor
	destination geo.Point
	fixed       bool

	leg  *leg
	legs int
}

// New creates a simulator at cfg.Start. The odometer is seeded from the
// store's engine-ecu odometer field.
func New(ctx context.Context, cfg Config, deps Deps) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetry
	}
	if cfg.ReadinessEvery <= 0 {
		cfg.ReadinessEvery = DefaultReadiness
	}
	if cfg.LookAhead <= 0 {
		cfg.LookAhead = route.DefaultLookAhead
	}
	if cfg.Dynamics == (dynamics.Params{}) {
		cfg.Dynamics = dynamics.DefaultParams()
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}

	odometer := 0.0
	raw := deps.Store.Get(ctx, "engine-ecu", "odometer", "0")
	if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
		odometer = v
	} else {
		log.WithField("value", raw).Warn("Ignoring invalid odometer seed")
	}

	s := &Simulator{
		cfg:        cfg,
		store:      deps.Store,
		routes:     deps.Routes,
		publisher:  deps.Publisher,
		electrical: deps.Electrical,
		trips:      deps.Trips,
		rng:        rng,
		now:        time.Now,
		Vehicle:    dynamics.NewVehicle(cfg.Dynamics, rng, odometer),
		Traffic:    traffic.NewMachine(rng),
		state:      NeedRoute,
		ready:      true,
		position:   cfg.Start,
	}
	if cfg.NoTraffic {
		s.Traffic.Disable()
	}
	return s
}

// State returns the current state.
func (s *Simulator) State() State { return s.state }

// Position returns the current position.
func (s *Simulator) Position() geo.Point { return s.position }

// Run ticks at the configured interval until the vehicle arrives or ctx is
// cancelled, and returns the final report.
func (s *Simulator) Run(ctx context.Context) Report {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.WithFields(log.Fields{
		"start":    s.position.String(),
		"interval": s.cfg.Interval,
	}).Info("Simulation started")

	for {
		if s.Step(ctx) == Arrived {
			return s.Report()
		}
		select {
		case <-ctx.Done():
			s.interrupt(ctx)
			return s.Report()
		case <-ticker.C:
		}
	}
}

// Step runs exactly one tick without sleeping and returns the resulting
// state. Arrived is terminal.
func (s *Simulator) Step(ctx context.Context) State {
	if s.state == Arrived {
		return s.state
	}
	s.tick++

	if (s.tick-1)%uint64(s.cfg.ReadinessEvery) == 0 {
		s.pollReadiness(ctx)
	}
	if !s.ready {
		return s.state
	}

	switch s.state {
	case NeedRoute:
		s.planLeg(ctx)
	case Following:
		s.follow(ctx)
	}
	return s.state
}

func (s *Simulator) pollReadiness(ctx context.Context) {
	value := s.store.Get(ctx, "vehicle", "state", ReadyState)
	ready := value == ReadyState

	switch {
	case !ready && s.state != Paused:
		s.resume = s.state
		s.state = Paused
		log.WithField("vehicle_state", value).Info("Vehicle not ready, pausing")
	case ready && s.state == Paused:
		s.state = s.resume
		log.Info("Vehicle ready, resuming")
	}
	s.ready = ready
}

func (s *Simulator) planLeg(ctx context.Context) {
	if s.cooldown > 0 {
		s.cooldown--
		return
	}

	dest, fixed := s.pickDestination(ctx)
	r, err := s.routes.Route(ctx, s.position, dest)
	if err == nil && !r.Active() {
		err = errNoWaypoints
	}
	if err != nil {
		ticks := int(math.Ceil(float64(s.cfg.RetryDelay) / float64(s.cfg.Interval)))
		s.cooldown = max(ticks-1, 0)
		log.WithError(err).WithFields(log.Fields{
			"destination": dest.String(),
			"retry_in":    s.cfg.RetryDelay,
		}).Warn("Route request failed")
		return
	}

	s.cursor = route.NewCursor(r, s.course)
	s.position = s.cursor.Position
	s.destination = dest
	s.fixed = fixed
	s.state = Following
	s.startLeg(r)

	log.WithFields(log.Fields{
		"destination": dest.String(),
		"waypoints":   len(r),
		"length_m":    math.Round(r.Length()),
	}).Info("Route loaded")
}

// pickDestination prefers the store's navigation destination, then the
// configured one, then a random point near the vehicle. fixed is false only
// for random destinations.
func (s *Simulator) pickDestination(ctx context.Context) (geo.Point, bool) {
	if v := s.store.Get(ctx, "navigation", "destination", ""); v != "" {
		p, err := geo.ParsePoint(v)
		if err == nil {
			return p, true
		}
		log.WithError(err).Warn("Ignoring stored destination")
	}
	if s.cfg.Destination != nil {
		return *s.cfg.Destination, true
	}
	return RandomDestination(s.rng, s.position), false
}

// RandomDestination draws a point within RandomSpan degrees of around on
// each axis, clamped to valid coordinates.
func RandomDestination(rng *rand.Rand, around geo.Point) geo.Point {
	offset := func() float64 { return (rng.Float64()*2 - 1) * RandomSpan }
	return geo.Point{
		Lat: math.Max(-90, math.Min(90, around.Lat+offset())),
		Lon: math.Max(-180, math.Min(180, around.Lon+offset())),
	}
}

func (s *Simulator) follow(ctx context.Context) {
	dt := s.cfg.Interval.Seconds()
	v := s.Vehicle

	curv := route.LookAhead(s.cursor, v.Params.MaxSpeed, s.cfg.LookAhead)
	s.Traffic.Step(curv.Intersection())

	ceiling := math.Min(curv.Ceiling, s.Traffic.Limit())
	ceiling = math.Min(ceiling, v.ArrivalCeiling(s.cursor.Remaining()))
	distance := v.Step(ceiling, dt)

	var reading *electrical.Reading
	if s.electrical != nil {
		r := s.electrical.Step(v.Speed, v.Target, v.PrevSpeed, dt)
		reading = &r
	}

	s.cursor.Advance(distance)
	s.position = s.cursor.Position
	s.course = s.cursor.Course
	s.leg.ticks++

	if s.cursor.Arrived() {
		s.finishLeg(ctx, models.TripCompleted)
		if s.cfg.Roam && !s.fixed {
			s.state = NeedRoute
		} else {
			s.state = Arrived
		}
	}

	frame := s.frame(curv, reading)
	s.logTick(frame)
	if err := s.publisher.Publish(ctx, frame); err != nil {
		log.WithError(err).WithField("tick", s.tick).Warn("Failed to publish telemetry")
	}

	if s.state == Arrived {
		log.WithField("destination", s.destination.String()).Info("Destination reached")
	}
}

func (s *Simulator) frame(curv route.Curvature, reading *electrical.Reading) telemetry.Frame {
	v := s.Vehicle
	f := telemetry.Frame{
		Tick:         s.tick,
		Timestamp:    s.now().UTC(),
		State:        s.state.String(),
		Position:     s.position,
		Course:       s.course,
		Speed:        v.Speed,
		Target:       v.Target,
		Acceleration: v.Acceleration(s.cfg.Interval.Seconds()),
		Odometer:     v.ReportedOdometer(),
		OdometerRaw:  v.Odometer,
		Road:         curv.Label,
		TurnAngle:    curv.MaxTurn,
		Traffic:      s.Traffic.State().String(),
	}
	if reading != nil {
		b := s.electrical.Battery()
		f.Motor = &telemetry.Motor{
			Voltage:       reading.Voltage,
			Current:       reading.Current,
			BatteryCharge: b.SoC,
			DischargeWh:   b.Discharged,
			RegenWh:       b.Regenerated,
		}
	}
	return f
}

func (s *Simulator) logTick(f telemetry.Frame) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	fields := log.Fields{
		"tick":     f.Tick,
		"position": f.Position.String(),
		"speed":    math.Round(f.Speed*10) / 10,
		"target":   math.Round(f.Target*10) / 10,
		"accel":    math.Round(f.Acceleration*10) / 10,
		"road":     f.Road,
		"traffic":  f.Traffic,
		"odometer": f.Odometer,
	}
	if f.Motor != nil {
		fields["current"] = math.Round(f.Motor.Current*10) / 10
		fields["voltage"] = math.Round(f.Motor.Voltage*100) / 100
		fields["soc"] = math.Round(f.Motor.BatteryCharge*1000) / 10
		fields["discharge_wh"] = math.Round(f.Motor.DischargeWh*100) / 100
		fields["regen_wh"] = math.Round(f.Motor.RegenWh*100) / 100
	}
	log.WithFields(fields).Debug("Tick")
}

func (s *Simulator) interrupt(ctx context.Context) {
	if s.state == Following || (s.state == Paused && s.resume == Following) {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.finishLeg(recordCtx, models.TripInterrupted)
	}
	log.Info("Simulation interrupted")
}
