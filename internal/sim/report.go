package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/route-simulator/internal/geo"
	"github.com/ukydev/route-simulator/internal/models"
	"github.com/ukydev/route-simulator/internal/route"
)

var errNoWaypoints = errors.New("route has fewer than two waypoints")

// leg tracks the totals of the route currently being followed.
type leg struct {
	start       geo.Point
	startTime   time.Time
	odometer    float64
	discharged  float64
	regenerated float64
	waypoints   int
	ticks       int
}

func (s *Simulator) startLeg(r route.Route) {
	l := &leg{
		start:     s.position,
		startTime: s.now(),
		odometer:  s.Vehicle.Odometer,
		waypoints: len(r),
	}
	if s.electrical != nil {
		b := s.electrical.Battery()
		l.discharged = b.Discharged
		l.regenerated = b.Regenerated
	}
	s.leg = l
}

func (s *Simulator) finishLeg(ctx context.Context, status string) {
	l := s.leg
	if l == nil {
		return
	}
	s.leg = nil
	s.legs++

	if s.trips == nil {
		return
	}

	end := s.now()
	trip := models.Trip{
		VehicleID:     s.cfg.VehicleID,
		StartLocation: models.LocationOf(l.start),
		EndLocation:   models.LocationOf(s.position),
		Destination:   models.LocationOf(s.destination),
		StartTime:     l.startTime,
		EndTime:       end,
		Distance:      (s.Vehicle.Odometer - l.odometer) / 1000,
		Duration:      float64(l.ticks) * s.cfg.Interval.Hours(),
		Ticks:         l.ticks,
		Waypoints:     l.waypoints,
		Status:        status,
		CreatedAt:     end,
	}
	if s.electrical != nil {
		b := s.electrical.Battery()
		trip.BatteryConsumption = (b.Discharged - l.discharged) / 1000
		trip.BatteryRegenerated = (b.Regenerated - l.regenerated) / 1000
	}

	if err := s.trips.InsertTrip(ctx, trip); err != nil {
		log.WithError(err).Warn("Failed to record trip")
		return
	}
	log.WithFields(log.Fields{
		"status":      status,
		"distance_km": trip.Distance,
	}).Info("Trip recorded")
}

// Report summarizes a run.
type Report struct {
	State         State
	Position      geo.Point
	Odometer      float64 // meters
	Reported      int64   // odometer as published, rounded to 100 m
	DischargedWh  float64
	RegeneratedWh float64
	Ticks         uint64
	Legs          int
}

// Report returns the current totals.
func (s *Simulator) Report() Report {
	r := Report{
		State:    s.state,
		Position: s.position,
		Odometer: s.Vehicle.Odometer,
		Reported: s.Vehicle.ReportedOdometer(),
		Ticks:    s.tick,
		Legs:     s.legs,
	}
	if s.electrical != nil {
		b := s.electrical.Battery()
		r.DischargedWh = b.Discharged
		r.RegeneratedWh = b.Regenerated
	}
	return r
}

// Fields returns the report as log fields.
func (r Report) Fields() log.Fields {
	return log.Fields{
		"state":          r.State.String(),
		"position":       r.Position.String(),
		"odometer":       r.Reported,
		"odometer_m":     r.Odometer,
		"discharged_wh":  r.DischargedWh,
		"regenerated_wh": r.RegeneratedWh,
		"ticks":          r.Ticks,
		"legs":           r.Legs,
	}
}

func (r Report) String() string {
	return fmt.Sprintf("final position %s, odometer %d m (%.1f m raw), discharged %.2f Wh, regenerated %.2f Wh, %d ticks, %d legs (%s)",
		r.Position, r.Reported, r.Odometer, r.DischargedWh, r.RegeneratedWh, r.Ticks, r.Legs, r.State)
}
