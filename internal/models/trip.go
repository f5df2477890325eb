package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trip statuses.
const (
	TripCompleted   = "completed"
	TripInterrupted = "interrupted"
)

// Trip represents one simulated navigation leg from start to end location.
type Trip struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VehicleID          string             `json:"vehicle_id" bson:"vehicle_id"`
	StartLocation      Location           `json:"start_location" bson:"start_location"`
	EndLocation        Location           `json:"end_location" bson:"end_location"`
	Destination        Location           `json:"destination" bson:"destination"`
	StartTime          time.Time          `json:"start_time" bson:"start_time"`
	EndTime            time.Time          `json:"end_time" bson:"end_time"`
	Distance           float64            `json:"distance" bson:"distance"` // in kilometers
	Duration           float64            `json:"duration" bson:"duration"` // in hours of simulated time
	Ticks              int                `json:"ticks" bson:"ticks"`
	Waypoints          int                `json:"waypoints" bson:"waypoints"`
	BatteryConsumption float64            `json:"battery_consumption" bson:"battery_consumption"` // in kWh
	BatteryRegenerated float64            `json:"battery_regenerated" bson:"battery_regenerated"` // in kWh
	Status             string             `json:"status" bson:"status"`                           // "completed", "interrupted"
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
}
