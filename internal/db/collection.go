package db

import (
	"context"

	"github.com/ukydev/route-simulator/internal/models"
)

// TripCollection defines the interface for trip log operations.
type TripCollection interface {
	InsertTrip(ctx context.Context, trip models.Trip) error
	RecentTrips(ctx context.Context, limit int64) ([]models.Trip, error)
}
