package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/route-simulator/internal/models"
)

// TripsCollection is the collection completed legs are written to.
const TripsCollection = "trips"

// ConnectMongo connects to MongoDB at uri, falling back to the MONGO_URI
// environment variable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		uri = os.Getenv("MONGO_URI")
	}
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	// Ping to verify connection
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoCollection wraps a MongoDB collection for trip operations.
type MongoCollection struct {
	Collection *mongo.Collection
}

// NewTripCollection returns the trips collection of database dbName.
func NewTripCollection(client *mongo.Client, dbName string) *MongoCollection {
	return &MongoCollection{Collection: client.Database(dbName).Collection(TripsCollection)}
}

// InsertTrip inserts a trip record into the collection.
func (c *MongoCollection) InsertTrip(ctx context.Context, trip models.Trip) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = time.Now()
	}
	_, err := c.Collection.InsertOne(ctx, trip)
	return err
}

// RecentTrips returns up to limit trips, newest first.
func (c *MongoCollection) RecentTrips(ctx context.Context, limit int64) ([]models.Trip, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: -1}}).SetLimit(limit)
	cursor, err := c.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	trips := []models.Trip{}
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}
