package models

import "github.com/ukydev/route-simulator/internal/geo"

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// LocationOf converts a geo.Point into its stored form.
func LocationOf(p geo.Point) Location {
	return Location{Lat: p.Lat, Lon: p.Lon}
}
