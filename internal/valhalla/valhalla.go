// Package valhalla fetches route shapes from a Valhalla routing service.
package valhalla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/ukydev/route-simulator/internal/geo"
	"github.com/ukydev/route-simulator/internal/route"
)

const (
	DefaultURL       = "https://valhalla1.openstreetmap.de/route"
	DefaultCosting   = "motor_scooter"
	DefaultPrecision = 5
)

// ErrNoRoute wraps every failure to obtain a usable route.
var ErrNoRoute = errors.New("no route")

// Client requests routes from Valhalla's /route endpoint.
type Client struct {
	URL       string
	Costing   string
	Precision int // decimal digits of the encoded shape
	HTTP      *http.Client
}

// NewClient creates a client with a 10 second request timeout.
func NewClient(url, costing string, precision int) *Client {
	if url == "" {
		url = DefaultURL
	}
	if costing == "" {
		costing = DefaultCosting
	}
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &Client{
		URL:       url,
		Costing:   costing,
		Precision: precision,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
	}
}

type location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type routeRequest struct {
	Locations []location `json:"locations"`
	Costing   string     `json:"costing"`
	Units     string     `json:"units"`
}

type routeResponse struct {
	Trip struct {
		Legs []struct {
			Shape string `json:"shape"`
		} `json:"legs"`
	} `json:"trip"`
}

// Route returns the shape of the first leg between start and end.
func (c *Client) Route(ctx context.Context, start, end geo.Point) (route.Route, error) {
	body, err := json.Marshal(routeRequest{
		Locations: []location{{Lat: start.Lat, Lon: start.Lon}, {Lat: end.Lat, Lon: end.Lon}},
		Costing:   c.Costing,
		Units:     "kilometers",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: valhalla returned %d", ErrNoRoute, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRoute, err)
	}
	var parsed routeResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: JSON decode failed: %v", ErrNoRoute, err)
	}
	if len(parsed.Trip.Legs) == 0 {
		return nil, fmt.Errorf("%w: response has no legs", ErrNoRoute)
	}

	r, err := Decode(parsed.Trip.Legs[0].Shape, c.Precision)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Decode decodes an encoded polyline with the given number of decimal digits.
func Decode(shape string, precision int) (route.Route, error) {
	codec := polyline.Codec{Dim: 2, Scale: math.Pow10(precision)}
	coords, rest, err := codec.DecodeCoords([]byte(shape))
	if err != nil {
		return nil, fmt.Errorf("%w: bad shape: %v", ErrNoRoute, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: trailing shape data", ErrNoRoute)
	}

	r := make(route.Route, 0, len(coords))
	for _, c := range coords {
		r = append(r, geo.Point{Lat: c[0], Lon: c[1]})
	}
	if !r.Active() {
		return nil, fmt.Errorf("%w: shape has %d points", ErrNoRoute, len(r))
	}
	return r, nil
}

// Encode is the inverse of Decode.
func Encode(r route.Route, precision int) string {
	coords := make([][]float64, 0, len(r))
	for _, p := range r {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	codec := polyline.Codec{Dim: 2, Scale: math.Pow10(precision)}
	return string(codec.EncodeCoords(nil, coords))
}
