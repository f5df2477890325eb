package main

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/route-simulator/internal/auth"
	"github.com/ukydev/route-simulator/internal/config"
	"github.com/ukydev/route-simulator/internal/geo"
	"github.com/ukydev/route-simulator/internal/route"
	"github.com/ukydev/route-simulator/internal/sim"
	"github.com/ukydev/route-simulator/internal/valhalla"
)

func TestRun_UsageErrors(t *testing.T) {
	tests := [][]string{
		nil,
		{"52.5"},
		{"52.5", "13.4", "52.6"},
		{"--no-such-flag", "52.5", "13.4"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		code := run(args, &stdout, &stderr)
		assert.Equal(t, exitUsage, code, "args %v", args)
		assert.Contains(t, stderr.String(), config.Usage)
		assert.Empty(t, stdout.String())
	}
}

func TestRun_UnreachableRedis(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--redis-addr", "127.0.0.1:1", "--log-level", "error", "1", "2"}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
}

func TestRun_MintToken(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--mint-token", "--status-secret", "s3cret", "--token-subject", "ops", "--log-level", "error"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	token := strings.TrimSpace(stdout.String())
	require.NotEmpty(t, token)

	authService, err := auth.NewService("s3cret", 0)
	require.NoError(t, err)
	claims, err := authService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	other, err := auth.NewService("other", 0)
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRun_DryRunArrives(t *testing.T) {
	if testing.Short() {
		t.Skip("runs in real time")
	}

	shape := valhalla.Encode(route.Route{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.0001}}, valhalla.DefaultPrecision)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"trip": map[string]interface{}{
				"legs": []map[string]string{{"shape": shape}},
			},
		})
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--dry-run", "--no-traffic", "--seed", "7", "--rate", "10", "--log-level", "error",
		"--valhalla-url", server.URL, "--set-destination",
		"0", "0", "0", "0.0001",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "(arrived)")
	assert.Contains(t, stdout.String(), "1 legs")
}

func TestRun_SetRandomDestination(t *testing.T) {
	if testing.Short() {
		t.Skip("runs in real time")
	}

	shape := valhalla.Encode(route.Route{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.0001}}, valhalla.DefaultPrecision)
	ends := make(chan geo.Point, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Locations []geo.Point `json:"locations"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Locations, 2) {
			ends <- req.Locations[1]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"trip": map[string]interface{}{
				"legs": []map[string]string{{"shape": shape}},
			},
		})
	}))
	defer server.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"--dry-run", "--no-traffic", "--seed", "3", "--rate", "10", "--log-level", "error",
		"--valhalla-url", server.URL, "--set-destination",
		"0", "0",
	}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "(arrived)", "published destination is fixed")
	require.Len(t, ends, 1, "one leg is planned")
	end := <-ends
	assert.NotEqual(t, geo.Point{}, end)
	assert.LessOrEqual(t, math.Abs(end.Lat), sim.RandomSpan)
	assert.LessOrEqual(t, math.Abs(end.Lon), sim.RandomSpan)
}
