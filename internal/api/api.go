// Package api serves the read-only status endpoints of a running simulation.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/route-simulator/internal/db"
	"github.com/ukydev/route-simulator/internal/middleware"
)

const defaultTripLimit = 20

type server struct {
	board   *Board
	trips   db.TripCollection
	started time.Time
}

// InitServer builds the router. A nil trips disables the trip history.
// middlewares wrap every route, in order.
func InitServer(board *Board, trips db.TripCollection, middlewares ...mux.MiddlewareFunc) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.Use(middlewares...)

	s := server{board: board, trips: trips, started: time.Now()}

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.status).Methods(http.MethodGet)
	api.HandleFunc("/trips", s.recentTrips).Methods(http.MethodGet)

	return router
}

// NewServer wraps the router with access logging and CORS. The access log
// writer is closed when the server shuts down.
func NewServer(addr string, router http.Handler) *http.Server {
	return newServer(addr, router, log.StandardLogger().WriterLevel(log.DebugLevel))
}

func newServer(addr string, router http.Handler, accessLog io.WriteCloser) *http.Server {
	logged := handlers.LoggingHandler(accessLog, router)
	cors := handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           cors(logged),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		if err := accessLog.Close(); err != nil {
			log.WithError(err).Warn("Failed to close access log")
		}
	})
	return srv
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		log.WithField("subject", claims.Subject).Debug("Status requested")
	}
	frame, ok := s.board.Latest()
	if !ok {
		http.Error(w, "No telemetry yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (s *server) recentTrips(w http.ResponseWriter, r *http.Request) {
	if s.trips == nil {
		http.Error(w, "Trip log disabled", http.StatusNotFound)
		return
	}

	limit := int64(defaultTripLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	trips, err := s.trips.RecentTrips(r.Context(), limit)
	if err != nil {
		log.WithError(err).Error("Failed to load trips")
		http.Error(w, "Failed to load trips", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}
