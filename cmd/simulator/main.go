package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ukydev/route-simulator/internal/api"
	"github.com/ukydev/route-simulator/internal/auth"
	"github.com/ukydev/route-simulator/internal/config"
	"github.com/ukydev/route-simulator/internal/db"
	"github.com/ukydev/route-simulator/internal/electrical"
	"github.com/ukydev/route-simulator/internal/geo"
	"github.com/ukydev/route-simulator/internal/middleware"
	"github.com/ukydev/route-simulator/internal/sim"
	"github.com/ukydev/route-simulator/internal/store"
	"github.com/ukydev/route-simulator/internal/telemetry"
	"github.com/ukydev/route-simulator/internal/valhalla"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, config.Usage)
		return exitUsage
	}
	setupLogging(cfg)

	if cfg.MintToken {
		return mintToken(cfg, stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Failed to open state store")
		return exitFailure
	}
	defer closeStore()

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	log.WithField("seed", seed).Debug("Random generator seeded")
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	if cfg.SetDestination {
		var dest geo.Point
		if cfg.Destination != nil {
			dest = *cfg.Destination
		} else {
			dest = sim.RandomDestination(rng, cfg.Start)
		}
		if err := telemetry.PublishDestination(ctx, st, dest); err != nil {
			log.WithError(err).Warn("Failed to publish destination")
		} else {
			log.WithField("destination", dest.String()).Info("Published navigation destination")
		}
	}

	publishers := telemetry.Multi{&telemetry.StoreWriter{Store: st}}

	if cfg.MQTTBroker != "" {
		client, err := telemetry.ConnectMQTT(cfg.MQTTBroker, "routesim-"+cfg.VehicleID)
		if err != nil {
			log.WithError(err).Warn("MQTT mirror disabled")
		} else {
			defer disconnectMQTT(client)
			publishers = append(publishers, &telemetry.MQTTMirror{Client: client, Topic: cfg.MQTTTopic})
		}
	}

	var trips db.TripCollection
	if cfg.MongoURI != "" {
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.WithError(err).Warn("Trip log disabled")
		} else {
			defer disconnectMongo(client)
			trips = db.NewTripCollection(client, cfg.MongoDB)
			log.WithField("database", cfg.MongoDB).Info("Recording trips to MongoDB")
		}
	}

	if cfg.StatusAddr != "" {
		board := &api.Board{}
		publishers = append(publishers, board)

		srv, err := startStatusServer(cfg, board, trips)
		if err != nil {
			log.WithError(err).Error("Failed to start status API")
			return exitFailure
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Status API shutdown failed")
			}
		}()
	}

	var elec sim.Electrical
	if !cfg.NoElectrical {
		elec = electrical.NewModel(electrical.DefaultParams())
	}

	simulator := sim.New(ctx, sim.Config{
		Start:       cfg.Start,
		Destination: cfg.Destination,
		Interval:    cfg.Interval(),
		NoTraffic:   cfg.NoTraffic,
		Roam:        cfg.Roam,
		VehicleID:   cfg.VehicleID,
	}, sim.Deps{
		Store:      st,
		Routes:     valhalla.NewClient(cfg.ValhallaURL, cfg.Costing, cfg.PolylinePrecision),
		Publisher:  publishers,
		Electrical: elec,
		Trips:      trips,
		Rand:       rng,
	})

	report := simulator.Run(ctx)
	log.WithFields(report.Fields()).Info("Simulation finished")
	fmt.Fprintln(stdout, report.String())
	return exitOK
}

// mintToken prints a bearer token accepted by a status API started with the
// same secret.
func mintToken(cfg config.Config, stdout io.Writer) int {
	authService, err := auth.NewService(cfg.StatusSecret, cfg.TokenTTL)
	if err != nil {
		log.WithError(err).Error("Failed to create token service")
		return exitFailure
	}
	token, err := authService.GenerateToken(cfg.TokenSubject)
	if err != nil {
		log.WithError(err).Error("Failed to mint token")
		return exitFailure
	}
	log.WithFields(log.Fields{
		"subject": cfg.TokenSubject,
		"ttl":     cfg.TokenTTL.String(),
	}).Info("Minted status API token")
	fmt.Fprintln(stdout, token)
	return exitOK
}

func setupLogging(cfg config.Config) {
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DryRun {
		log.Info("Dry run, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}

	r := store.NewRedis(cfg.RedisAddr, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		r.Close()
		return nil, nil, err
	}
	log.WithField("addr", cfg.RedisAddr).Info("Connected to Redis")
	return r, func() {
		if err := r.Close(); err != nil {
			log.WithError(err).Warn("Failed to close Redis client")
		}
	}, nil
}

func startStatusServer(cfg config.Config, board *api.Board, trips db.TripCollection) (*http.Server, error) {
	var middlewares []mux.MiddlewareFunc
	if cfg.StatusRateLimit > 0 {
		middlewares = append(middlewares, middleware.NewRateLimitMiddleware().RateLimit(cfg.StatusRateLimit, time.Minute))
	}
	if cfg.StatusSecret != "" {
		authService, err := auth.NewService(cfg.StatusSecret, 0)
		if err != nil {
			return nil, err
		}
		middlewares = append(middlewares, middleware.NewAuthMiddleware(authService).Authenticate)
	}

	srv := api.NewServer(cfg.StatusAddr, api.InitServer(board, trips, middlewares...))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Status API stopped")
		}
	}()
	log.WithFields(log.Fields{
		"addr": cfg.StatusAddr,
		"auth": cfg.StatusSecret != "",
	}).Info("Status API listening")
	return srv, nil
}

func disconnectMQTT(client mqtt.Client) {
	client.Disconnect(250)
}

func disconnectMongo(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("Failed to disconnect from MongoDB")
	}
}
