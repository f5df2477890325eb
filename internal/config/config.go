// Package config reads the simulator settings from the command line, the
// environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/route-simulator/internal/geo"
	"github.com/ukydev/route-simulator/internal/valhalla"
)

// EnvPrefix prefixes the environment variable of every flag,
// e.g. ROUTESIM_REDIS_ADDR for --redis-addr.
const EnvPrefix = "ROUTESIM"

// ErrUsage marks invalid command line input.
var ErrUsage = errors.New("usage error")

// Config holds the settings of one simulator run.
type Config struct {
	Start          geo.Point
	Destination    *geo.Point
	SetDestination bool

	RedisAddr string
	RedisDB   int
	DryRun    bool

	ValhallaURL       string
	Costing           string
	PolylinePrecision int

	Rate         float64
	Seed         uint64
	NoTraffic    bool
	NoElectrical bool
	Roam         bool
	VehicleID    string

	MQTTBroker string
	MQTTTopic  string

	MongoURI string
	MongoDB  string

	StatusAddr      string
	StatusSecret    string
	StatusRateLimit int
	MintToken       bool
	TokenSubject    string
	TokenTTL        time.Duration

	LogLevel string
	LogJSON  bool
}

// Interval returns the tick period.
func (c Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.Rate)
}

// Usage is the synopsis printed on ErrUsage.
const Usage = "usage: routesim [flags] start_lat start_lon [dest_lat dest_lon]\n       routesim --mint-token --status-secret SECRET [--token-subject NAME]"

// Load parses args (without the program name). Loading .env is best effort.
func Load(args []string, output io.Writer) (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded .env file")
	}

	var cfg Config
	fs := flag.NewFlagSet("routesim", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.BoolVar(&cfg.SetDestination, "set-destination", false, "publish the destination to navigation/destination")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "redis address")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "use an in-memory store instead of redis")
	fs.StringVar(&cfg.ValhallaURL, "valhalla-url", valhalla.DefaultURL, "valhalla route endpoint")
	fs.StringVar(&cfg.Costing, "costing", valhalla.DefaultCosting, "valhalla costing model")
	fs.IntVar(&cfg.PolylinePrecision, "polyline-precision", valhalla.DefaultPrecision, "decimal digits of the route shape")
	fs.Float64Var(&cfg.Rate, "rate", 2, "ticks per second")
	fs.Uint64Var(&cfg.Seed, "seed", 0, "random seed (0 = time based)")
	fs.BoolVar(&cfg.NoTraffic, "no-traffic", false, "disable traffic events")
	fs.BoolVar(&cfg.NoElectrical, "no-electrical", false, "disable the motor and battery model")
	fs.BoolVar(&cfg.Roam, "roam", false, "pick a new random destination on arrival")
	fs.StringVar(&cfg.VehicleID, "vehicle-id", "scooter", "vehicle id used in trip logs and mqtt")
	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", "", "mqtt broker to mirror telemetry to, e.g. tcp://localhost:1883")
	fs.StringVar(&cfg.MQTTTopic, "mqtt-topic", "scooter/telemetry", "mqtt topic")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", "", "mongodb uri for the trip log")
	fs.StringVar(&cfg.MongoDB, "mongo-db", "fleet", "mongodb database")
	fs.StringVar(&cfg.StatusAddr, "status-addr", "", "listen address of the status api (empty = disabled)")
	fs.StringVar(&cfg.StatusSecret, "status-secret", "", "HS256 secret required by the status api")
	fs.IntVar(&cfg.StatusRateLimit, "status-rate-limit", 120, "status api requests per client per minute (0 = unlimited)")
	fs.BoolVar(&cfg.MintToken, "mint-token", false, "print a status api token signed with --status-secret and exit")
	fs.StringVar(&cfg.TokenSubject, "token-subject", "dashboard", "subject of the minted token")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "lifetime of the minted token")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "log as JSON")

	flags, positional := splitArgs(fs, args)
	if err := ff.Parse(fs, flags, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	positional = append(positional, fs.Args()...)

	if cfg.MintToken {
		if cfg.StatusSecret == "" {
			return cfg, fmt.Errorf("%w: --mint-token needs --status-secret", ErrUsage)
		}
		if cfg.TokenTTL <= 0 {
			return cfg, fmt.Errorf("%w: token ttl must be positive", ErrUsage)
		}
	}
	// coordinates are optional when only minting a token
	if !cfg.MintToken || len(positional) > 0 {
		if err := cfg.setPoints(positional); err != nil {
			return cfg, err
		}
	}
	if cfg.Rate <= 0 {
		return cfg, fmt.Errorf("%w: rate must be positive", ErrUsage)
	}
	if cfg.PolylinePrecision < 1 || cfg.PolylinePrecision > 10 {
		return cfg, fmt.Errorf("%w: polyline precision %d out of range", ErrUsage, cfg.PolylinePrecision)
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return cfg, nil
}

func (c *Config) setPoints(positional []string) error {
	switch len(positional) {
	case 2, 4:
	case 3:
		return fmt.Errorf("%w: destination needs both latitude and longitude", ErrUsage)
	default:
		return fmt.Errorf("%w: expected start_lat start_lon [dest_lat dest_lon], got %d values", ErrUsage, len(positional))
	}

	start, err := parsePoint(positional[0], positional[1])
	if err != nil {
		return err
	}
	c.Start = start

	if len(positional) == 4 {
		dest, err := parsePoint(positional[2], positional[3])
		if err != nil {
			return err
		}
		c.Destination = &dest
	}
	return nil
}

func parsePoint(lat, lon string) (geo.Point, error) {
	p, err := geo.ParsePoint(lat + "," + lon)
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return p, nil
}

// splitArgs separates coordinates from flags so that negative coordinates
// are not mistaken for flags and flags may follow the coordinates.
func splitArgs(fs *flag.FlagSet, args []string) (flags, positional []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if isNumber(a) || !strings.HasPrefix(a, "-") {
			positional = append(positional, a)
			continue
		}

		flags = append(flags, a)
		if strings.Contains(a, "=") {
			continue
		}
		f := fs.Lookup(strings.TrimLeft(a, "-"))
		if f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, positional
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}
