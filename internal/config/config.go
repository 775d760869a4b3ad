// Package config assembles agent configuration from CLI flags and
// environment variables. The agent has a handful of scalar knobs, so
// pflag plus a few env fallbacks covers the surface without a config
// file layer.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/weathermesh/sentinel/internal/wire"
)

// Config holds everything needed to start one sensor agent process.
type Config struct {
	Broker       string
	Port         int
	SensorType   string
	SectorHint   string
	BaseInterval int
	Seed         int64
	MetricsPort  int
	LogLevel     string
	LogFormat    string
}

// Default values applied before env and flag layering.
const (
	DefaultBroker       = "localhost"
	DefaultPort         = 1883
	DefaultSensorType   = "meteo"
	DefaultBaseInterval = 5
	DefaultMetricsPort  = 9100
)

// Parse builds a Config from argv (excluding the program name) layered
// over environment variables MQTT_BROKER, MQTT_PORT, and SEED, which
// in turn are layered over built-in defaults. Flags take precedence
// over environment, which takes precedence over defaults.
func Parse(args []string) (Config, error) {
	cfg := Config{
		Broker:       envOr("MQTT_BROKER", DefaultBroker),
		Port:         envIntOr("MQTT_PORT", DefaultPort),
		SensorType:   DefaultSensorType,
		BaseInterval: DefaultBaseInterval,
		Seed:         envInt64Or("SEED", 0),
		MetricsPort:  DefaultMetricsPort,
		LogLevel:     "info",
		LogFormat:    "json",
	}

	fs := pflag.NewFlagSet("sensor-agent", pflag.ContinueOnError)
	broker := fs.StringP("broker", "b", cfg.Broker, "MQTT broker host")
	port := fs.IntP("port", "p", cfg.Port, "MQTT broker port")
	sector := fs.StringP("sector", "s", cfg.SectorHint, "sector hint to request on assignment")
	interval := fs.IntP("interval", "i", cfg.BaseInterval, "base publish interval in seconds")
	seed := fs.Int64("seed", cfg.Seed, "deterministic RNG seed (0 derives from the current time)")
	metricsPort := fs.Int("metrics-port", cfg.MetricsPort, "Prometheus metrics HTTP port")
	sensorType := fs.String("type", cfg.SensorType, "sensor type reported in presence and topics")
	verbose := fs.BoolP("verbose", "v", false, "enable debug-level logging")
	logFormat := fs.String("log-format", cfg.LogFormat, "log output format: json or console")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parsing flags: %w", err)
	}

	cfg.Broker = *broker
	cfg.Port = *port
	cfg.SectorHint = *sector
	cfg.BaseInterval = *interval
	cfg.Seed = *seed
	cfg.MetricsPort = *metricsPort
	cfg.SensorType = *sensorType
	cfg.LogFormat = *logFormat
	if *verbose {
		cfg.LogLevel = "debug"
	}

	if cfg.SectorHint != "" && !validSector(cfg.SectorHint) {
		return Config{}, fmt.Errorf("config: unknown sector hint %q", cfg.SectorHint)
	}
	if cfg.BaseInterval <= 0 {
		return Config{}, fmt.Errorf("config: interval must be positive, got %d", cfg.BaseInterval)
	}

	return cfg, nil
}

func validSector(sector string) bool {
	for _, s := range wire.Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
