// Command sensor-agent runs one autonomous weather-risk sensor: it
// connects to the broker, waits for the monitor to assign it a
// sector, then samples, reasons about, and gossips weather risk until
// shut down.
package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/weathermesh/sentinel/internal/agent"
	"github.com/weathermesh/sentinel/internal/brain"
	"github.com/weathermesh/sentinel/internal/config"
	"github.com/weathermesh/sentinel/internal/metrics"
	"github.com/weathermesh/sentinel/internal/sampler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	config.InitLogger(cfg.LogLevel, cfg.LogFormat)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sensorID := brain.NewSensorID(cfg.SensorType, rand.New(rand.NewSource(seed)))

	instanceID := uuid.New().String()
	agentLog := config.NewAgentLogger(sensorID, cfg.SensorType).With().Str("instance_id", instanceID).Logger()

	a := agent.New(agent.Params{
		SensorID:     sensorID,
		SensorType:   cfg.SensorType,
		SectorHint:   cfg.SectorHint,
		Broker:       cfg.Broker,
		Port:         cfg.Port,
		BaseInterval: cfg.BaseInterval,
		Sample:       sampler.NewDefaultRandom(seed + 1),
		Metrics:      metrics.NewAgentMetrics(sensorID),
		Log:          agentLog,
	})

	metricsServer := metrics.NewServer(cfg.MetricsPort, a.HealthStatus, config.NewLogger("metrics_server"))
	metricsServer.Start()

	ctx := context.Background()
	if err := a.Connect(ctx); err != nil {
		agentLog.Fatal().Err(err).Msg("failed to connect to broker")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runCtx, cancelRun := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(runCtx)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		agentLog.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancelRun()
		runErr = <-errCh
		if errors.Is(runErr, context.Canceled) {
			// Operator-interrupt path: cancellation is the expected
			// way publishLoop unwinds, not a failure.
			runErr = nil
		}
	case runErr = <-errCh:
		if runErr != nil {
			agentLog.Error().Err(runErr).Msg("agent run exited with error")
		}
	}
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		agentLog.Error().Err(err).Msg("error shutting down metrics server")
	}

	if runErr != nil {
		os.Exit(1)
	}
	agentLog.Info().Msg("sensor agent shutdown complete")
}
