package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/xigmatekctl/internal/config"
	"codeberg.org/mutker/xigmatekctl/internal/device"
	"codeberg.org/mutker/xigmatekctl/internal/logger"
	"codeberg.org/mutker/xigmatekctl/internal/pid"
	"codeberg.org/mutker/xigmatekctl/internal/scheduler"
	"codeberg.org/mutker/xigmatekctl/internal/sensors"
	"codeberg.org/mutker/xigmatekctl/internal/supervisor"
	"codeberg.org/mutker/xigmatekctl/internal/telemetry"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	applyLogLevel(cfg)
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Error().Err(err).Msg("Failed to write PID file")
		os.Exit(1)
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	transport, err := device.NewTransport()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize HID layer")
		os.Exit(1)
	}
	defer func() {
		if err := transport.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("Failed to shut down HID layer")
		}
	}()

	source := sensors.NewSystemSource()
	defer func() {
		if err := source.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close sensor source")
		}
	}()

	resolver := sensors.NewResolver(sensors.ResolverConfig{
		MinTemp:     cfg.MinTemp,
		MaxTemp:     cfg.MaxTemp,
		CPUOffset:   cfg.CPUOffset,
		GPUOffset:   cfg.GPUOffset,
		FallbackCPU: cfg.FallbackCPU,
		FallbackGPU: cfg.FallbackGPU,
	})

	sup := supervisor.New(transport)

	opts := []scheduler.Option{}
	if cfg.Telemetry {
		collector, err := telemetry.NewService(telemetry.Config{DBPath: cfg.TelemetryDB})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize telemetry, continuing without")
		} else {
			defer func() {
				if err := collector.Close(); err != nil {
					logger.Warn().Err(err).Msg("Failed to close telemetry")
				}
			}()
			opts = append(opts, scheduler.WithCollector(collector))
		}
	}

	sched := scheduler.New(scheduler.Config{
		Interval:        time.Duration(cfg.Interval * float64(time.Second)),
		WakeEveryUpdate: cfg.WakeEveryUpdate,
		WakeInterval:    cfg.WakeInterval,
	}, transport, sup, source, resolver, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := sched.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in update loop")
	}

	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func applyLogLevel(cfg *config.Config) {
	if cfg.Debug || cfg.Verbose {
		return
	}

	switch cfg.LogLevel {
	case "debug":
		logger.SetLogLevel(logger.DebugLevel)
	case "info":
		logger.SetLogLevel(logger.InfoLevel)
	case "warning":
		logger.SetLogLevel(logger.WarnLevel)
	case "error":
		logger.SetLogLevel(logger.ErrorLevel)
	}
}
