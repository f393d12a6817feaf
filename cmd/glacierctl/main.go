package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/frostyard/glacierctl/internal/api"
	"github.com/frostyard/glacierctl/internal/config"
	"github.com/frostyard/glacierctl/internal/device"
	"github.com/frostyard/glacierctl/internal/errors"
	"github.com/frostyard/glacierctl/internal/hid"
	"github.com/frostyard/glacierctl/internal/icon"
	"github.com/frostyard/glacierctl/internal/logger"
	"github.com/frostyard/glacierctl/internal/pid"
	"github.com/frostyard/glacierctl/internal/report"
	"github.com/frostyard/glacierctl/internal/scheduler"
	"github.com/frostyard/glacierctl/internal/sensor"
	"github.com/frostyard/glacierctl/internal/telemetry"
	"github.com/frostyard/glacierctl/internal/tray"
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
	logger.Debug().Msg("Config loaded")
}

func main() {
	errFactory := errors.New()

	// Startup preconditions, fatal before the loop starts
	if err := pid.Write(); err != nil {
		fatal(err)
	}
	defer pid.Remove()

	if !isElevated() {
		if elevationRequired {
			fatal(errFactory.New(errors.ErrPrivilege))
		}
		logger.Warn().Msg("Not running elevated; sensor access may be restricted")
	}

	t := tray.New()

	sched, collector, err := buildPipeline(t)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var statusAPI *api.Server
	if cfg.Listen != "" {
		statusAPI = api.NewServer(cfg.Listen, sched)
		go statusAPI.Start()
	}

	go handleSignals(t)

	var wg sync.WaitGroup
	t.Run(func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	}, func() {
		// Tray is gone: stop the ticker first, then release the sessions
		// and the cached icon, on this path and every other
		cancel()
		wg.Wait()
		if statusAPI != nil {
			statusAPI.Shutdown()
		}
		sched.Close()
		if err := collector.Close(); err != nil {
			logger.Error().AnErr("error", err).Msg("Telemetry close failed")
		}
		logger.Info().Msg("Exiting...")
	})
}

// buildPipeline wires the sampler, renderer, device pool and telemetry into
// the scheduler.
func buildPipeline(surface scheduler.Surface) (*scheduler.Scheduler, telemetry.Collector, error) {
	errFactory := errors.New()

	sampler := sensor.NewSampler(sensor.NewReader())
	renderer := icon.NewRenderer(cfg.Delta)

	var transmitter scheduler.Transmitter
	if !cfg.Monitor {
		ids := make([]device.ID, 0, len(cfg.Devices))
		for _, raw := range cfg.Devices {
			id, err := device.ParseID(raw)
			if err != nil {
				return nil, nil, err
			}
			ids = append(ids, id)
		}
		if !cfg.Broadcast && len(ids) > 1 {
			logger.Info().Msg("Broadcast disabled, driving the first configured device only")
			ids = ids[:1]
		}

		manager, err := hid.NewManager()
		if err != nil {
			return nil, nil, errFactory.Wrap(errors.ErrInitFailed, err)
		}
		transmitter = device.NewPool(manager, ids)
	}

	collector, err := telemetry.NewService(telemetry.Config{
		Enabled: cfg.Telemetry,
		DBPath:  telemetryDBPath(),
	})
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(
		sampler,
		renderer,
		report.HWT700PT,
		transmitter,
		surface,
		collector,
		time.Duration(cfg.Interval)*time.Second,
	)

	return sched, collector, nil
}

func telemetryDBPath() string {
	if cfg.Database != "" {
		return cfg.Database
	}

	return telemetry.DefaultConfig().DBPath
}

func handleSignals(t *tray.Tray) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	t.Quit()
}

func fatal(err error) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.FatalWithCode(appErr).Send()
		return
	}
	logger.Fatal().AnErr("error", err).Send()
}
