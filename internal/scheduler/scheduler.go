// Package scheduler drives the poll→render→transmit pipeline on a fixed
// period. One tick runs at a time: a timer firing while the previous tick
// is still executing is skipped outright, never queued.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frostyard/glacierctl/internal/device"
	"github.com/frostyard/glacierctl/internal/errors"
	"github.com/frostyard/glacierctl/internal/icon"
	"github.com/frostyard/glacierctl/internal/logger"
	"github.com/frostyard/glacierctl/internal/report"
	"github.com/frostyard/glacierctl/internal/sensor"
	"github.com/frostyard/glacierctl/internal/telemetry"
)

// Sampler yields the current CPU temperature.
type Sampler interface {
	Sample(ctx context.Context) (sensor.Reading, error)
}

// Transmitter delivers a report to the device pool.
type Transmitter interface {
	Broadcast(r report.Report) device.Result
	Statuses() []device.Status
	Close()
}

// Surface is the tray the scheduler paints onto.
type Surface interface {
	SetIcon(data []byte)
	SetTooltip(text string)
}

// Status is a point-in-time view of the pipeline, for the status API.
type Status struct {
	Temperature float64         `json:"temperature"`
	Valid       bool            `json:"valid"`
	Band        string          `json:"band"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Devices     []device.Status `json:"devices,omitempty"`
}

// Scheduler owns all per-tick mutable state: the last good reading, the
// cached icon and the device sessions, so nothing lives in package globals.
type Scheduler struct {
	sampler     Sampler
	renderer    *icon.Renderer
	model       report.Model
	transmitter Transmitter // nil in display-only mode
	surface     Surface
	recorder    telemetry.Collector
	interval    time.Duration

	// Single-slot re-entrancy guard: a tick attempt while one is running
	// is a no-op.
	busy atomic.Bool

	mu   sync.Mutex
	last sensor.Reading
	at   time.Time
}

func New(
	sampler Sampler,
	renderer *icon.Renderer,
	model report.Model,
	transmitter Transmitter,
	surface Surface,
	recorder telemetry.Collector,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		sampler:     sampler,
		renderer:    renderer,
		model:       model,
		transmitter: transmitter,
		surface:     surface,
		recorder:    recorder,
		interval:    interval,
	}
}

// Run ticks until the context is cancelled. In-loop errors never terminate
// the loop; every failure is retried on a later tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick executes one pass of the pipeline. Safe to call from the timer while
// a previous call is still in flight; the overlapping call does nothing.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		logger.Debug().Msg("Tick still running, skipping")
		return
	}
	defer s.busy.Store(false)

	reading, err := s.sampler.Sample(ctx)
	if err != nil {
		s.handleSampleError(ctx, err)
		return
	}

	s.mu.Lock()
	s.last = reading
	s.at = time.Now()
	s.mu.Unlock()

	if ic := s.renderer.Update(reading.Value); ic != nil {
		s.surface.SetIcon(ic.Data())
	}
	s.surface.SetTooltip(fmt.Sprintf("CPU %.1f°C", reading.Value))

	var res device.Result
	if s.transmitter != nil {
		res = s.transmitter.Broadcast(s.model.Encode(reading.Value))
	}

	s.record(ctx, &telemetry.Snapshot{
		Timestamp:   time.Now(),
		Temperature: reading.Value,
		Valid:       true,
		Band:        icon.BandFor(reading.Value).String(),
		DevicesOpen: res.Open,
		WritesOK:    res.Written,
		WritesFail:  res.Failed,
	})
}

// handleSampleError keeps the last good reading and flips the display to an
// error state. The next good sample reverts it.
func (s *Scheduler) handleSampleError(ctx context.Context, err error) {
	if ic := s.renderer.ShowError(); ic != nil {
		s.surface.SetIcon(ic.Data())
		if errors.HasCode(err, sensor.ErrUnavailable) {
			s.surface.SetTooltip("No CPU temperature sensor found")
			logger.Warn().AnErr("error", err).Msg("No CPU sensor matched")
		} else {
			s.surface.SetTooltip("Temperature sampling failed")
			logger.Warn().AnErr("error", err).Msg("Sampling failed")
		}
	}

	s.record(ctx, &telemetry.Snapshot{
		Timestamp: time.Now(),
		Valid:     false,
	})
}

func (s *Scheduler) record(ctx context.Context, snap *telemetry.Snapshot) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, snap); err != nil {
		logger.Warn().AnErr("error", err).Msg("Telemetry record failed")
	}
}

// Status reports the last observed state. Called from the API goroutine.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	last, at := s.last, s.at
	s.mu.Unlock()

	st := Status{
		Temperature: last.Value,
		Valid:       last.Valid,
		UpdatedAt:   at,
	}
	if last.Valid {
		st.Band = icon.BandFor(last.Value).String()
	}
	if s.transmitter != nil {
		st.Devices = s.transmitter.Statuses()
	}

	return st
}

// Close releases everything the pipeline holds, sessions before the cached
// icon. Run must have returned first so the ticker is already stopped.
func (s *Scheduler) Close() {
	if s.transmitter != nil {
		s.transmitter.Close()
	}
	s.renderer.Close()
}
