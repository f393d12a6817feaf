package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/frostyard/glacierctl/internal/device"
	"github.com/frostyard/glacierctl/internal/icon"
	"github.com/frostyard/glacierctl/internal/report"
	"github.com/frostyard/glacierctl/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSampler struct {
	mu       sync.Mutex
	readings []sensor.Reading
	errs     []error
	calls    int
	block    chan struct{} // when set, Sample waits until it is closed
}

func (f *fakeSampler) Sample(_ context.Context) (sensor.Reading, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var r sensor.Reading
	if i < len(f.readings) {
		r = f.readings[i]
	}
	return r, err
}

func (f *fakeSampler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTransmitter struct {
	reports []report.Report
	closed  bool
}

func (f *fakeTransmitter) Broadcast(r report.Report) device.Result {
	f.reports = append(f.reports, r)
	return device.Result{Open: 1, Written: 1}
}

func (f *fakeTransmitter) Statuses() []device.Status {
	return []device.Status{{Device: "aa88:8666", State: "open"}}
}

func (f *fakeTransmitter) Close() { f.closed = true }

type fakeSurface struct {
	icons    int
	tooltips []string
}

func (f *fakeSurface) SetIcon(_ []byte) { f.icons++ }

func (f *fakeSurface) SetTooltip(text string) { f.tooltips = append(f.tooltips, text) }

func newScheduler(sampler Sampler, tx Transmitter, surface Surface) *Scheduler {
	return New(sampler, icon.NewRenderer(1.0), report.HWT700PT, tx, surface, nil, time.Second)
}

func TestTickPipeline(t *testing.T) {
	sampler := &fakeSampler{readings: []sensor.Reading{{Value: 52.3, Valid: true}}}
	tx := &fakeTransmitter{}
	surface := &fakeSurface{}
	s := newScheduler(sampler, tx, surface)

	s.Tick(context.Background())

	assert.Equal(t, 1, surface.icons)
	require.Len(t, tx.reports, 1)
	assert.Equal(t, byte(52), tx.reports[0][1], "report carries the rounded temperature")

	st := s.Status()
	assert.True(t, st.Valid)
	assert.InDelta(t, 52.3, st.Temperature, 0.001)
	assert.Equal(t, "green", st.Band)
	require.Len(t, st.Devices, 1)
}

func TestTickDeltaGateSkipsRenderNotTransmit(t *testing.T) {
	sampler := &fakeSampler{readings: []sensor.Reading{
		{Value: 50.0, Valid: true},
		{Value: 50.4, Valid: true},
	}}
	tx := &fakeTransmitter{}
	surface := &fakeSurface{}
	s := newScheduler(sampler, tx, surface)

	s.Tick(context.Background())
	s.Tick(context.Background())

	assert.Equal(t, 1, surface.icons, "sub-delta change must not re-render")
	assert.Len(t, tx.reports, 2, "the device still gets every tick's report")
}

func TestTickReentrancyGuard(t *testing.T) {
	block := make(chan struct{})
	sampler := &fakeSampler{
		readings: []sensor.Reading{{Value: 50, Valid: true}, {Value: 51, Valid: true}},
		block:    block,
	}
	tx := &fakeTransmitter{}
	s := newScheduler(sampler, tx, &fakeSurface{})

	done := make(chan struct{})
	go func() {
		s.Tick(context.Background())
		close(done)
	}()

	// Wait until the first tick is inside Sample
	require.Eventually(t, func() bool { return sampler.callCount() == 1 },
		time.Second, time.Millisecond)

	// A timer firing mid-tick is a no-op, not a queued run
	s.Tick(context.Background())
	assert.Equal(t, 1, sampler.callCount(), "overlapping tick must not sample")

	close(block)
	<-done
	assert.Len(t, tx.reports, 1, "the skipped firing must not run afterwards")
}

func TestTickSampleErrorKeepsLoopAlive(t *testing.T) {
	sampler := &fakeSampler{
		readings: []sensor.Reading{{}, {Value: 55, Valid: true}},
		errs:     []error{errors.New("refresh failed"), nil},
	}
	tx := &fakeTransmitter{}
	surface := &fakeSurface{}
	s := newScheduler(sampler, tx, surface)

	s.Tick(context.Background())
	assert.Empty(t, tx.reports, "no device write on a failed sample")
	assert.Equal(t, 1, surface.icons, "error glyph installed")

	st := s.Status()
	assert.False(t, st.Valid, "no good reading yet")

	s.Tick(context.Background())
	assert.Len(t, tx.reports, 1, "loop keeps running after the error")
	assert.Equal(t, 2, surface.icons, "recovery re-renders the reading")
}

func TestTickErrorGlyphInstalledOnce(t *testing.T) {
	sampler := &fakeSampler{
		errs: []error{errors.New("x"), errors.New("x"), errors.New("x")},
	}
	surface := &fakeSurface{}
	s := newScheduler(sampler, &fakeTransmitter{}, surface)

	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
	}
	assert.Equal(t, 1, surface.icons, "error icon rendered once, not every failing tick")
}

func TestRunStopsOnCancel(t *testing.T) {
	sampler := &fakeSampler{readings: []sensor.Reading{{Value: 50, Valid: true}}}
	s := New(sampler, icon.NewRenderer(1.0), report.HWT700PT, nil, &fakeSurface{}, nil,
		10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sampler.callCount() > 0 },
		time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestCloseReleasesInOrder(t *testing.T) {
	tx := &fakeTransmitter{}
	renderer := icon.NewRenderer(1.0)
	s := New(&fakeSampler{readings: []sensor.Reading{{Value: 50, Valid: true}}},
		renderer, report.HWT700PT, tx, &fakeSurface{}, nil, time.Second)

	s.Tick(context.Background())
	s.Close()

	assert.True(t, tx.closed, "sessions closed on shutdown")
	assert.Equal(t, 1, renderer.Releases(), "cached icon released on shutdown")
}

func TestMonitorModeNoTransmitter(t *testing.T) {
	sampler := &fakeSampler{readings: []sensor.Reading{{Value: 50, Valid: true}}}
	surface := &fakeSurface{}
	s := New(sampler, icon.NewRenderer(1.0), report.HWT700PT, nil, surface, nil, time.Second)

	s.Tick(context.Background())

	assert.Equal(t, 1, surface.icons)
	st := s.Status()
	assert.Empty(t, st.Devices)
}
