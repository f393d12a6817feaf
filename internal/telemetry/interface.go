package telemetry

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Snapshot is one tick's worth of observable state.
type Snapshot struct {
	Timestamp   time.Time
	Temperature float64
	Valid       bool
	Band        string
	DevicesOpen int
	WritesOK    int
	WritesFail  int
}
