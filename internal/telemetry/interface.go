package telemetry

import (
	"context"
	"time"
)

// Collector records update-cycle outcomes
type Collector interface {
	Record(ctx context.Context, snapshot *CycleSnapshot) error
	Close() error
}

// CycleSnapshot is the outcome of one scheduler tick
type CycleSnapshot struct {
	Timestamp           time.Time
	CPUTemp             int
	GPUTemp             int
	WakeSent            bool
	Outcome             string
	ConsecutiveFailures int
}
