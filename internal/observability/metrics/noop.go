package metrics

import (
	"sync/atomic"
	"time"
)

// NoopRegistry discards every sample. It backs the facade when metrics are
// disabled (METRICS_BACKEND=none).
type NoopRegistry struct{}

// NewNoopRegistry creates a NoopRegistry.
func NewNoopRegistry() *NoopRegistry {
	return &NoopRegistry{}
}

type noopInstrument struct{}

func (noopInstrument) Increment(float64) {}
func (noopInstrument) Record(float64)    {}
func (noopInstrument) Value() float64    { return 0 }

type noopTimer struct{}

func (noopTimer) Record(time.Duration) {}

// Counter implements Registry.
func (NoopRegistry) Counter(Descriptor) (Counter, error) { return noopInstrument{}, nil }

// Timer implements Registry.
func (NoopRegistry) Timer(Descriptor) (Timer, error) { return noopTimer{}, nil }

// Summary implements Registry.
func (NoopRegistry) Summary(Descriptor) (DistributionSummary, error) { return noopInstrument{}, nil }

// Gauge implements Registry.
func (NoopRegistry) Gauge(Descriptor, *atomic.Int64) (Gauge, error) { return noopInstrument{}, nil }
