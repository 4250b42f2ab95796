package metrics

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Base units understood by every backend.
const (
	UnitMilliseconds = "milliseconds"
	UnitRatio        = "ratio"
)

// ErrNilRegistry is returned when a facade is constructed without a registry.
var ErrNilRegistry = errors.New("metrics registry cannot be nil")

// Tag is a single key/value label attached to a metric.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered tag set. The key order is fixed per metric name.
type Tags []Tag

// Keys returns the tag keys in declaration order.
func (t Tags) Keys() []string {
	keys := make([]string, len(t))
	for i, tag := range t {
		keys[i] = tag.Key
	}
	return keys
}

// Values returns the tag values in declaration order.
func (t Tags) Values() []string {
	values := make([]string, len(t))
	for i, tag := range t {
		values[i] = tag.Value
	}
	return values
}

// Pairs flattens the tags into alternating key, value strings.
func (t Tags) Pairs() []string {
	pairs := make([]string, 0, len(t)*2)
	for _, tag := range t {
		pairs = append(pairs, tag.Key, tag.Value)
	}
	return pairs
}

// Key returns a canonical identity for the tag set, independent of order.
func (t Tags) Key() string {
	sorted := make(Tags, len(t))
	copy(sorted, t)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var b strings.Builder
	for i, tag := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tag.Key)
		b.WriteByte('=')
		b.WriteString(tag.Value)
	}
	return b.String()
}

// Descriptor describes an instrument to resolve. It replaces the fluent
// builder style: every field is supplied up front.
type Descriptor struct {
	Name        string
	Description string
	BaseUnit    string
	Tags        Tags
}

// ID identifies the instrument a descriptor resolves to (name plus tag values).
func (d Descriptor) ID() string {
	if len(d.Tags) == 0 {
		return d.Name
	}
	return d.Name + "{" + d.Tags.Key() + "}"
}

// Counter is a monotonically increasing instrument.
type Counter interface {
	Increment(delta float64)
}

// Timer records duration samples.
type Timer interface {
	Record(d time.Duration)
}

// DistributionSummary records arbitrary numeric samples in the descriptor's
// base unit.
type DistributionSummary interface {
	Record(value float64)
}

// Gauge reflects an externally owned cell and is sampled on read.
type Gauge interface {
	Value() float64
}

// Registry resolves instruments by descriptor.
//
// Counter, Timer and Summary are resolve-or-create: calling them twice with the
// same name and tag values must return the same underlying instrument.
// Gauge is called once per name; the registry samples cell whenever the gauge
// is read or exported. Implementations must be safe for concurrent use.
type Registry interface {
	Counter(desc Descriptor) (Counter, error)
	Timer(desc Descriptor) (Timer, error)
	Summary(desc Descriptor) (DistributionSummary, error)
	Gauge(desc Descriptor, cell *atomic.Int64) (Gauge, error)
}
