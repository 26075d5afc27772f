package query

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// LatencyTracker tracks per-endpoint fetch latency quantiles using DDSketch.
type LatencyTracker struct {
	mu               sync.Mutex
	sketches         map[string]*ddsketch.DDSketch
	relativeAccuracy float64
}

// NewLatencyTracker creates a tracker. relativeAccuracy bounds the error of
// quantile estimates (0.01 = 1%).
func NewLatencyTracker(relativeAccuracy float64) *LatencyTracker {
	return &LatencyTracker{
		sketches:         make(map[string]*ddsketch.DDSketch),
		relativeAccuracy: relativeAccuracy,
	}
}

// Record adds a duration, in milliseconds, to the endpoint's sketch. A nil
// tracker ignores it.
func (lt *LatencyTracker) Record(endpoint string, duration time.Duration) {
	if lt == nil {
		return
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[endpoint]
	if !exists {
		var err error

		sketch, err = ddsketch.LogUnboundedDenseDDSketch(lt.relativeAccuracy)
		if err != nil {
			sketch, _ = ddsketch.NewDefaultDDSketch(lt.relativeAccuracy)
		}

		lt.sketches[endpoint] = sketch
	}

	_ = sketch.Add(float64(duration.Microseconds()) / 1000.0)
}

// Quantile returns the latency in milliseconds at q (0.5 for the median).
func (lt *LatencyTracker) Quantile(endpoint string, q float64) (float64, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[endpoint]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrNoLatencyData, endpoint)
	}

	return sketch.GetValueAtQuantile(q)
}

// Stats summarizes the latency of one endpoint, in milliseconds.
type Stats struct {
	Endpoint string  `json:"endpoint" yaml:"endpoint"`
	Count    int64   `json:"count"    yaml:"count"`
	Min      float64 `json:"min"      yaml:"min"`
	P50      float64 `json:"p50"      yaml:"p50"`
	P90      float64 `json:"p90"      yaml:"p90"`
	P99      float64 `json:"p99"      yaml:"p99"`
	Max      float64 `json:"max"      yaml:"max"`
}

// Stats returns the summary for endpoint.
func (lt *LatencyTracker) Stats(endpoint string) (Stats, error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	sketch, exists := lt.sketches[endpoint]
	if !exists {
		return Stats{}, fmt.Errorf("%w: %s", ErrNoLatencyData, endpoint)
	}

	count := sketch.GetCount()
	if count == 0 {
		return Stats{Endpoint: endpoint}, nil
	}

	minValue, _ := sketch.GetMinValue()
	p50, _ := sketch.GetValueAtQuantile(0.50)
	p90, _ := sketch.GetValueAtQuantile(0.90)
	p99, _ := sketch.GetValueAtQuantile(0.99)
	maxValue, _ := sketch.GetMaxValue()

	return Stats{
		Endpoint: endpoint,
		Count:    int64(count),
		Min:      minValue,
		P50:      p50,
		P90:      p90,
		P99:      p99,
		Max:      maxValue,
	}, nil
}

// AllStats returns the summary of every endpoint seen so far, sorted by name.
func (lt *LatencyTracker) AllStats() []Stats {
	lt.mu.Lock()
	endpoints := make([]string, 0, len(lt.sketches))

	for endpoint := range lt.sketches {
		endpoints = append(endpoints, endpoint)
	}
	lt.mu.Unlock()

	sort.Strings(endpoints)

	stats := make([]Stats, 0, len(endpoints))

	for _, endpoint := range endpoints {
		s, err := lt.Stats(endpoint)
		if err == nil {
			stats = append(stats, s)
		}
	}

	return stats
}
