// Package metrics collects per-step statistics about an exchange in
// flight: step latency (dominated by the blocking receive) and bytes moved
// each way. The CLI summary and the live monitor read from here while the
// bridge loop writes.
package metrics

import (
	"sync"
	"time"
)

const historyCapacity = 600

type Exchange struct {
	mu           sync.Mutex
	steps        uint64
	totalLatency time.Duration
	maxLatency   time.Duration
	bytesOut     uint64
	bytesIn      uint64
	history      []float64 // latency in ms, capped ring of recent steps
}

func NewExchange() *Exchange {
	return &Exchange{history: make([]float64, 0, historyCapacity)}
}

// ObserveStep records one committed step. Implements the bridge's
// StepObserver.
func (e *Exchange) ObserveStep(step uint64, latency time.Duration, bytesOut, bytesIn int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps++
	e.totalLatency += latency
	if latency > e.maxLatency {
		e.maxLatency = latency
	}
	e.bytesOut += uint64(bytesOut)
	e.bytesIn += uint64(bytesIn)
	if len(e.history) == historyCapacity {
		e.history = e.history[1:]
	}
	e.history = append(e.history, float64(latency.Microseconds())/1000.0)
}

// Steps returns the number of committed steps.
func (e *Exchange) Steps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// MeanLatency returns the average step latency.
func (e *Exchange) MeanLatency() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.steps == 0 {
		return 0
	}
	return e.totalLatency / time.Duration(e.steps)
}

// MaxLatency returns the worst step latency.
func (e *Exchange) MaxLatency() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxLatency
}

// Bytes returns total bytes sent and received.
func (e *Exchange) Bytes() (out, in uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bytesOut, e.bytesIn
}

// History returns a copy of the recent per-step latencies in milliseconds.
func (e *Exchange) History() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.history))
	copy(out, e.history)
	return out
}

// Reset clears all counters.
func (e *Exchange) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps = 0
	e.totalLatency = 0
	e.maxLatency = 0
	e.bytesOut = 0
	e.bytesIn = 0
	e.history = e.history[:0]
}
