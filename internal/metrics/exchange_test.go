package metrics

import (
	"testing"
	"time"
)

func TestExchangeObserve(t *testing.T) {
	e := NewExchange()
	e.ObserveStep(1, 2*time.Millisecond, 100, 50)
	e.ObserveStep(2, 4*time.Millisecond, 100, 50)

	if e.Steps() != 2 {
		t.Errorf("steps = %d, want 2", e.Steps())
	}
	if e.MeanLatency() != 3*time.Millisecond {
		t.Errorf("mean = %v, want 3ms", e.MeanLatency())
	}
	if e.MaxLatency() != 4*time.Millisecond {
		t.Errorf("max = %v, want 4ms", e.MaxLatency())
	}
	out, in := e.Bytes()
	if out != 200 || in != 100 {
		t.Errorf("bytes = %d/%d, want 200/100", out, in)
	}
}

func TestExchangeHistory(t *testing.T) {
	e := NewExchange()
	e.ObserveStep(1, 1500*time.Microsecond, 0, 0)

	h := e.History()
	if len(h) != 1 || h[0] != 1.5 {
		t.Errorf("history = %v, want [1.5]", h)
	}

	// The returned slice is a copy.
	h[0] = 99
	if e.History()[0] != 1.5 {
		t.Error("History returned a view into internal state")
	}
}

func TestExchangeHistoryCapped(t *testing.T) {
	e := NewExchange()
	for i := 0; i < historyCapacity+10; i++ {
		e.ObserveStep(uint64(i), time.Millisecond, 0, 0)
	}
	if len(e.History()) != historyCapacity {
		t.Errorf("history length = %d, want %d", len(e.History()), historyCapacity)
	}
}

func TestExchangeReset(t *testing.T) {
	e := NewExchange()
	e.ObserveStep(1, time.Millisecond, 10, 10)
	e.Reset()

	if e.Steps() != 0 || e.MeanLatency() != 0 || e.MaxLatency() != 0 {
		t.Error("counters survived reset")
	}
	if out, in := e.Bytes(); out != 0 || in != 0 {
		t.Error("byte counters survived reset")
	}
	if len(e.History()) != 0 {
		t.Error("history survived reset")
	}
}
