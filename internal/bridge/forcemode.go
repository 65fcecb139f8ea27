package bridge

import (
	"github.com/forcebridge/forcebridge/internal/comm"
)

// combineFunc merges one received force record into the simulation's
// existing record. Each force mode is one case; the rule lives here with
// its variant instead of inside the protocol sequence.
type combineFunc func(existing, received comm.Vec4) comm.Vec4

var combiners = map[comm.ForceMode]combineFunc{
	// overwrite: the engine's value replaces the accumulator.
	comm.ForceOverwrite: func(_, received comm.Vec4) comm.Vec4 {
		return received
	},
	// add: the engine's value sums into prior contributions.
	comm.ForceAdd: func(existing, received comm.Vec4) comm.Vec4 {
		return comm.Vec4{
			existing[0] + received[0],
			existing[1] + received[1],
			existing[2] + received[2],
			existing[3] + received[3],
		}
	},
	// ignore: the engine is an observer; forces are discarded.
	comm.ForceIgnore: func(existing, _ comm.Vec4) comm.Vec4 {
		return existing
	},
	// output: forces behave like overwrite; the position echo is handled
	// separately by the step protocol.
	comm.ForceOutput: func(_, received comm.Vec4) comm.Vec4 {
		return received
	},
}

// combineForces applies a mode's rule elementwise and returns the updated
// force array. existing and received must have equal length.
func combineForces(mode comm.ForceMode, existing, received []comm.Vec4) []comm.Vec4 {
	combine := combiners[mode]
	out := make([]comm.Vec4, len(existing))
	for i := range existing {
		out[i] = combine(existing[i], received[i])
	}
	return out
}

// reduceForces collapses a multi-slot force payload to one record per
// particle. In output mode with nneighs > 0 the engine writes 1+nneighs
// records per particle (self slot plus per-neighbor contributions); the
// per-particle total is their sum. Single-slot payloads pass through.
func reduceForces(l comm.Layout, payload []comm.Vec4) []comm.Vec4 {
	slots := 1
	if l.N > 0 {
		slots = l.ForceRecords / l.N
	}
	if slots <= 1 {
		out := make([]comm.Vec4, len(payload))
		copy(out, payload)
		return out
	}
	out := make([]comm.Vec4, l.N)
	for i := 0; i < l.N; i++ {
		var sum comm.Vec4
		for s := 0; s < slots; s++ {
			rec := payload[i*slots+s]
			for j := 0; j < 4; j++ {
				sum[j] += rec[j]
			}
		}
		out[i] = sum
	}
	return out
}
