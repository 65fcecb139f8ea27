package bridge

import (
	"testing"

	"github.com/forcebridge/forcebridge/internal/comm"
)

func TestCombineForcesOverwrite(t *testing.T) {
	existing := []comm.Vec4{{1, 1, 1, 1}, {2, 2, 2, 2}}
	received := []comm.Vec4{{5, 0, 0, 0}, {0, 5, 0, 0}}

	got := combineForces(comm.ForceOverwrite, existing, received)
	for i := range received {
		if got[i] != received[i] {
			t.Errorf("record %d: got %v, want %v", i, got[i], received[i])
		}
	}
}

func TestCombineForcesAdd(t *testing.T) {
	// Four particles with prior accumulator contents; the engine's values
	// sum in component by component.
	existing := []comm.Vec4{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	received := []comm.Vec4{{0.5, 0.5, 0, 0}, {0, -1, 0, 0}, {2, 2, 2, 2}, {0, 0, 0, 0}}
	want := []comm.Vec4{{1.5, 0.5, 0, 0}, {0, 0, 0, 0}, {2, 2, 3, 2}, {0, 0, 0, 1}}

	got := combineForces(comm.ForceAdd, existing, received)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCombineForcesIgnore(t *testing.T) {
	existing := []comm.Vec4{{1, 2, 3, 4}}
	received := []comm.Vec4{{9, 9, 9, 9}}

	got := combineForces(comm.ForceIgnore, existing, received)
	if got[0] != existing[0] {
		t.Errorf("got %v, want existing %v untouched", got[0], existing[0])
	}
}

func TestCombineForcesOutput(t *testing.T) {
	existing := []comm.Vec4{{1, 1, 1, 1}}
	received := []comm.Vec4{{7, 8, 9, 0}}

	got := combineForces(comm.ForceOutput, existing, received)
	if got[0] != received[0] {
		t.Errorf("got %v, want received %v", got[0], received[0])
	}
}

func TestCombineForcesDoesNotAliasInputs(t *testing.T) {
	existing := []comm.Vec4{{1, 1, 1, 1}}
	received := []comm.Vec4{{2, 2, 2, 2}}

	got := combineForces(comm.ForceAdd, existing, received)
	got[0] = comm.Vec4{99, 99, 99, 99}
	if existing[0] != (comm.Vec4{1, 1, 1, 1}) || received[0] != (comm.Vec4{2, 2, 2, 2}) {
		t.Error("combineForces result aliases its inputs")
	}
}

func TestReduceForcesSingleSlot(t *testing.T) {
	l, err := comm.ComputeLayout(3, 2, comm.Double, comm.ForceAdd)
	if err != nil {
		t.Fatal(err)
	}
	payload := []comm.Vec4{{1, 0, 0, 0}, {0, 2, 0, 0}, {0, 0, 3, 0}}

	got := reduceForces(l, payload)
	for i := range payload {
		if got[i] != payload[i] {
			t.Errorf("record %d: got %v, want %v", i, got[i], payload[i])
		}
	}
}

func TestReduceForcesSumsNeighborSlots(t *testing.T) {
	// Output mode with nneighs=2 carries 1+2 records per particle: the
	// self slot and one per neighbor. The per-particle total is their sum.
	l, err := comm.ComputeLayout(2, 2, comm.Double, comm.ForceOutput)
	if err != nil {
		t.Fatal(err)
	}
	if l.ForceRecords != 6 {
		t.Fatalf("force records = %d, want 6", l.ForceRecords)
	}
	payload := []comm.Vec4{
		{1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}, // particle 0
		{0, 10, 0, 0}, {0, 20, 0, 0}, {0, 0, 0, 0}, // particle 1
	}
	want := []comm.Vec4{{6, 0, 0, 0}, {0, 30, 0, 0}}

	got := reduceForces(l, payload)
	if len(got) != 2 {
		t.Fatalf("reduced to %d records, want 2", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("particle %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
