package md

import (
	"math"
	"testing"

	"github.com/forcebridge/forcebridge/internal/comm"
)

func TestParticlesResizePreservesPrefix(t *testing.T) {
	p := NewParticles(3)
	p.SetPositions([]comm.Vec4{{1, 0, 0, 0}, {2, 0, 0, 0}, {3, 0, 0, 0}})

	p.Resize(5)
	if p.N() != 5 {
		t.Fatalf("N = %d, want 5", p.N())
	}
	pos := p.Positions()
	if pos[0] != (comm.Vec4{1, 0, 0, 0}) || pos[2] != (comm.Vec4{3, 0, 0, 0}) {
		t.Error("grow lost the existing prefix")
	}
	if pos[3] != (comm.Vec4{}) || pos[4] != (comm.Vec4{}) {
		t.Error("new slots not zeroed")
	}

	p.Resize(2)
	if p.N() != 2 {
		t.Fatalf("N = %d, want 2", p.N())
	}
	if p.Positions()[1] != (comm.Vec4{2, 0, 0, 0}) {
		t.Error("shrink lost the surviving prefix")
	}
}

func TestParticlesAccessorsCopy(t *testing.T) {
	p := NewParticles(1)
	p.SetForces([]comm.Vec4{{1, 1, 1, 1}})

	f := p.Forces()
	f[0] = comm.Vec4{9, 9, 9, 9}
	if p.Forces()[0] != (comm.Vec4{1, 1, 1, 1}) {
		t.Error("Forces returned a view into internal state")
	}
}

func TestParticlesAccumulateVirial(t *testing.T) {
	p := NewParticles(2)
	p.AccumulateVirial([]comm.Vec4{{1, 0, 0, 0}, {2, 0, 0, 0}})
	p.AccumulateVirial([]comm.Vec4{{0.5, 0, 0, 0}, {0.5, 0, 0, 0}})

	v := p.Virial()
	if v[0][0] != 1.5 || v[1][0] != 2.5 {
		t.Errorf("virial = %v, want accumulated sums", v)
	}
}

func TestInitLattice(t *testing.T) {
	p := NewParticles(8)
	InitLattice(p, 1.0)

	pos := p.Positions()
	seen := make(map[comm.Vec4]bool)
	for i, r := range pos {
		if seen[r] {
			t.Errorf("particle %d duplicates lattice site %v", i, r)
		}
		seen[r] = true
	}
	// 8 particles on a 2x2x2 lattice with spacing 1 sit at +-0.5.
	for i, r := range pos {
		for j := 0; j < 3; j++ {
			if math.Abs(r[j]) != 0.5 {
				t.Errorf("particle %d component %d = %v, want +-0.5", i, j, r[j])
			}
		}
	}
}

func TestNeighborsSnapshotShape(t *testing.T) {
	p := NewParticles(3)
	p.SetPositions([]comm.Vec4{{0, 0, 0, 0}, {1, 0, 0, 0}, {10, 0, 0, 0}})
	nl := NewNeighbors(p, 2.5)

	snap := nl.Snapshot(4)
	if len(snap) != 3*4 {
		t.Fatalf("snapshot length %d, want 12", len(snap))
	}

	// Particle 0 has exactly one in-cutoff neighbor (particle 1); the
	// remaining slots must be zero-filled.
	if snap[0] != (comm.Vec4{1, 0, 0, 0}) {
		t.Errorf("particle 0 slot 0 = %v, want particle 1's position", snap[0])
	}
	for s := 1; s < 4; s++ {
		if snap[s] != (comm.Vec4{}) {
			t.Errorf("particle 0 slot %d = %v, want zero fill", s, snap[s])
		}
	}
	// Particle 2 is out of everyone's cutoff.
	for s := 0; s < 4; s++ {
		if snap[2*4+s] != (comm.Vec4{}) {
			t.Errorf("particle 2 slot %d = %v, want zero fill", s, snap[2*4+s])
		}
	}
}

func TestNeighborsSnapshotNearestFirst(t *testing.T) {
	p := NewParticles(3)
	p.SetPositions([]comm.Vec4{{0, 0, 0, 0}, {2, 0, 0, 0}, {1, 0, 0, 0}})
	nl := NewNeighbors(p, 5)

	snap := nl.Snapshot(1)
	// Capacity one: only the nearest neighbor survives.
	if snap[0] != (comm.Vec4{1, 0, 0, 0}) {
		t.Errorf("particle 0 kept %v, want the nearer particle at x=1", snap[0])
	}
}

func TestNeighborsSnapshotZeroCapacity(t *testing.T) {
	p := NewParticles(4)
	nl := NewNeighbors(p, 2.5)
	if snap := nl.Snapshot(0); len(snap) != 0 {
		t.Errorf("zero-capacity snapshot has %d records, want 0", len(snap))
	}
}

func TestLeapfrogStep(t *testing.T) {
	p := NewParticles(1)
	p.SetForces([]comm.Vec4{{1, 0, 0, 0}})

	lf := Leapfrog{Dt: 0.5, Mass: 2}
	lf.Step(p)

	// kick: v += F/m * dt = 0.25; drift: x += v * dt = 0.125
	if v := p.Velocities()[0][0]; v != 0.25 {
		t.Errorf("velocity = %v, want 0.25", v)
	}
	if x := p.Positions()[0][0]; x != 0.125 {
		t.Errorf("position = %v, want 0.125", x)
	}
}

func TestLennardJonesPairSymmetry(t *testing.T) {
	lj := LennardJones(1, 1, 2.5)

	pos := []comm.Vec4{{0, 0, 0, 0}, {1.2, 0, 0, 0}}
	forces, virial := lj(pos, nil, 2, 0)

	if forces[0][0] != -forces[1][0] {
		t.Errorf("pair forces not equal and opposite: %v vs %v", forces[0][0], forces[1][0])
	}
	if forces[0][1] != 0 || forces[0][2] != 0 {
		t.Error("force off the pair axis")
	}
	// At r=1.2 sigma the pair is past the potential minimum (2^(1/6)), so
	// the interaction is attractive: particle 0 is pulled toward +x.
	if forces[0][0] <= 0 {
		t.Errorf("force on particle 0 = %v, want positive (pulled toward the peer)", forces[0][0])
	}
	if virial[0][0] != virial[1][0] {
		t.Errorf("virial split unevenly: %v vs %v", virial[0][0], virial[1][0])
	}
}

func TestLennardJonesCutoff(t *testing.T) {
	lj := LennardJones(1, 1, 2.5)

	pos := []comm.Vec4{{0, 0, 0, 0}, {3, 0, 0, 0}}
	forces, virial := lj(pos, nil, 2, 0)
	if forces[0] != (comm.Vec4{}) || virial[0] != (comm.Vec4{}) {
		t.Error("pair beyond the cutoff should contribute nothing")
	}
}

func TestLennardJonesNeighborPathSkipsZeroSlots(t *testing.T) {
	lj := LennardJones(1, 1, 2.5)

	// One particle with a single real neighbor and one zero-filled slot.
	// The zero slot must not be treated as a particle at the origin.
	pos := []comm.Vec4{{5, 0, 0, 0}}
	neighbors := []comm.Vec4{{6.2, 0, 0, 0}, {}}
	withZero, _ := lj(pos, neighbors, 1, 2)

	onlyReal, _ := lj(pos, []comm.Vec4{{6.2, 0, 0, 0}}, 1, 1)
	if withZero[0] != onlyReal[0] {
		t.Errorf("zero slot changed the force: %v vs %v", withZero[0], onlyReal[0])
	}
}
