// Package md holds the simulation-side collaborators the exchange protocol
// consumes: the particle store, the neighbor-list builder, and a small
// leapfrog stepper with a Lennard-Jones reference force for driving demo
// runs on both sides of the channel.
package md

import "github.com/forcebridge/forcebridge/internal/comm"

// Particles is the host simulation's particle store. Records are
// 4-component: position x, y, z plus an auxiliary scalar (unused by the
// demo dynamics, carried through the exchange untouched). The particle
// count is authoritative here and may change over the run.
type Particles struct {
	pos    []comm.Vec4
	vel    []comm.Vec4
	forces []comm.Vec4
	virial []comm.Vec4
}

// NewParticles creates a store with n zeroed particles.
func NewParticles(n int) *Particles {
	p := &Particles{}
	p.Resize(n)
	return p
}

// N returns the current particle count.
func (p *Particles) N() int { return len(p.pos) }

// Resize changes the particle count, preserving the common prefix and
// zeroing any new slots.
func (p *Particles) Resize(n int) {
	p.pos = resizeRecords(p.pos, n)
	p.vel = resizeRecords(p.vel, n)
	p.forces = resizeRecords(p.forces, n)
	p.virial = resizeRecords(p.virial, n)
}

func resizeRecords(recs []comm.Vec4, n int) []comm.Vec4 {
	out := make([]comm.Vec4, n)
	copy(out, recs)
	return out
}

// Positions returns a copy of the position records.
func (p *Particles) Positions() []comm.Vec4 { return cloneRecords(p.pos) }

// SetPositions replaces the position records, e.g. from the output-mode
// position echo.
func (p *Particles) SetPositions(recs []comm.Vec4) {
	p.pos = cloneRecords(recs)
}

// Velocities returns a copy of the velocity records.
func (p *Particles) Velocities() []comm.Vec4 { return cloneRecords(p.vel) }

// SetVelocities replaces the velocity records.
func (p *Particles) SetVelocities(recs []comm.Vec4) {
	p.vel = cloneRecords(recs)
}

// Forces returns a copy of the force accumulator.
func (p *Particles) Forces() []comm.Vec4 { return cloneRecords(p.forces) }

// SetForces replaces the force accumulator.
func (p *Particles) SetForces(recs []comm.Vec4) {
	p.forces = cloneRecords(recs)
}

// Virial returns a copy of the per-particle virial accumulator.
func (p *Particles) Virial() []comm.Vec4 { return cloneRecords(p.virial) }

// AccumulateVirial sums records into the virial accumulator; contributions
// from multiple force computations add.
func (p *Particles) AccumulateVirial(recs []comm.Vec4) {
	for i := range recs {
		if i >= len(p.virial) {
			break
		}
		for j := 0; j < 4; j++ {
			p.virial[i][j] += recs[i][j]
		}
	}
}

// ZeroForces clears the force accumulator, typically at the top of a
// timestep before external contributions arrive.
func (p *Particles) ZeroForces() {
	for i := range p.forces {
		p.forces[i] = comm.Vec4{}
	}
}

func cloneRecords(recs []comm.Vec4) []comm.Vec4 {
	out := make([]comm.Vec4, len(recs))
	copy(out, recs)
	return out
}

// InitLattice places particles on a cubic lattice with the given spacing,
// centered at the origin. Velocities and forces are zeroed.
func InitLattice(p *Particles, spacing float64) {
	n := p.N()
	side := 1
	for side*side*side < n {
		side++
	}
	half := float64(side-1) * spacing / 2
	for i := 0; i < n; i++ {
		x := i % side
		y := (i / side) % side
		z := i / (side * side)
		p.pos[i] = comm.Vec4{
			float64(x)*spacing - half,
			float64(y)*spacing - half,
			float64(z)*spacing - half,
			0,
		}
		p.vel[i] = comm.Vec4{}
		p.forces[i] = comm.Vec4{}
	}
}
