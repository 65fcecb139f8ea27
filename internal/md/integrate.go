package md

// Leapfrog advances positions and velocities from the current force
// accumulator: kick then drift. Good enough for the demo host loop; the
// interesting physics happens on the other side of the channel.
type Leapfrog struct {
	Dt   float64
	Mass float64
}

// Step advances the store by one timestep.
func (lf Leapfrog) Step(p *Particles) {
	if lf.Mass == 0 {
		return
	}
	inv := lf.Dt / lf.Mass
	for i := range p.pos {
		for j := 0; j < 3; j++ {
			p.vel[i][j] += p.forces[i][j] * inv
			p.pos[i][j] += p.vel[i][j] * lf.Dt
		}
	}
}
