package md

import "github.com/forcebridge/forcebridge/internal/comm"

// LennardJones returns a pairwise 12-6 force computation for the demo
// engine process. It works from the neighbor snapshot when one is present
// and falls back to all pairs otherwise. The returned function matches the
// engine endpoint's force callback signature.
//
// Per record: force x, y, z in the first three components, the pair energy
// contribution in the fourth. The virial record carries r·F per particle in
// its first component.
func LennardJones(epsilon, sigma, cutoff float64) func(positions, neighbors []comm.Vec4, n, nneighs int) (forces, virial []comm.Vec4) {
	sigma2 := sigma * sigma
	cut2 := cutoff * cutoff

	pairForce := func(pi, pj comm.Vec4) (f comm.Vec4, w float64) {
		d2 := dist2(pi, pj)
		if d2 == 0 || d2 > cut2 {
			return comm.Vec4{}, 0
		}
		sr2 := sigma2 / d2
		sr6 := sr2 * sr2 * sr2
		sr12 := sr6 * sr6
		// F(r)/r for the 12-6 potential.
		fOverR := 24 * epsilon * (2*sr12 - sr6) / d2
		energy := 4 * epsilon * (sr12 - sr6)
		f = comm.Vec4{
			fOverR * (pi[0] - pj[0]),
			fOverR * (pi[1] - pj[1]),
			fOverR * (pi[2] - pj[2]),
			energy / 2,
		}
		w = fOverR * d2 / 2
		return f, w
	}

	return func(positions, neighbors []comm.Vec4, n, nneighs int) ([]comm.Vec4, []comm.Vec4) {
		forces := make([]comm.Vec4, n)
		virial := make([]comm.Vec4, n)

		for i := 0; i < n; i++ {
			if neighbors != nil && nneighs > 0 {
				for s := 0; s < nneighs; s++ {
					nb := neighbors[i*nneighs+s]
					if nb == (comm.Vec4{}) {
						continue // zero-filled unused slot
					}
					f, w := pairForce(positions[i], nb)
					for j := 0; j < 4; j++ {
						forces[i][j] += f[j]
					}
					virial[i][0] += w
				}
				continue
			}
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				f, w := pairForce(positions[i], positions[j])
				for k := 0; k < 4; k++ {
					forces[i][k] += f[k]
				}
				virial[i][0] += w
			}
		}
		return forces, virial
	}
}
