package md

import (
	"sort"

	"github.com/forcebridge/forcebridge/internal/comm"
)

// Neighbors builds the fixed-capacity neighbor snapshot the exchange
// copies to the engine each step: for every particle, the positions of up
// to nneighs nearest particles within the cutoff, particle-major, with
// unused slots zero-filled.
type Neighbors struct {
	particles *Particles
	cutoff    float64
}

// NewNeighbors builds a neighbor source over a particle store.
func NewNeighbors(p *Particles, cutoff float64) *Neighbors {
	return &Neighbors{particles: p, cutoff: cutoff}
}

// Snapshot rebuilds and returns the N*nneighs snapshot. Brute-force
// distance search; the demo host loop does not need cell lists.
func (nl *Neighbors) Snapshot(nneighs int) []comm.Vec4 {
	n := nl.particles.N()
	out := make([]comm.Vec4, n*nneighs)
	if nneighs == 0 {
		return out
	}
	pos := nl.particles.Positions()
	cut2 := nl.cutoff * nl.cutoff

	type candidate struct {
		idx int
		d2  float64
	}
	for i := 0; i < n; i++ {
		cands := make([]candidate, 0, n-1)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d2 := dist2(pos[i], pos[j])
			if d2 <= cut2 {
				cands = append(cands, candidate{j, d2})
			}
		}
		sort.Slice(cands, func(a, b int) bool { return cands[a].d2 < cands[b].d2 })
		if len(cands) > nneighs {
			cands = cands[:nneighs]
		}
		for s, c := range cands {
			out[i*nneighs+s] = pos[c.idx]
		}
	}
	return out
}

func dist2(a, b comm.Vec4) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}
