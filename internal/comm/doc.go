// Package comm implements the cross-process array channel used to exchange
// per-timestep particle state with an external compute engine.
//
// A channel is one shared-memory segment (or, for the accelerator transport,
// a host-side control segment plus device-resident buffers) holding four
// typed regions:
//
//   - positions: simulation -> engine
//   - neighbors: simulation -> engine
//   - forces:    engine -> simulation (with a position-echo sub-region in
//     output mode)
//   - virial:    engine -> simulation
//
// Each region has a publish counter in the segment header. A writer copies
// the full payload and then bumps the counter, waking futex waiters; a
// reader blocks until the counter moves past the value it last consumed.
// Region ownership alternates strictly between the two processes each
// timestep, so the counters are the only synchronization needed.
//
// Buffer sizes are a pure function of (N, nneighs, precision, force mode);
// see ComputeLayout. Changing the particle count requires a new channel
// generation, created by the host side and re-attached by the engine.
package comm
