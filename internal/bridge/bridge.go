// Package bridge drives the per-timestep exchange protocol between the
// host simulation and the external compute engine: push positions and
// neighbors, await forces (and optionally virial), then apply the force
// mode policy. One orchestrator serves both the host-memory and the
// accelerator channel; the protocol sequence is never duplicated per
// transport.
package bridge

import (
	"fmt"
	"time"

	"github.com/forcebridge/forcebridge/internal/comm"
)

// ParticleStore is the simulation-side particle collaborator. The particle
// count is authoritative here; a change triggers channel reallocation
// before the next send.
type ParticleStore interface {
	N() int
	Positions() []comm.Vec4
	SetPositions([]comm.Vec4)
	Forces() []comm.Vec4
	SetForces([]comm.Vec4)
	AccumulateVirial([]comm.Vec4)
}

// NeighborSource produces the particle-major fixed-capacity neighbor
// snapshot copied into the channel each step.
type NeighborSource interface {
	Snapshot(nneighs int) []comm.Vec4
}

// Config holds the exchange parameters, fixed for the run.
type Config struct {
	ChannelName   string
	NNeighs       int
	Precision     comm.Precision
	Mode          comm.ForceMode
	SendNeighbors bool
	ReceiveVirial bool
	Timeout       time.Duration
}

// StepError tags a failed timestep with the phase that aborted it. No
// partial force or virial application is committed for such a step.
type StepError struct {
	Step  uint64
	Phase string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Step, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Bridge is the simulation-side orchestrator.
type Bridge struct {
	cfg       Config
	transport comm.Transport
	store     ParticleStore
	neighbors NeighborSource

	ch    comm.Channel
	gen   uint32
	lastN int

	observer StepObserver
}

// StepObserver is notified after each committed step; the live monitor and
// CLI statistics hang off this.
type StepObserver interface {
	ObserveStep(step uint64, latency time.Duration, bytesOut, bytesIn int)
}

// New builds a bridge over the given transport. The first channel is
// created lazily, on the first step with a nonzero particle count.
func New(store ParticleStore, neighbors NeighborSource, transport comm.Transport, cfg Config) (*Bridge, error) {
	if cfg.ChannelName == "" {
		return nil, fmt.Errorf("bridge: channel name required")
	}
	if cfg.SendNeighbors && neighbors == nil {
		return nil, fmt.Errorf("bridge: neighbor exchange enabled without a neighbor source")
	}
	b := &Bridge{
		cfg:       cfg,
		transport: transport,
		store:     store,
		neighbors: neighbors,
		lastN:     -1,
	}
	if store.N() > 0 {
		if err := b.Reallocate(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// SetObserver installs the step observer. Pass nil to detach.
func (b *Bridge) SetObserver(o StepObserver) { b.observer = o }

// Channel returns the current channel, or nil before first allocation.
func (b *Bridge) Channel() comm.Channel { return b.ch }

// Generation returns the current channel generation.
func (b *Bridge) Generation() uint32 { return b.gen }

// Tokens returns the opaque region handles exposed to the peer. They are
// valid until the next Reallocate or Close.
func (b *Bridge) Tokens() (map[comm.Region]comm.Token, error) {
	if b.ch == nil {
		return nil, comm.ErrChannelClosed
	}
	out := make(map[comm.Region]comm.Token, 4)
	for _, r := range []comm.Region{comm.RegionPositions, comm.RegionNeighbors, comm.RegionForces, comm.RegionVirial} {
		tok, err := b.ch.Token(r)
		if err != nil {
			return nil, err
		}
		out[r] = tok
	}
	return out, nil
}

// Reallocate rebuilds the channel for the store's current particle count.
// The new generation is fully constructed before the old one is torn down;
// on failure the prior channel stays valid and untouched.
func (b *Bridge) Reallocate() error {
	n := b.store.N()
	l, err := comm.ComputeLayout(n, b.cfg.NNeighs, b.cfg.Precision, b.cfg.Mode)
	if err != nil {
		return err
	}
	if b.ch != nil && b.ch.Layout().Equal(l) {
		b.lastN = n
		return nil
	}

	next, err := b.transport.Create(b.cfg.ChannelName, b.gen+1, l)
	if err != nil {
		return fmt.Errorf("reallocate to %d particles: %w", n, err)
	}
	if b.ch != nil {
		b.ch.Close()
	}
	b.ch = next
	b.gen++
	b.lastN = n
	return nil
}

// Step runs one timestep of the exchange protocol. On error the step is
// aborted whole: the store's forces, positions and virial are only mutated
// after every receive has succeeded.
func (b *Bridge) Step(step uint64) error {
	start := time.Now()

	if n := b.store.N(); b.ch == nil || n != b.lastN {
		if err := b.Reallocate(); err != nil {
			return &StepError{Step: step, Phase: "reallocate", Err: err}
		}
	}
	l := b.ch.Layout()

	positions := b.store.Positions()
	if err := b.ch.Send(comm.RegionPositions, positions); err != nil {
		return &StepError{Step: step, Phase: "send positions", Err: err}
	}
	bytesOut := l.RegionBytes(comm.RegionPositions)

	if b.cfg.SendNeighbors {
		snap := b.neighbors.Snapshot(b.cfg.NNeighs)
		if err := b.ch.Send(comm.RegionNeighbors, snap); err != nil {
			return &StepError{Step: step, Phase: "send neighbors", Err: err}
		}
		bytesOut += l.RegionBytes(comm.RegionNeighbors)
	}

	// Suspension point: the engine computes while we block here.
	received, err := b.ch.Receive(comm.RegionForces, b.cfg.Timeout)
	if err != nil {
		return &StepError{Step: step, Phase: "receive forces", Err: err}
	}
	bytesIn := l.RegionBytes(comm.RegionForces)

	var virial []comm.Vec4
	if b.cfg.ReceiveVirial {
		virial, err = b.ch.Receive(comm.RegionVirial, b.cfg.Timeout)
		if err != nil {
			return &StepError{Step: step, Phase: "receive virial", Err: err}
		}
		bytesIn += l.RegionBytes(comm.RegionVirial)
	}

	// All exchanges succeeded; commit.
	payload := received[:l.ForceRecords]
	perParticle := reduceForces(l, payload)
	b.store.SetForces(combineForces(b.cfg.Mode, b.store.Forces(), perParticle))

	if b.cfg.Mode == comm.ForceOutput {
		echo := received[l.ForceRecords:]
		b.store.SetPositions(echo)
	}
	if virial != nil {
		b.store.AccumulateVirial(virial)
	}

	if b.observer != nil {
		b.observer.ObserveStep(step, time.Since(start), bytesOut, bytesIn)
	}
	return nil
}

// Close tears the channel down, unblocking a peer waiting mid-receive.
func (b *Bridge) Close() error {
	if b.ch == nil {
		return nil
	}
	err := b.ch.Close()
	b.ch = nil
	return err
}
