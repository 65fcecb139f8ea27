package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forcebridge/forcebridge/internal/comm"
)

// ForceRequest is one timestep's inputs as seen by the engine side.
type ForceRequest struct {
	Positions []comm.Vec4
	Neighbors []comm.Vec4 // nil when the host skips the neighbor exchange
	Layout    comm.Layout
}

// ForceResult is what the engine writes back. Forces must hold
// Layout.ForceRecords records; Echo is required in output mode (N records)
// and ignored otherwise; Virial is optional (N records when present).
type ForceResult struct {
	Forces []comm.Vec4
	Echo   []comm.Vec4
	Virial []comm.Vec4
}

// ForceFunc computes one timestep's response.
type ForceFunc func(req ForceRequest) ForceResult

// EngineConfig mirrors the host's exchange settings the engine has to
// agree on out of band.
type EngineConfig struct {
	ChannelName   string
	NeighborAware bool
	SendVirial    bool
	Timeout       time.Duration

	// AttachRetries and AttachDelay bound the wait for the next channel
	// generation after the host reallocates.
	AttachRetries int
	AttachDelay   time.Duration
}

// Engine is the peer-side endpoint: it attaches to the host's channel,
// receives snapshots, and writes results back. It only maps the segment;
// allocation and teardown belong to the host.
type Engine struct {
	cfg       EngineConfig
	transport comm.Transport
	ch        comm.Channel
	gen       uint32

	// pending holds a step whose positions were consumed but whose
	// neighbors receive timed out; the next StepOnce resumes there instead
	// of re-blocking on positions the host will not send again.
	pending *ForceRequest
}

// AttachEngine opens the first available channel generation.
func AttachEngine(transport comm.Transport, cfg EngineConfig) (*Engine, error) {
	if cfg.AttachRetries <= 0 {
		cfg.AttachRetries = 50
	}
	if cfg.AttachDelay <= 0 {
		cfg.AttachDelay = 20 * time.Millisecond
	}
	e := &Engine{cfg: cfg, transport: transport}
	if err := e.attachNext(1); err != nil {
		return nil, err
	}
	return e, nil
}

// Layout returns the layout of the currently attached generation.
func (e *Engine) Layout() comm.Layout { return e.ch.Layout() }

// attachNext polls for generation gen until it appears or the retry budget
// runs out. The host creates the new generation before closing the old
// one, so a short window is enough.
func (e *Engine) attachNext(gen uint32) error {
	var lastErr error
	for i := 0; i < e.cfg.AttachRetries; i++ {
		ch, err := e.transport.Attach(e.cfg.ChannelName, gen)
		if err == nil {
			e.ch = ch
			e.gen = gen
			e.pending = nil
			return nil
		}
		lastErr = err
		if !errors.Is(err, comm.ErrChannelClosed) {
			return err
		}
		time.Sleep(e.cfg.AttachDelay)
	}
	return fmt.Errorf("attach generation %d: %w", gen, lastErr)
}

// StepOnce serves one timestep: receive, compute, send back.
func (e *Engine) StepOnce(f ForceFunc) error {
	l := e.ch.Layout()

	var req ForceRequest
	if e.pending != nil {
		req = *e.pending
	} else {
		positions, err := e.ch.Receive(comm.RegionPositions, e.cfg.Timeout)
		if err != nil {
			return err
		}
		req = ForceRequest{Positions: positions, Layout: l}
	}

	if e.cfg.NeighborAware && req.Neighbors == nil {
		e.pending = &req
		neighbors, err := e.ch.Receive(comm.RegionNeighbors, e.cfg.Timeout)
		if err != nil {
			return err
		}
		req.Neighbors = neighbors
	}
	e.pending = nil

	res := f(req)
	if len(res.Forces) != l.ForceRecords {
		return fmt.Errorf("%w: engine produced %d force records, layout wants %d",
			comm.ErrSizeMismatch, len(res.Forces), l.ForceRecords)
	}

	payload := res.Forces
	if l.EchoRecords > 0 {
		echo := res.Echo
		if len(echo) != l.EchoRecords {
			return fmt.Errorf("%w: engine produced %d echo records, layout wants %d",
				comm.ErrSizeMismatch, len(echo), l.EchoRecords)
		}
		payload = append(append(make([]comm.Vec4, 0, l.ForceRecords+l.EchoRecords), res.Forces...), echo...)
	}
	if err := e.ch.Send(comm.RegionForces, payload); err != nil {
		return err
	}

	if e.cfg.SendVirial {
		virial := res.Virial
		if virial == nil {
			virial = make([]comm.Vec4, l.VirialRecords)
		}
		if err := e.ch.Send(comm.RegionVirial, virial); err != nil {
			return err
		}
	}
	return nil
}

// Serve loops StepOnce until the context is canceled or the channel goes
// away for good. When the host reallocates, the old generation closes and
// Serve re-attaches to the next one.
func (e *Engine) Serve(ctx context.Context, f ForceFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := e.StepOnce(f)
		if err == nil {
			continue
		}
		if errors.Is(err, comm.ErrChannelClosed) {
			next := e.gen + 1
			e.ch.Close()
			if attachErr := e.attachNext(next); attachErr != nil {
				// Host shut down rather than resized.
				return err
			}
			continue
		}
		if errors.Is(err, comm.ErrReceiveTimeout) {
			// Idle poll: the host is between steps. The timeout only
			// exists so cancellation is noticed; keep serving.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return err
	}
}

// Close detaches from the channel.
func (e *Engine) Close() error {
	if e.ch == nil {
		return nil
	}
	err := e.ch.Close()
	e.ch = nil
	return err
}
