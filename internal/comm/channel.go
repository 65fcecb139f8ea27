package comm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// Channel is one cross-process array channel. Send copies a fully
// shape-checked record array into the named region and signals the peer;
// Receive blocks until the peer has signaled, then returns the region's
// records. The two never interleave on a region: the publish counter only
// advances after the payload is completely in place, and region ownership
// alternates strictly between the processes each timestep.
type Channel interface {
	// Send publishes records into a region. Fails with ErrSizeMismatch if
	// len(records) differs from the region capacity, ErrChannelClosed if
	// the peer tore down.
	Send(region Region, records []Vec4) error

	// Receive blocks until the peer publishes the region, then returns its
	// records. A non-positive timeout blocks indefinitely; an elapsed
	// timeout fails with ErrReceiveTimeout and returns no partial data.
	Receive(region Region, timeout time.Duration) ([]Vec4, error)

	// Token returns the opaque handle for a region, valid until the next
	// reallocation or Close.
	Token(region Region) (Token, error)

	// Layout returns the channel's buffer layout.
	Layout() Layout

	// Generation returns the channel generation.
	Generation() uint32

	// Close tears the channel down and unblocks a peer waiting mid-receive.
	Close() error
}

// rendezvous: publish/await over a segment's per-region counters. Both the
// host-memory and device-memory channels go through these two functions;
// the cross-process protocol lives here exactly once.

func publish(s *segment, region Region) error {
	h := s.header()
	if h.isClosed() {
		return ErrChannelClosed
	}
	h.bumpSeq(int(region))
	futexWake(h.seqAddr(int(region)), 1)
	return nil
}

// await blocks until the region's counter moves past last, returning the
// new counter value.
func await(s *segment, region Region, last uint32, timeout time.Duration) (uint32, error) {
	h := s.header()
	addr := h.seqAddr(int(region))

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if h.isClosed() {
			return 0, ErrChannelClosed
		}
		cur := h.loadSeq(int(region))
		if cur != last {
			return cur, nil
		}

		var err error
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0, fmt.Errorf("%w: %s region after %v", ErrReceiveTimeout, region, timeout)
			}
			err = futexWaitTimeout(addr, cur, remaining.Nanoseconds())
		} else {
			err = futexWait(addr, cur)
		}
		if err != nil {
			if errors.Is(err, errFutexTimeout) {
				return 0, fmt.Errorf("%w: %s region after %v", ErrReceiveTimeout, region, timeout)
			}
			return 0, err
		}
	}
}

// codec: records <-> region bytes at the channel's precision, little-endian.

func encodeRecords(dst []byte, records []Vec4, prec Precision) {
	if prec == Double {
		for i, r := range records {
			base := i * recordComponents * 8
			for j := 0; j < recordComponents; j++ {
				binary.LittleEndian.PutUint64(dst[base+j*8:], math.Float64bits(r[j]))
			}
		}
		return
	}
	for i, r := range records {
		base := i * recordComponents * 4
		for j := 0; j < recordComponents; j++ {
			binary.LittleEndian.PutUint32(dst[base+j*4:], math.Float32bits(float32(r[j])))
		}
	}
}

func decodeRecords(src []byte, n int, prec Precision) []Vec4 {
	out := make([]Vec4, n)
	if prec == Double {
		for i := range out {
			base := i * recordComponents * 8
			for j := 0; j < recordComponents; j++ {
				out[i][j] = math.Float64frombits(binary.LittleEndian.Uint64(src[base+j*8:]))
			}
		}
		return out
	}
	for i := range out {
		base := i * recordComponents * 4
		for j := 0; j < recordComponents; j++ {
			out[i][j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(src[base+j*4:])))
		}
	}
	return out
}

// hostChannel is the host-memory channel: all four regions live in one
// mmap'd shared segment.
type hostChannel struct {
	mu       sync.Mutex
	seg      *segment
	layout   Layout
	gen      uint32
	lastSeen [regionCount]uint32
	closed   bool
}

func (c *hostChannel) Send(region Region, records []Vec4) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if want := c.layout.Records(region); len(records) != want {
		return fmt.Errorf("%w: %s region holds %d records, got %d", ErrSizeMismatch, region, want, len(records))
	}
	if c.seg.header().isClosed() {
		return fmt.Errorf("%w: peer (pid %d) tore down before %s send", ErrChannelClosed, c.seg.peerPID(), region)
	}
	encodeRecords(c.seg.payload(c.layout, region), records, c.layout.Precision)
	return publish(c.seg, region)
}

func (c *hostChannel) Receive(region Region, timeout time.Duration) ([]Vec4, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	seg, last := c.seg, c.lastSeen[region]
	c.mu.Unlock()

	cur, err := await(seg, region, last, timeout)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChannelClosed
	}
	c.lastSeen[region] = cur
	return decodeRecords(seg.payload(c.layout, region), c.layout.Records(region), c.layout.Precision), nil
}

func (c *hostChannel) Token(region Region) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Token{}, ErrChannelClosed
	}
	return Token{
		Path:       c.seg.path,
		Offset:     c.layout.TokenOffset(region),
		Records:    c.layout.Records(region),
		Precision:  c.layout.Precision,
		Generation: c.gen,
	}, nil
}

func (c *hostChannel) Layout() Layout     { return c.layout }
func (c *hostChannel) Generation() uint32 { return c.gen }

func (c *hostChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.seg.markClosed()
	return c.seg.close()
}
