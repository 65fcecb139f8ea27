//go:build cuda && linux

package comm

/*
#cgo LDFLAGS: -lcudart
#include <cuda_runtime.h>
#include <string.h>
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

const deviceHandleSize = C.CUDA_IPC_HANDLE_SIZE

// DeviceTransport creates channels whose region payloads live in device
// memory, exported to the peer as CUDA IPC handles. Synchronization still
// runs over the host-side segment: device handles carry no rendezvous of
// their own, and the protocol must not fork between the two transports.
type DeviceTransport struct{}

func NewDeviceTransport() *DeviceTransport { return &DeviceTransport{} }

func (t *DeviceTransport) Name() string {
	if !t.Available() {
		return "cuda (not available)"
	}
	var prop C.struct_cudaDeviceProp
	if C.cudaGetDeviceProperties(&prop, 0) == C.cudaSuccess {
		return "cuda (" + C.GoString(&prop.name[0]) + ")"
	}
	return "cuda"
}

func (t *DeviceTransport) Available() bool {
	var count C.int
	return C.cudaGetDeviceCount(&count) == C.cudaSuccess && count > 0
}

func (t *DeviceTransport) Create(name string, generation uint32, l Layout) (Channel, error) {
	seg, err := createSegment(SegmentPath(name, generation), l, generation)
	if err != nil {
		return nil, err
	}
	ch := &deviceChannel{seg: seg, layout: l, gen: generation, owner: true}
	if err := ch.allocRegions(); err != nil {
		ch.releaseRegions()
		seg.markClosed()
		seg.close()
		return nil, err
	}
	return ch, nil
}

func (t *DeviceTransport) Attach(name string, generation uint32) (Channel, error) {
	seg, l, err := openSegment(SegmentPath(name, generation))
	if err != nil {
		return nil, err
	}
	ch := &deviceChannel{seg: seg, layout: l, gen: generation}
	if err := ch.importRegions(); err != nil {
		ch.releaseRegions()
		seg.markClosed()
		seg.close()
		return nil, err
	}
	return ch, nil
}

// deviceChannel keeps one device allocation per region. The creator
// allocates and writes each region's IPC handle into the segment payload
// slot (the payload area doubles as the handle exchange surface before the
// first publish); the attacher imports the handles from there.
type deviceChannel struct {
	mu       sync.Mutex
	seg      *segment
	layout   Layout
	gen      uint32
	owner    bool
	bufs     [regionCount]unsafe.Pointer
	handles  [regionCount][deviceHandleSize]byte
	staging  []byte
	lastSeen [regionCount]uint32
	closed   bool
}

func (c *deviceChannel) allocRegions() error {
	for r := Region(0); r < regionCount; r++ {
		size := c.layout.RegionBytes(r)
		if size == 0 {
			continue
		}
		var ptr unsafe.Pointer
		if rc := C.cudaMalloc(&ptr, C.size_t(size)); rc != C.cudaSuccess {
			return fmt.Errorf("%w: cudaMalloc %s region (%d bytes): %s",
				ErrAllocationFailure, r, size, C.GoString(C.cudaGetErrorString(rc)))
		}
		c.bufs[r] = ptr
		var h C.cudaIpcMemHandle_t
		if rc := C.cudaIpcGetMemHandle(&h, ptr); rc != C.cudaSuccess {
			return fmt.Errorf("%w: export %s region: %s",
				ErrHandleExchange, r, C.GoString(C.cudaGetErrorString(rc)))
		}
		C.memcpy(unsafe.Pointer(&c.handles[r][0]), unsafe.Pointer(&h), deviceHandleSize)
		// Stash the handle at the head of the region's segment slot so the
		// attaching process can import it. The slot must be able to carry
		// the fixed-size handle.
		slot := c.seg.payload(c.layout, r)
		if len(slot) < deviceHandleSize {
			return fmt.Errorf("%w: %s region slot too small for IPC handle", ErrHandleExchange, r)
		}
		copy(slot[:deviceHandleSize], c.handles[r][:])
	}
	return nil
}

func (c *deviceChannel) importRegions() error {
	for r := Region(0); r < regionCount; r++ {
		if c.layout.RegionBytes(r) == 0 {
			continue
		}
		slot := c.seg.payload(c.layout, r)
		if len(slot) < deviceHandleSize {
			return fmt.Errorf("%w: %s region slot too small for IPC handle", ErrHandleExchange, r)
		}
		copy(c.handles[r][:], slot[:deviceHandleSize])
		var h C.cudaIpcMemHandle_t
		C.memcpy(unsafe.Pointer(&h), unsafe.Pointer(&c.handles[r][0]), deviceHandleSize)
		var ptr unsafe.Pointer
		if rc := C.cudaIpcOpenMemHandle(&ptr, h, C.cudaIpcMemLazyEnablePeerAccess); rc != C.cudaSuccess {
			return fmt.Errorf("%w: import %s region: %s",
				ErrHandleExchange, r, C.GoString(C.cudaGetErrorString(rc)))
		}
		c.bufs[r] = ptr
	}
	return nil
}

func (c *deviceChannel) releaseRegions() {
	for r := Region(0); r < regionCount; r++ {
		if c.bufs[r] == nil {
			continue
		}
		if c.owner {
			C.cudaFree(c.bufs[r])
		} else {
			C.cudaIpcCloseMemHandle(c.bufs[r])
		}
		c.bufs[r] = nil
	}
}

func (c *deviceChannel) stagingFor(region Region) []byte {
	need := c.layout.RegionBytes(region)
	if cap(c.staging) < need {
		c.staging = make([]byte, need)
	}
	return c.staging[:need]
}

func (c *deviceChannel) Send(region Region, records []Vec4) error {
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
	// A zero-byte region (nneighs=0, or N=0) has no device buffer; the
	// publish still happens so the rendezvous stays in lockstep with the
	// host-memory channel.
	if buf := c.stagingFor(region); len(buf) > 0 {
		encodeRecords(buf, records, c.layout.Precision)
		if rc := C.cudaMemcpy(c.bufs[region], unsafe.Pointer(&buf[0]), C.size_t(len(buf)), C.cudaMemcpyHostToDevice); rc != C.cudaSuccess {
			return fmt.Errorf("%w: upload %s region: %s", ErrAllocationFailure, region, C.GoString(C.cudaGetErrorString(rc)))
		}
	}
	return publish(c.seg, region)
}

func (c *deviceChannel) Receive(region Region, timeout time.Duration) ([]Vec4, error) {
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
	buf := c.stagingFor(region)
	if len(buf) > 0 {
		if rc := C.cudaMemcpy(unsafe.Pointer(&buf[0]), c.bufs[region], C.size_t(len(buf)), C.cudaMemcpyDeviceToHost); rc != C.cudaSuccess {
			return nil, fmt.Errorf("%w: download %s region: %s", ErrAllocationFailure, region, C.GoString(C.cudaGetErrorString(rc)))
		}
	}
	return decodeRecords(buf, c.layout.Records(region), c.layout.Precision), nil
}

func (c *deviceChannel) Token(region Region) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Token{}, ErrChannelClosed
	}
	handle := make([]byte, deviceHandleSize)
	copy(handle, c.handles[region][:])
	return Token{
		Path:       c.seg.path,
		Handle:     handle,
		Offset:     c.layout.TokenOffset(region) - c.layout.OffsetOf(region),
		Records:    c.layout.Records(region),
		Precision:  c.layout.Precision,
		Generation: c.gen,
	}, nil
}

func (c *deviceChannel) Layout() Layout     { return c.layout }
func (c *deviceChannel) Generation() uint32 { return c.gen }

func (c *deviceChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.releaseRegions()
	c.seg.markClosed()
	return c.seg.close()
}
