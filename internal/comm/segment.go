package comm

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"
)

// unmapMemory is the platform unmap implementation, set by the
// platform-specific file's init.
var unmapMemory = func([]byte) error { return nil }

const (
	// segmentMagic identifies a forcebridge channel segment.
	segmentMagic = "FBRIDGE\x00"

	// segmentVersion is the current header protocol version.
	segmentVersion = uint32(1)

	// headerSize is the segment header size, padded to 128 bytes.
	headerSize = 128
)

// segmentHeader is the shared header at the base of every channel segment.
// Every mutable field is accessed atomically; the layout parameters are
// written once by the creator before the ready flag is set.
type segmentHeader struct {
	magic       [8]byte            // 0x00: "FBRIDGE\0"
	version     uint32             // 0x08: protocol version
	flags       uint32             // 0x0C: bit0 double precision, bits 1-2 force mode
	totalSize   uint64             // 0x10: total segment size
	n           uint64             // 0x18: particle count
	nneighs     uint32             // 0x20: neighbor capacity per particle
	generation  uint32             // 0x24: channel generation
	seq         [regionCount]uint32 // 0x28: per-region publish counters (futex words)
	hostPID     uint32             // 0x38: creating (simulation) process
	enginePID   uint32             // 0x3C: attached (engine) process
	hostReady   uint32             // 0x40: creator finished initialization
	engineReady uint32             // 0x44: peer mapped the segment
	closed      uint32             // 0x48: teardown flag
	pad         uint32             // 0x4C
	reserved    [48]byte           // 0x50-0x7F: padding to 128B
}

const (
	flagDoublePrecision = uint32(1)
	flagModeShift       = 1
	flagModeMask        = uint32(3) << flagModeShift
)

func packFlags(prec Precision, mode ForceMode) uint32 {
	f := (uint32(mode) << flagModeShift) & flagModeMask
	if prec == Double {
		f |= flagDoublePrecision
	}
	return f
}

func (h *segmentHeader) precision() Precision {
	if atomic.LoadUint32(&h.flags)&flagDoublePrecision != 0 {
		return Double
	}
	return Single
}

func (h *segmentHeader) forceMode() ForceMode {
	return ForceMode((atomic.LoadUint32(&h.flags) & flagModeMask) >> flagModeShift)
}

func (h *segmentHeader) particleCount() int  { return int(atomic.LoadUint64(&h.n)) }
func (h *segmentHeader) neighborCap() int    { return int(atomic.LoadUint32(&h.nneighs)) }
func (h *segmentHeader) gen() uint32         { return atomic.LoadUint32(&h.generation) }
func (h *segmentHeader) size() uint64        { return atomic.LoadUint64(&h.totalSize) }

func (h *segmentHeader) seqAddr(region int) *uint32 { return &h.seq[region] }

func (h *segmentHeader) loadSeq(region int) uint32 {
	return atomic.LoadUint32(&h.seq[region])
}

func (h *segmentHeader) bumpSeq(region int) uint32 {
	return atomic.AddUint32(&h.seq[region], 1)
}

func (h *segmentHeader) isClosed() bool {
	return atomic.LoadUint32(&h.closed) != 0
}

func (h *segmentHeader) setClosed() {
	atomic.StoreUint32(&h.closed, 1)
}

func (h *segmentHeader) setHostReady() { atomic.StoreUint32(&h.hostReady, 1) }
func (h *segmentHeader) isHostReady() bool {
	return atomic.LoadUint32(&h.hostReady) != 0
}

func (h *segmentHeader) setEngineReady() { atomic.StoreUint32(&h.engineReady, 1) }

func (h *segmentHeader) setEnginePID(pid int) {
	atomic.StoreUint32(&h.enginePID, uint32(pid))
}

// segment is one mapped channel segment. The creator owns the backing file
// and removes it on close; an attacher only unmaps.
type segment struct {
	file    *os.File
	mem     []byte
	path    string
	creator bool
}

func (s *segment) header() *segmentHeader {
	return (*segmentHeader)(unsafe.Pointer(&s.mem[0]))
}

// peerPID returns the other process's recorded pid, for teardown
// diagnostics. Zero until the peer has attached.
func (s *segment) peerPID() int {
	h := s.header()
	if s.creator {
		return int(atomic.LoadUint32(&h.enginePID))
	}
	return int(atomic.LoadUint32(&h.hostPID))
}

// payload returns the writable byte window of one region.
func (s *segment) payload(l Layout, r Region) []byte {
	off := l.OffsetOf(r)
	return s.mem[off : off+uint64(l.RegionBytes(r))]
}

// markClosed sets the teardown flag and wakes every waiter so a peer
// blocked mid-receive unblocks with ErrChannelClosed instead of hanging.
func (s *segment) markClosed() {
	h := s.header()
	h.setClosed()
	for i := 0; i < int(regionCount); i++ {
		futexWake(h.seqAddr(i), 1<<30)
	}
}

// close unmaps and releases the segment. Safe to call once after markClosed.
func (s *segment) close() error {
	var firstErr error

	if s.mem != nil {
		if err := unmapMemory(s.mem); err != nil && firstErr == nil {
			firstErr = err
		}
		s.mem = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	if s.creator && s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// initHeader fills a freshly created segment's header from the layout.
func (s *segment) initHeader(l Layout, generation uint32) {
	h := s.header()
	copy(h.magic[:], segmentMagic)
	atomic.StoreUint32(&h.version, segmentVersion)
	atomic.StoreUint32(&h.flags, packFlags(l.Precision, l.Mode))
	atomic.StoreUint64(&h.totalSize, l.TotalSize)
	atomic.StoreUint64(&h.n, uint64(l.N))
	atomic.StoreUint32(&h.nneighs, uint32(l.NNeighs))
	atomic.StoreUint32(&h.generation, generation)
	atomic.StoreUint32(&h.hostPID, uint32(os.Getpid()))
	h.setHostReady()
}

// validateHeader checks an attached segment and recomputes its layout. The
// layout is rederived from the header parameters and must reproduce the
// recorded total size exactly; a drifting peer is rejected here rather than
// read at the wrong offsets.
func validateHeader(h *segmentHeader) (Layout, error) {
	if string(h.magic[:]) != segmentMagic {
		return Layout{}, fmt.Errorf("invalid segment magic")
	}
	if v := atomic.LoadUint32(&h.version); v != segmentVersion {
		return Layout{}, fmt.Errorf("unsupported segment version %d, expected %d", v, segmentVersion)
	}
	l, err := ComputeLayout(h.particleCount(), h.neighborCap(), h.precision(), h.forceMode())
	if err != nil {
		return Layout{}, err
	}
	if l.TotalSize != h.size() {
		return Layout{}, fmt.Errorf("segment size mismatch: header %d, layout %d", h.size(), l.TotalSize)
	}
	return l, nil
}
