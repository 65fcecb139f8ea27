package comm

import "fmt"

// recordComponents is the component count of every record on the wire.
const recordComponents = 4

// Layout is the exact buffer layout of a channel, derived purely from
// (N, nneighs, precision, force mode). Two layouts computed from the same
// inputs are identical; reallocation with unchanged inputs is a no-op.
type Layout struct {
	N         int
	NNeighs   int
	Precision Precision
	Mode      ForceMode

	// Region capacities in 4-component records.
	PositionRecords int
	NeighborRecords int
	ForceRecords    int // force payload, excluding the echo sub-region
	EchoRecords     int // position-echo sub-region, output mode only
	VirialRecords   int

	// Byte offsets from the segment base. Region starts are 64-byte
	// aligned; the echo sub-region sits inside the forces region at
	// record offset N*(1+nneighs).
	PositionsOffset uint64
	NeighborsOffset uint64
	ForcesOffset    uint64
	EchoOffset      uint64
	VirialOffset    uint64

	// TotalSize is the full segment size including the header.
	TotalSize uint64
}

// ComputeLayout derives the channel layout for n particles with up to
// nneighs neighbors per particle.
//
// Record counts follow the exchange contract: positions n, neighbors
// n*nneighs (particle-major), forces n (or n*(1+nneighs) plus an n-record
// position echo in output mode), virial n. The outbound area (positions,
// neighbors) precedes the inbound area (forces+echo, virial).
func ComputeLayout(n, nneighs int, prec Precision, mode ForceMode) (Layout, error) {
	if n < 0 {
		return Layout{}, fmt.Errorf("%w: negative particle count %d", ErrAllocationFailure, n)
	}
	if nneighs < 0 {
		return Layout{}, fmt.Errorf("%w: negative neighbor capacity %d", ErrAllocationFailure, nneighs)
	}

	l := Layout{
		N:         n,
		NNeighs:   nneighs,
		Precision: prec,
		Mode:      mode,

		PositionRecords: n,
		NeighborRecords: n * nneighs,
		ForceRecords:    n,
		VirialRecords:   n,
	}
	if mode == ForceOutput {
		l.ForceRecords = n * (1 + nneighs)
		l.EchoRecords = n
	}

	rb := uint64(l.RecordBytes())
	l.PositionsOffset = alignTo64(headerSize)
	l.NeighborsOffset = alignTo64(l.PositionsOffset + uint64(l.PositionRecords)*rb)
	l.ForcesOffset = alignTo64(l.NeighborsOffset + uint64(l.NeighborRecords)*rb)
	l.EchoOffset = l.ForcesOffset + uint64(l.ForceRecords)*rb
	l.VirialOffset = alignTo64(l.EchoOffset + uint64(l.EchoRecords)*rb)
	l.TotalSize = alignTo64(l.VirialOffset + uint64(l.VirialRecords)*rb)

	return l, nil
}

// RecordBytes returns the byte size of one 4-component record.
func (l Layout) RecordBytes() int {
	return recordComponents * l.Precision.Width()
}

// Records returns the record capacity of a region. The forces region
// includes the echo sub-region, which is sent and received as part of its
// payload.
func (l Layout) Records(r Region) int {
	switch r {
	case RegionPositions:
		return l.PositionRecords
	case RegionNeighbors:
		return l.NeighborRecords
	case RegionForces:
		return l.ForceRecords + l.EchoRecords
	case RegionVirial:
		return l.VirialRecords
	default:
		return 0
	}
}

// OffsetOf returns the byte offset of a region's payload.
func (l Layout) OffsetOf(r Region) uint64 {
	switch r {
	case RegionPositions:
		return l.PositionsOffset
	case RegionNeighbors:
		return l.NeighborsOffset
	case RegionForces:
		return l.ForcesOffset
	case RegionVirial:
		return l.VirialOffset
	default:
		return 0
	}
}

// RegionBytes returns the byte size of a region's payload.
func (l Layout) RegionBytes(r Region) int {
	return l.Records(r) * l.RecordBytes()
}

// TokenOffset returns the byte offset a region's exposed token points at.
// It matches OffsetOf except for the forces region in output mode, where
// the token points at the echo sub-region: positions are appended after the
// force payload there, and the foreign consumer maps the echo slot.
func (l Layout) TokenOffset(r Region) uint64 {
	if r == RegionForces && l.Mode == ForceOutput {
		return l.EchoOffset
	}
	return l.OffsetOf(r)
}

// Equal reports whether two layouts describe the same buffers.
func (l Layout) Equal(o Layout) bool {
	return l == o
}

func alignTo64(n uint64) uint64 {
	return (n + 63) &^ 63
}
