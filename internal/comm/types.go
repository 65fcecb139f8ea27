package comm

import "fmt"

// Vec4 is one 4-component record: position x, y, z plus an auxiliary scalar,
// or a force triple plus energy, depending on the region.
type Vec4 [4]float64

// Region identifies one typed sub-buffer inside a channel.
type Region int

const (
	RegionPositions Region = iota
	RegionNeighbors
	RegionForces
	RegionVirial

	regionCount
)

func (r Region) String() string {
	switch r {
	case RegionPositions:
		return "positions"
	case RegionNeighbors:
		return "neighbors"
	case RegionForces:
		return "forces"
	case RegionVirial:
		return "virial"
	default:
		return fmt.Sprintf("region(%d)", int(r))
	}
}

// Precision is the component width of a channel, fixed for its lifetime.
type Precision uint32

const (
	Single Precision = iota
	Double
)

// Width returns the component width in bytes.
func (p Precision) Width() int {
	if p == Double {
		return 8
	}
	return 4
}

func (p Precision) String() string {
	if p == Double {
		return "double"
	}
	return "single"
}

// ParsePrecision parses a configuration string into a Precision.
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "single", "float32", "":
		return Single, nil
	case "double", "float64":
		return Double, nil
	default:
		return Single, fmt.Errorf("unknown precision %q", s)
	}
}

// ForceMode is the wire-level force exchange mode. It participates in the
// buffer layout (output mode reserves the position-echo sub-region); the
// combine policy lives with the orchestrator.
type ForceMode uint32

const (
	ForceOverwrite ForceMode = iota
	ForceAdd
	ForceIgnore
	ForceOutput
)

func (m ForceMode) String() string {
	switch m {
	case ForceOverwrite:
		return "overwrite"
	case ForceAdd:
		return "add"
	case ForceIgnore:
		return "ignore"
	case ForceOutput:
		return "output"
	default:
		return fmt.Sprintf("forcemode(%d)", uint32(m))
	}
}

// ParseForceMode parses a configuration string into a ForceMode.
func ParseForceMode(s string) (ForceMode, error) {
	switch s {
	case "overwrite", "":
		return ForceOverwrite, nil
	case "add":
		return ForceAdd, nil
	case "ignore":
		return ForceIgnore, nil
	case "output":
		return ForceOutput, nil
	default:
		return ForceOverwrite, fmt.Errorf("unknown force mode %q", s)
	}
}

// Token is an opaque handle to one region, consumable by the peer process.
// It is valid until the channel is reallocated or torn down; the Generation
// field lets a holder detect staleness after a resize.
type Token struct {
	// Path locates the shared-memory segment for host-memory channels.
	Path string
	// Handle carries the fixed-size device IPC handle for accelerator
	// channels; nil for host-memory channels.
	Handle []byte
	// Offset is the byte offset of the region payload within the segment
	// (or within the device allocation).
	Offset uint64
	// Records is the region capacity in 4-component records.
	Records int
	// Precision is the component width the payload was written with.
	Precision Precision
	// Generation is the channel generation the token belongs to.
	Generation uint32
}
