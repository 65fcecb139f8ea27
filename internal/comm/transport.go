package comm

import "fmt"

// Transport creates channels in one memory domain. The host transport maps
// shared memory; the device transport keeps region payloads in accelerator
// memory and exports IPC handles, while synchronizing over the same
// host-side segment machinery.
type Transport interface {
	Name() string
	Available() bool

	// Create builds a new channel generation, host side. Either the whole
	// channel comes up or nothing does; a failed Create leaves no segment
	// behind.
	Create(name string, generation uint32, l Layout) (Channel, error)

	// Attach opens an existing channel generation, engine side, deriving
	// the layout from the segment header.
	Attach(name string, generation uint32) (Channel, error)
}

// AutoSelectTransport picks the device transport when the accelerator
// runtime is available, otherwise the host transport.
func AutoSelectTransport() Transport {
	dev := NewDeviceTransport()
	if dev.Available() {
		return dev
	}
	return NewHostTransport()
}

// SelectTransport resolves a configuration string to a transport.
func SelectTransport(name string) (Transport, error) {
	switch name {
	case "", "auto":
		return AutoSelectTransport(), nil
	case "host", "shm":
		return NewHostTransport(), nil
	case "cuda", "device":
		dev := NewDeviceTransport()
		if !dev.Available() {
			return nil, fmt.Errorf("%w: transport %q not available in this build", ErrHandleExchange, name)
		}
		return dev, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

// HostTransport creates channels over mmap'd shared memory.
type HostTransport struct{}

func NewHostTransport() *HostTransport { return &HostTransport{} }

func (t *HostTransport) Name() string    { return "host (shared memory)" }
func (t *HostTransport) Available() bool { return hostTransportSupported }

func (t *HostTransport) Create(name string, generation uint32, l Layout) (Channel, error) {
	seg, err := createSegment(SegmentPath(name, generation), l, generation)
	if err != nil {
		return nil, err
	}
	return &hostChannel{seg: seg, layout: l, gen: generation}, nil
}

func (t *HostTransport) Attach(name string, generation uint32) (Channel, error) {
	seg, l, err := openSegment(SegmentPath(name, generation))
	if err != nil {
		return nil, err
	}
	return &hostChannel{seg: seg, layout: l, gen: generation}, nil
}
