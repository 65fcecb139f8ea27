//go:build !cuda || !linux

package comm

import "fmt"

// DeviceTransport is unavailable without the cuda build tag.
type DeviceTransport struct{}

func NewDeviceTransport() *DeviceTransport { return &DeviceTransport{} }

func (t *DeviceTransport) Name() string    { return "cuda (not available)" }
func (t *DeviceTransport) Available() bool { return false }

func (t *DeviceTransport) Create(name string, generation uint32, l Layout) (Channel, error) {
	return nil, fmt.Errorf("%w: built without cuda support", ErrHandleExchange)
}

func (t *DeviceTransport) Attach(name string, generation uint32) (Channel, error) {
	return nil, fmt.Errorf("%w: built without cuda support", ErrHandleExchange)
}
