package comm

import "errors"

// Failure classes for channel operations. All of them are fatal to the
// in-flight timestep; callers surface them instead of retrying.
var (
	// ErrSizeMismatch indicates an array whose record count does not match
	// the region's configured capacity.
	ErrSizeMismatch = errors.New("comm: array size does not match region capacity")

	// ErrChannelClosed indicates the peer tore the channel down, or never
	// attached before teardown.
	ErrChannelClosed = errors.New("comm: channel closed")

	// ErrAllocationFailure indicates segment creation or resize failed.
	ErrAllocationFailure = errors.New("comm: buffer allocation failed")

	// ErrHandleExchange indicates export or import of a device-memory IPC
	// handle failed (accelerator transport only).
	ErrHandleExchange = errors.New("comm: device handle exchange failed")

	// ErrReceiveTimeout indicates a receive deadline elapsed before the
	// peer published the region.
	ErrReceiveTimeout = errors.New("comm: receive timed out")

	// ErrUnsupportedPlatform indicates the shared-memory transport is not
	// available on this OS/arch combination.
	ErrUnsupportedPlatform = errors.New("comm: shared memory transport not supported on this platform")
)

// errFutexTimeout is the low-level timeout from a futex wait; it is mapped
// to ErrReceiveTimeout before leaving the package.
var errFutexTimeout = errors.New("comm: futex wait timed out")
