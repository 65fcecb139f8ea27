//go:build linux

package comm

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// Shared (non-private) futex opcodes: the counter words live in a
// MAP_SHARED segment and must wake across process boundaries.
const (
	futexOpWait = 0 // FUTEX_WAIT
	futexOpWake = 1 // FUTEX_WAKE
)

// futexWait blocks until the value at addr is no longer val, a wake is
// posted on the address, or a signal interrupts the call. Callers must
// re-check their logical condition after it returns: spurious wakeups are
// possible.
func futexWait(addr *uint32, val uint32) error {
	// Re-check atomically before entering the syscall, closing the
	// lost-wake window between the caller's snapshot and futex entry.
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	_, _, errno := syscall.Syscall6(
		syscall.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWait,
		uintptr(val),
		0, // timeout: infinite
		0,
		0,
	)
	if errno != 0 && errno != syscall.EAGAIN && errno != syscall.EINTR {
		return fmt.Errorf("futex wait failed: %w", errno)
	}
	return nil
}

// futexWaitTimeout is futexWait with a relative timeout in nanoseconds.
// It returns errFutexTimeout when the kernel reports the wait expired.
func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	if timeoutNs <= 0 {
		return futexWait(addr, val)
	}

	if atomic.LoadUint32(addr) != val {
		return nil
	}

	var ts syscall.Timespec
	ts.Sec = timeoutNs / 1e9
	ts.Nsec = timeoutNs % 1e9

	_, _, errno := syscall.Syscall6(
		syscall.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWait,
		uintptr(val),
		uintptr(unsafe.Pointer(&ts)),
		0,
		0,
	)
	if errno != 0 {
		switch errno {
		case syscall.EAGAIN, syscall.EINTR:
			return nil
		case syscall.ETIMEDOUT:
			return errFutexTimeout
		default:
			return fmt.Errorf("futex wait failed: %w", errno)
		}
	}
	return nil
}

// futexWake wakes up to n waiters on addr and returns the number woken.
func futexWake(addr *uint32, n int) (int, error) {
	r1, _, errno := syscall.Syscall6(
		syscall.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWake,
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return 0, fmt.Errorf("futex wake failed: %w", errno)
	}
	return int(r1), nil
}
