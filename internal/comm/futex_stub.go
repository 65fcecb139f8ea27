//go:build !linux

package comm

func futexWait(addr *uint32, val uint32) error {
	return ErrUnsupportedPlatform
}

func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	return ErrUnsupportedPlatform
}

func futexWake(addr *uint32, n int) (int, error) {
	return 0, ErrUnsupportedPlatform
}
