//go:build !linux

package comm

import "fmt"

const hostTransportSupported = false

// SegmentPath returns the backing file path for a channel name and
// generation. Unused on platforms without the shared-memory transport.
func SegmentPath(name string, generation uint32) string {
	return fmt.Sprintf("forcebridge_%s.g%d", name, generation)
}

func createSegment(string, Layout, uint32) (*segment, error) {
	return nil, ErrUnsupportedPlatform
}

func openSegment(string) (*segment, Layout, error) {
	return nil, Layout{}, ErrUnsupportedPlatform
}
