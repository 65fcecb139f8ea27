//go:build linux

package comm

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const hostTransportSupported = true

func init() {
	unmapMemory = munmapImpl
}

// SegmentPath returns the backing file path for a channel name and
// generation. /dev/shm is preferred; the temp dir is the fallback.
func SegmentPath(name string, generation uint32) string {
	file := fmt.Sprintf("forcebridge_%s.g%d", name, generation)
	if isDevShmAvailable() {
		return filepath.Join("/dev/shm", file)
	}
	return filepath.Join(os.TempDir(), file)
}

// createSegment creates and maps a new segment sized for the layout. The
// file is created exclusively; a leftover segment from a crashed run is an
// error the caller reports rather than silently reusing.
func createSegment(path string, l Layout, generation uint32) (*segment, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrAllocationFailure, path, err)
	}

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(l.TotalSize)); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: resize %s to %d bytes: %v", ErrAllocationFailure, path, l.TotalSize, err)
	}

	mem, err := mmapFile(file, int(l.TotalSize))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrAllocationFailure, err)
	}

	s := &segment{file: file, mem: mem, path: path, creator: true}
	s.initHeader(l, generation)
	return s, nil
}

// openSegment maps an existing segment and validates its header.
func openSegment(path string) (*segment, Layout, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Layout{}, fmt.Errorf("%w: no segment at %s", ErrChannelClosed, path)
		}
		return nil, Layout{}, fmt.Errorf("%w: open %s: %v", ErrAllocationFailure, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, Layout{}, fmt.Errorf("%w: stat %s: %v", ErrAllocationFailure, path, err)
	}
	if info.Size() < headerSize {
		file.Close()
		return nil, Layout{}, fmt.Errorf("%w: segment %s too small (%d bytes)", ErrAllocationFailure, path, info.Size())
	}

	mem, err := mmapFile(file, int(info.Size()))
	if err != nil {
		file.Close()
		return nil, Layout{}, fmt.Errorf("%w: %v", ErrAllocationFailure, err)
	}

	s := &segment{file: file, mem: mem, path: path}
	// The creator sets hostReady last, after the header is fully written.
	// Mapping the file in the window before that is not an error; the
	// caller retries the way it would for a not-yet-created generation.
	if !s.header().isHostReady() {
		s.close()
		return nil, Layout{}, fmt.Errorf("%w: segment %s not initialized yet", ErrChannelClosed, path)
	}
	l, err := validateHeader(s.header())
	if err != nil {
		s.close()
		return nil, Layout{}, fmt.Errorf("%w: %s: %v", ErrAllocationFailure, path, err)
	}
	if s.header().isClosed() {
		s.close()
		return nil, Layout{}, fmt.Errorf("%w: segment %s already torn down", ErrChannelClosed, path)
	}
	s.header().setEnginePID(os.Getpid())
	s.header().setEngineReady()
	return s, l, nil
}

func isDevShmAvailable() bool {
	info, err := os.Stat("/dev/shm")
	return err == nil && info.IsDir()
}

func mmapFile(file *os.File, size int) ([]byte, error) {
	data, err := syscall.Mmap(int(file.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return data, nil
}

func munmapImpl(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := syscall.Munmap(data); err != nil {
		return fmt.Errorf("munmap failed: %w", err)
	}
	return nil
}
