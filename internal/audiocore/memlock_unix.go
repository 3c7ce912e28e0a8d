//go:build unix

package audiocore

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/avhost/av/internal/logger"
)

// lockMemory pins bufs in RAM so the real-time thread never takes a page
// fault on them. Locking is best effort: RLIMIT_MEMLOCK is often small, and
// a buffer that cannot be locked still works. The returned buffers are the
// ones that were locked and must be passed to unlockMemory.
func lockMemory(bufs ...[]byte) [][]byte {
	locked := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		if err := unix.Mlock(b); err != nil {
			GetLogger().Debug("could not lock stream buffer in memory",
				logger.Int("bytes", len(b)),
				logger.Error(err))
			continue
		}
		locked = append(locked, b)
	}
	return locked
}

// unlockMemory releases buffers returned by lockMemory
func unlockMemory(locked [][]byte) {
	for _, b := range locked {
		if err := unix.Munlock(b); err != nil {
			GetLogger().Debug("could not unlock stream buffer", logger.Error(err))
		}
	}
}

// float32Bytes views samples as raw bytes
func float32Bytes(samples []float32) []byte {
	if len(samples) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(samples))), len(samples)*bytesPerSample)
}
