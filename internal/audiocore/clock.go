package audiocore

import "sync/atomic"

// StreamClock counts callbacks since the stream was opened. Time is derived
// from the count so that it is exact for any number of blocks.
type StreamClock struct {
	blocks     atomic.Uint64
	blockSize  int
	sampleRate float64
}

func newStreamClock(sampleRate float64, blockSize int) *StreamClock {
	return &StreamClock{blockSize: blockSize, sampleRate: sampleRate}
}

// Seconds returns stream time in seconds
func (c *StreamClock) Seconds() float64 {
	return float64(c.blocks.Load()) * float64(c.blockSize) / c.sampleRate
}

// Blocks returns the number of completed callbacks
func (c *StreamClock) Blocks() uint64 {
	return c.blocks.Load()
}

// Frames returns the number of frames rendered
func (c *StreamClock) Frames() uint64 {
	return c.blocks.Load() * uint64(c.blockSize)
}

func (c *StreamClock) advance() {
	c.blocks.Add(1)
}
