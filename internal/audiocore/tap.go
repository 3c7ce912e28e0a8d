package audiocore

import (
	"sync/atomic"
	"unsafe"

	"github.com/smallnest/ringbuffer"

	"github.com/avhost/av/internal/errors"
)

const bytesPerSample = 4

// InputTap copies hardware input out of the real-time thread. The callback
// writes with TryWrite so it never waits on the reader; input that does not
// fit is counted and dropped. Capacity is a whole number of frames and all
// writes and reads are whole frames, so partial writes stay frame aligned.
type InputTap struct {
	rb         *ringbuffer.RingBuffer
	channels   int
	sampleRate float64
	dropped    atomic.Uint64
}

// NewInputTap holds seconds of input at sampleRate with channels channels
func NewInputTap(seconds, sampleRate float64, channels int) *InputTap {
	frames := max(int(seconds*sampleRate), 1)
	return &InputTap{
		rb:         ringbuffer.New(frames * channels * bytesPerSample),
		channels:   channels,
		sampleRate: sampleRate,
	}
}

// Channels returns the interleaved channel count of tapped samples
func (t *InputTap) Channels() int { return t.channels }

// SampleRate returns the rate of tapped samples
func (t *InputTap) SampleRate() float64 { return t.sampleRate }

// Dropped returns the bytes discarded because the tap was full or busy
func (t *InputTap) Dropped() uint64 { return t.dropped.Load() }

// Buffered returns the number of samples waiting to be read
func (t *InputTap) Buffered() int { return t.rb.Length() / bytesPerSample }

// write runs on the real-time thread
func (t *InputTap) write(input []float32) {
	if len(input) == 0 {
		return
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(input))), len(input)*bytesPerSample)
	n, _ := t.rb.TryWrite(b)
	if n < len(b) {
		t.dropped.Add(uint64(len(b) - n))
	}
}

// Read copies up to len(dst) buffered samples into dst and returns the
// count. dst is truncated to whole frames. An empty tap returns 0, nil.
func (t *InputTap) Read(dst []float32) (int, error) {
	dst = dst[:len(dst)-len(dst)%t.channels]
	if len(dst) == 0 {
		return 0, nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(dst))), len(dst)*bytesPerSample)
	n, err := t.rb.Read(b)
	if err != nil {
		if errors.Is(err, ringbuffer.ErrIsEmpty) {
			return 0, nil
		}
		return 0, errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryBuffer).
			Context("operation", "input_tap_read").
			Build()
	}
	return n / bytesPerSample, nil
}
