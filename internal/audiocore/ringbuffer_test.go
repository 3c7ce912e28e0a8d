package audiocore

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readBlock reads the next block into a fresh slice
func readBlock(r *RingBuffer) []float32 {
	block := make([]float32, r.BlockStep())
	r.ReadBlock(block)
	return block
}

func TestRingBufferSizing(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		blockSize  int
		blocks     int
	}{
		{"44100/256", 44100, 256, 173},
		{"48000/512", 48000, 512, 94},
		{"48000/480", 48000, 480, 101},
		{"8000/8000", 8000, 8000, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRingBuffer(tt.sampleRate, tt.blockSize, 2)
			assert.Equal(t, tt.blocks, r.Blocks())
			assert.Equal(t, tt.blockSize*2, r.BlockStep())

			// one second of audio plus less than one block
			blockTime := float64(tt.blockSize) / tt.sampleRate
			assert.Greater(t, r.Lag(), 1.0)
			assert.LessOrEqual(t, r.Lag()-1.0, blockTime+1e-12)
		})
	}
}

func TestRingBufferRoundTrip(t *testing.T) {
	r := NewRingBuffer(1000, 100, 2)
	require.Equal(t, 11, r.Blocks())

	for b := range r.Blocks() {
		block := make([]float32, r.BlockStep())
		for i := range block {
			block[i] = float32(b*1000 + i)
		}
		r.WriteBlock(block)
	}
	assert.Equal(t, r.Blocks(), r.Ahead())
	assert.Equal(t, 0, r.Free())

	for b := range r.Blocks() {
		got := readBlock(r)
		require.Len(t, got, r.BlockStep())
		for i, v := range got {
			if v != float32(b*1000+i) {
				t.Fatalf("block %d sample %d: got %v", b, i, v)
			}
		}
	}
	assert.Equal(t, 0, r.Ahead())
	assert.Zero(t, r.Underruns())
	assert.Equal(t, 0, r.BlockRead())
}

func TestRingBufferWriteBlockLength(t *testing.T) {
	r := NewRingBuffer(1000, 4, 1)
	r.WriteBlock([]float32{1, 1, 1, 1, 9, 9})
	assert.Equal(t, []float32{1, 1, 1, 1}, readBlock(r))

	// refill every slot with ones, then a short write must clear the tail
	for range r.Blocks() - 1 {
		r.WriteBlock([]float32{1, 1, 1, 1})
		readBlock(r)
	}
	r.WriteBlock([]float32{0.5})
	assert.Equal(t, 0, r.BlockRead())
	assert.Equal(t, []float32{0.5, 0, 0, 0}, readBlock(r))
}

func TestRingBufferUnderrun(t *testing.T) {
	r := NewRingBuffer(1000, 10, 1)

	stale := readBlock(r)
	assert.Equal(t, make([]float32, 10), stale)
	assert.Equal(t, uint64(1), r.Underruns())
	assert.Equal(t, 1, r.BlockRead())

	// the producer resumes at the consumer's position
	block := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	r.WriteBlock(block)
	assert.Equal(t, 1, r.Ahead())
	assert.Equal(t, block, readBlock(r))
	assert.Equal(t, uint64(1), r.Underruns())

	// underruns replay the last block played
	assert.Equal(t, block, readBlock(r))
	assert.Equal(t, block, readBlock(r))
	assert.Equal(t, uint64(3), r.Underruns())
	assert.Equal(t, 0, r.Ahead())
}

func TestRingBufferReadBlockShortDestination(t *testing.T) {
	r := NewRingBuffer(1000, 4, 1)
	r.WriteBlock([]float32{1, 2, 3, 4})

	dst := make([]float32, 2)
	assert.Equal(t, 2, r.ReadBlock(dst))
	assert.Equal(t, []float32{1, 2}, dst)
	assert.Equal(t, 1, r.BlockRead())
}

// Run with -race: the producer trusts Free and the consumer reads only
// published blocks, so no slot may be written while it is copied out.
func TestRingBufferConcurrentProducerConsumer(t *testing.T) {
	const total = 5000
	r := NewRingBuffer(1000, 16, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block := make([]float32, r.BlockStep())
		for b := 0; b < total; {
			if r.Free() == 0 {
				runtime.Gosched()
				continue
			}
			for i := range block {
				block[i] = float32(b)
			}
			r.WriteBlock(block)
			b++
		}
	}()

	dst := make([]float32, r.BlockStep())
	for b := 0; b < total; {
		if r.Ahead() == 0 {
			runtime.Gosched()
			continue
		}
		r.ReadBlock(dst)
		for i, v := range dst {
			if v != float32(b) {
				t.Fatalf("block %d sample %d: got %v, torn or out of order", b, i, v)
			}
		}
		b++
	}
	wg.Wait()
	assert.Zero(t, r.Underruns())
}

func TestRingBufferCursorsWrap(t *testing.T) {
	r := NewRingBuffer(1000, 100, 1)
	for range 3 * r.Blocks() {
		r.WriteBlock(nil)
		readBlock(r)
	}
	assert.Equal(t, 0, r.BlockRead())
	assert.Equal(t, 0, r.BlockWrite())
	assert.Zero(t, r.Underruns())

	r.WriteBlock(nil)
	r.WriteBlock(nil)
	assert.Equal(t, 2, r.BlockWrite())
	assert.Equal(t, 2, r.Ahead())
	assert.Equal(t, r.Blocks()-2, r.Free())
}
