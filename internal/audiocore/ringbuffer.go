package audiocore

import (
	"sync/atomic"
)

// RingBuffer is a single-producer single-consumer ring of interleaved audio
// blocks. One block holds BlockSize frames of Channels samples. The producer
// writes blocks ahead of the consumer; the consumer reads exactly one block
// per callback whether or not a fresh one is available.
//
// Cursors are monotonic block counters. The slot index is the counter
// modulo Blocks. The producer stores its counter after the samples are in
// place and the consumer loads it before reading, which orders the sample
// writes before the consumer's reads. The consumer stores its counter only
// after the block has been copied out, so a slot counted by Free is never
// one that is still being read.
//
// On underrun the consumer replays its own copy of the last block it
// played. It never reads a slot at or past the write cursor, which is
// where a late producer may be writing.
type RingBuffer struct {
	data       []float32
	blocks     int
	blockSize  int
	channels   int
	blockStep  int
	sampleRate float64

	read      atomic.Uint64
	write     atomic.Uint64
	underruns atomic.Uint64

	last []float32 // consumer only
}

// NewRingBuffer sizes the ring to hold one second of audio plus one block:
// blocks = floor(sampleRate/blockSize) + 1.
func NewRingBuffer(sampleRate float64, blockSize, channels int) *RingBuffer {
	blocks := int(sampleRate/float64(blockSize)) + 1
	step := blockSize * channels
	return &RingBuffer{
		data:       make([]float32, blocks*step),
		last:       make([]float32, step),
		blocks:     blocks,
		blockSize:  blockSize,
		channels:   channels,
		blockStep:  step,
		sampleRate: sampleRate,
	}
}

// Blocks returns the number of block slots
func (r *RingBuffer) Blocks() int { return r.blocks }

// BlockSize returns frames per block
func (r *RingBuffer) BlockSize() int { return r.blockSize }

// Channels returns the interleaved channel count
func (r *RingBuffer) Channels() int { return r.channels }

// BlockStep returns samples per block
func (r *RingBuffer) BlockStep() int { return r.blockStep }

// Lag returns the duration in seconds covered by the whole ring
func (r *RingBuffer) Lag() float64 {
	return float64(r.blocks) * float64(r.blockSize) / r.sampleRate
}

// BlockRead returns the slot the consumer reads next
func (r *RingBuffer) BlockRead() int {
	return int(r.read.Load() % uint64(r.blocks))
}

// BlockWrite returns the slot the producer writes next
func (r *RingBuffer) BlockWrite() int {
	return int(r.write.Load() % uint64(r.blocks))
}

// Ahead returns how many written blocks the consumer has not read yet
func (r *RingBuffer) Ahead() int {
	w, rd := r.write.Load(), r.read.Load()
	if w <= rd {
		return 0
	}
	return int(w - rd)
}

// Free returns how many blocks the producer may write before it would
// overwrite a block the consumer has not read
func (r *RingBuffer) Free() int {
	return r.blocks - r.Ahead()
}

// Underruns returns how many reads found no fresh block
func (r *RingBuffer) Underruns() uint64 {
	return r.underruns.Load()
}

// Slot returns the writable view of the producer's next block. The
// producer fills it and calls Commit. If the consumer has overtaken the
// producer after an underrun, the write cursor first jumps to the read
// cursor so the new block is heard next. That slot is safe to write: a
// consumer at or past the write cursor replays its own copy instead.
//
// Producer only.
func (r *RingBuffer) Slot() []float32 {
	w, rd := r.write.Load(), r.read.Load()
	if w < rd {
		w = rd
		r.write.Store(w)
	}
	i := int(w%uint64(r.blocks)) * r.blockStep
	return r.data[i : i+r.blockStep : i+r.blockStep]
}

// Commit publishes the block obtained from Slot.
//
// Producer only.
func (r *RingBuffer) Commit() {
	r.write.Add(1)
}

// WriteBlock copies one block into the ring and publishes it. Short input
// is padded with silence, excess is ignored.
//
// Producer only.
func (r *RingBuffer) WriteBlock(samples []float32) {
	slot := r.Slot()
	n := copy(slot, samples)
	clear(slot[n:])
	r.Commit()
}

// ReadBlock copies the next block into dst, advances the read cursor and
// returns the number of samples copied. When the producer has not supplied
// a fresh block the last block played is repeated and an underrun is
// counted.
//
// Consumer only.
func (r *RingBuffer) ReadBlock(dst []float32) int {
	rd := r.read.Load()
	if r.write.Load() <= rd {
		r.underruns.Add(1)
		n := copy(dst, r.last)
		r.read.Store(rd + 1)
		return n
	}

	i := int(rd%uint64(r.blocks)) * r.blockStep
	block := r.data[i : i+r.blockStep]
	n := copy(dst, block)
	copy(r.last, block)
	r.read.Store(rd + 1)
	return n
}
