// Package producer keeps an engine's ring buffer filled from a Source.
package producer

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/logger"
)

// DefaultLag is the look-ahead kept in the ring when none is configured
const DefaultLag = 0.04

// Source renders audio for one block. buf is zeroed and holds
// frames*channels interleaved samples.
type Source interface {
	Fill(buf []float32, channels, frames int)
}

// Ring is the producer side of audiocore.RingBuffer
type Ring interface {
	Ahead() int
	Blocks() int
	BlockSize() int
	Channels() int
	Slot() []float32
	Commit()
}

// RingProvider returns the current ring, nil while no stream is open
type RingProvider func() Ring

// EngineRing follows the ring of e's open stream
func EngineRing(e *audiocore.Engine) RingProvider {
	return func() Ring {
		// a nil *RingBuffer must not become a non-nil Ring
		if r := e.Ring(); r != nil {
			return r
		}
		return nil
	}
}

// Producer fills the ring up to the look-ahead target on a ticker
type Producer struct {
	ring    RingProvider
	source  Source
	lag     float64
	written atomic.Uint64
	log     logger.Logger
}

// GetLogger returns the producer logger
func GetLogger() logger.Logger {
	return logger.Global().Module("producer")
}

// New creates a producer writing source into the rings returned by ring.
// lag is the target look-ahead in seconds; zero selects DefaultLag.
func New(ring RingProvider, source Source, lag float64) *Producer {
	if lag <= 0 {
		lag = DefaultLag
	}
	return &Producer{ring: ring, source: source, lag: lag, log: GetLogger()}
}

// Written returns the number of blocks produced
func (p *Producer) Written() uint64 { return p.written.Load() }

// Target returns the look-ahead in blocks for r: the configured lag
// rounded up to whole blocks, at least one and at most Blocks-2 so the
// producer never writes the slot being read.
func (p *Producer) Target(r Ring, sampleRate float64) int {
	blocks := int(math.Ceil(p.lag * sampleRate / float64(r.BlockSize())))
	return min(max(blocks, 1), max(r.Blocks()-2, 1))
}

// Fill writes blocks until the ring is target blocks ahead and returns
// how many were written
func (p *Producer) Fill(r Ring, sampleRate float64) int {
	target := p.Target(r, sampleRate)
	n := 0
	for r.Ahead() < target {
		slot := r.Slot()
		clear(slot)
		p.source.Fill(slot, r.Channels(), r.BlockSize())
		r.Commit()
		n++
	}
	p.written.Add(uint64(n))
	return n
}

// Run fills the ring every half block period until ctx is done. The ring
// is looked up on every tick so the producer follows reopened streams.
func (p *Producer) Run(ctx context.Context, sampleRate float64, blockSize int) error {
	period := time.Duration(float64(blockSize) / sampleRate * float64(time.Second) / 2)
	ticker := time.NewTicker(max(period, time.Millisecond))
	defer ticker.Stop()

	p.log.Info("producer started",
		logger.Float64("lag", p.lag),
		logger.Duration("tick", period))

	for {
		select {
		case <-ctx.Done():
			p.log.Info("producer stopped", logger.Uint64("blocks", p.written.Load()))
			return nil
		case <-ticker.C:
			if r := p.ring(); r != nil {
				p.Fill(r, sampleRate)
			}
		}
	}
}
