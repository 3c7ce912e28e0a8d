// Package virtual provides an in-process audio backend. Streams either run
// on a ticker at the block period or advance only when Step is called,
// which makes callback counts deterministic in tests and offline renders.
package virtual

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/errors"
)

// Name is the backend name reported to the engine
const Name = "virtual"

// SignalFunc fills buf with frames*channels interleaved samples
type SignalFunc func(buf []float32, channels, frames int)

// SinkFunc receives each rendered output block on the callback goroutine.
// buf is reused after the call returns.
type SinkFunc func(buf []float32, channels, frames int)

// Config describes the simulated host
type Config struct {
	// Devices to report. nil selects DefaultDevices; an empty non-nil
	// slice simulates a host without audio devices.
	Devices []audiocore.DeviceInfo
	// Manual streams only advance through Stream.Step
	Manual bool
	// Input generates capture data, silence when nil
	Input SignalFunc
	// Sink receives output blocks, discarded when nil
	Sink SinkFunc
}

// DefaultDevices returns a single duplex device that is the default in
// both directions
func DefaultDevices() []audiocore.DeviceInfo {
	return []audiocore.DeviceInfo{{
		Index:             0,
		Name:              "Virtual Duplex",
		MaxInputChannels:  2,
		MaxOutputChannels: 2,
		MaxDuplexChannels: 2,
		IsDefaultInput:    true,
		IsDefaultOutput:   true,
	}}
}

// Backend implements audiocore.Backend
type Backend struct {
	cfg Config

	mu      sync.Mutex
	devices []audiocore.DeviceInfo
	openErr error
	last    *Stream
	live    atomic.Int32
	opened  atomic.Int32
}

// New creates a virtual backend
func New(cfg Config) *Backend {
	devices := cfg.Devices
	if devices == nil {
		devices = DefaultDevices()
	}
	return &Backend{cfg: cfg, devices: slices.Clone(devices)}
}

// Name implements audiocore.Backend
func (b *Backend) Name() string { return Name }

// Devices implements audiocore.Backend
func (b *Backend) Devices() ([]audiocore.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.devices), nil
}

// SetDevices replaces the reported device list
func (b *Backend) SetDevices(devices []audiocore.DeviceInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = slices.Clone(devices)
}

// FailOpen makes subsequent OpenStream calls fail with err. nil clears it.
func (b *Backend) FailOpen(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// LiveStreams returns the number of opened and not yet closed streams
func (b *Backend) LiveStreams() int { return int(b.live.Load()) }

// OpenedStreams returns the number of streams ever opened
func (b *Backend) OpenedStreams() int { return int(b.opened.Load()) }

// Last returns the most recently opened stream
func (b *Backend) Last() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// OpenStream implements audiocore.Backend
func (b *Backend) OpenStream(params audiocore.StreamParams, cb audiocore.Callback) (audiocore.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openErr != nil {
		return nil, b.openErr
	}
	if !slices.ContainsFunc(b.devices, func(d audiocore.DeviceInfo) bool { return d.Index == params.Output.Index }) {
		return nil, errors.Newf("virtual device %d is gone", params.Output.Index).
			Component("virtual-backend").
			Category(errors.CategoryAudioDevice).
			Build()
	}

	s := &Stream{
		backend: b,
		params:  params,
		cb:      cb,
		out:     make([]float32, params.BlockSize*params.OutputChannels),
		period:  time.Duration(float64(params.BlockSize) / params.SampleRate * float64(time.Second)),
	}
	if params.Input != nil && params.InputChannels > 0 {
		s.in = make([]float32, params.BlockSize*params.InputChannels)
	}

	b.last = s
	b.live.Add(1)
	b.opened.Add(1)
	return s, nil
}

// Stream implements audiocore.Stream
type Stream struct {
	backend *Backend
	params  audiocore.StreamParams
	cb      audiocore.Callback
	out     []float32
	in      []float32
	period  time.Duration

	// held for the duration of every callback
	mu      sync.Mutex
	running bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}

	callbacks atomic.Uint64
}

// Params returns the parameters the stream was opened with
func (s *Stream) Params() audiocore.StreamParams { return s.params }

// Callbacks returns how many callbacks have run
func (s *Stream) Callbacks() uint64 { return s.callbacks.Load() }

// Running reports whether callbacks are enabled
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start implements audiocore.Stream
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.Newf("virtual stream is closed").
			Component("virtual-backend").
			Category(errors.CategoryState).
			Build()
	}
	if s.running {
		return nil
	}
	s.running = true

	if !s.backend.cfg.Manual {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.run(s.stop, s.done)
	}
	return nil
}

func (s *Stream) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.running {
				s.callOnce()
			}
			s.mu.Unlock()
		}
	}
}

// Step runs up to n callbacks synchronously and returns how many ran.
// Nothing runs unless the stream is started.
func (s *Stream) Step(n int) int {
	ran := 0
	for range n {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			break
		}
		s.callOnce()
		s.mu.Unlock()
		ran++
	}
	return ran
}

// callOnce must be called with s.mu held
func (s *Stream) callOnce() {
	frames := s.params.BlockSize
	cfg := &s.backend.cfg
	if s.in != nil {
		if cfg.Input != nil {
			cfg.Input(s.in, s.params.InputChannels, frames)
		} else {
			clear(s.in)
		}
	}
	s.cb(s.out, s.in, frames)
	s.callbacks.Add(1)
	if cfg.Sink != nil {
		cfg.Sink(s.out, s.params.OutputChannels, frames)
	}
}

// Stop implements audiocore.Stream. It returns once no callback is in
// flight.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

// Close implements audiocore.Stream
func (s *Stream) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.backend.live.Add(-1)
	}
	return nil
}
