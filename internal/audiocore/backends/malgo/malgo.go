// Package malgo implements audiocore.Backend on top of miniaudio through
// gen2brain/malgo. Streams are opened as playback or duplex devices with
// 32-bit float samples and a fixed period of one block.
package malgo

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// Name is the backend name reported to the engine
const Name = "malgo"

const componentName = "malgo-backend"

// GetLogger returns the malgo backend logger
func GetLogger() logger.Logger {
	return logger.Global().Module("audio").Module("malgo")
}

// Backend implements audiocore.Backend
type Backend struct {
	backends []malgo.Backend
}

// New creates a backend using the platform's preferred host APIs
func New() *Backend {
	return &Backend{backends: platformBackends()}
}

// Name implements audiocore.Backend
func (b *Backend) Name() string { return Name }

// Devices implements audiocore.Backend
func (b *Backend) Devices() ([]audiocore.DeviceInfo, error) {
	ctx, err := initContext(b.backends)
	if err != nil {
		return nil, err
	}
	defer freeContext(ctx)

	devices, _, err := enumerate(ctx)
	return devices, err
}

// OpenStream implements audiocore.Backend. Device indices are resolved
// against a fresh enumeration held by the stream's own context.
func (b *Backend) OpenStream(params audiocore.StreamParams, cb audiocore.Callback) (audiocore.Stream, error) {
	ctx, err := initContext(b.backends)
	if err != nil {
		return nil, err
	}

	devices, ids, err := enumerate(ctx)
	if err != nil {
		freeContext(ctx)
		return nil, err
	}

	out, ok := ids[params.Output.Index]
	if !ok || out.playback == nil || devices[params.Output.Index].Name != params.Output.Name {
		freeContext(ctx)
		return nil, fmt.Errorf("output device %d (%s) not found", params.Output.Index, params.Output.Name)
	}

	deviceType := malgo.Playback
	var in deviceIDs
	if params.Input != nil {
		in, ok = ids[params.Input.Index]
		if !ok || in.capture == nil {
			freeContext(ctx)
			return nil, fmt.Errorf("input device %d (%s) not found", params.Input.Index, params.Input.Name)
		}
		deviceType = malgo.Duplex
	}

	cfg := malgo.DefaultDeviceConfig(deviceType)
	cfg.SampleRate = uint32(params.SampleRate)
	cfg.PeriodSizeInFrames = uint32(params.BlockSize)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(params.OutputChannels)
	cfg.Playback.DeviceID = out.playback.Pointer()
	if deviceType == malgo.Duplex {
		cfg.Capture.Format = malgo.FormatF32
		cfg.Capture.Channels = uint32(params.InputChannels)
		cfg.Capture.DeviceID = in.capture.Pointer()
	}
	cfg.Alsa.NoMMap = 1

	s := &Stream{ctx: ctx, cb: cb, params: params}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		freeContext(ctx)
		return nil, err
	}
	s.device = device

	GetLogger().Debug("malgo device initialized",
		logger.String("output", params.Output.Name),
		logger.Int("sample_rate", int(device.SampleRate())),
		logger.Int("playback_channels", int(device.PlaybackChannels())),
		logger.Int("capture_channels", int(device.CaptureChannels())),
		logger.String("os", runtime.GOOS))

	return s, nil
}

// Stream implements audiocore.Stream for one miniaudio device
type Stream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	params audiocore.StreamParams
	cb     audiocore.Callback

	mu       sync.Mutex
	closed   bool
	enabled  atomic.Bool
	inFlight atomic.Int32
}

// onData runs on the miniaudio thread
func (s *Stream) onData(pOutput, pInput []byte, frameCount uint32) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	out := float32View(pOutput)
	if !s.enabled.Load() {
		clear(out)
		return
	}
	s.cb(out, float32View(pInput), int(frameCount))
}

func (s *Stream) onStop() {
	if s.enabled.Load() {
		GetLogger().Warn("audio device stopped unexpectedly",
			logger.String("output", s.params.Output.Name))
	}
}

// Start implements audiocore.Stream
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.Newf("stream is closed").
			Component(componentName).
			Category(errors.CategoryState).
			Build()
	}
	s.enabled.Store(true)
	if err := s.device.Start(); err != nil {
		s.enabled.Store(false)
		return err
	}
	return nil
}

// Stop implements audiocore.Stream. Callbacks still running when the
// device reports stopped are waited for.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Stream) stopLocked() error {
	if s.closed {
		return nil
	}
	s.enabled.Store(false)
	var err error
	if s.device.IsStarted() {
		err = s.device.Stop()
	}
	for s.inFlight.Load() > 0 {
		runtime.Gosched()
	}
	return err
}

// Close implements audiocore.Stream
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.stopLocked()
	s.device.Uninit()
	freeContext(s.ctx)
	s.closed = true
	return err
}
