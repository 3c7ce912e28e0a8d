// Package backends selects an audiocore.Backend by name and maps user
// settings onto engine options.
package backends

import (
	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/backends/malgo"
	"github.com/avhost/av/internal/audiocore/backends/virtual"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// New returns the backend named in audio.backend. "auto" probes the
// hardware backend and falls back to the virtual one when it reports no
// devices.
func New(name string) (audiocore.Backend, error) {
	log := logger.Global().Module("audio")

	switch name {
	case conf.BackendMalgo:
		return malgo.New(), nil
	case conf.BackendVirtual:
		return virtual.New(virtual.Config{}), nil
	case conf.BackendAuto, "":
		hw := malgo.New()
		devices, err := hw.Devices()
		if err == nil && len(devices) > 0 {
			return hw, nil
		}
		log.Warn("no hardware audio devices, using virtual backend",
			logger.Int("devices", len(devices)),
			logger.Error(err))
		return virtual.New(virtual.Config{}), nil
	default:
		return nil, errors.Newf("unknown audio backend %q", name).
			Component("audiocore").
			Category(errors.CategoryConfiguration).
			Context("backend", name).
			Build()
	}
}

// StreamConfig maps audio settings onto a stream configuration
func StreamConfig(a *conf.AudioSettings) audiocore.StreamConfig {
	return audiocore.StreamConfig{
		SampleRate:     a.SampleRate,
		BlockSize:      a.BlockSize,
		InputDevice:    a.InputDevice,
		OutputDevice:   a.OutputDevice,
		InputChannels:  a.InputChannels,
		OutputChannels: a.OutputChannels,
	}
}

// EngineOptions maps audio settings onto engine options. observer may be nil.
func EngineOptions(a *conf.AudioSettings, observer audiocore.SessionObserver) audiocore.Options {
	opts := audiocore.Options{
		CommandBufferSize: a.CommandBufferSize,
		MaxVoices:         a.MaxVoices,
		MonitorInterval:   a.Monitor.Interval,
		Observer:          observer,
	}
	if a.InputTap.Enabled {
		opts.InputTapSeconds = a.InputTap.Seconds
	}
	return opts
}
