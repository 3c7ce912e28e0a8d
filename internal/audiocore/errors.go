package audiocore

import (
	"github.com/avhost/av/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

var (
	// ErrNoDevice is returned when the backend reports no audio devices at all
	ErrNoDevice = errors.Newf("no audio devices found").
		Component(ComponentAudioCore).
		Category(errors.CategoryAudioDevice).
		Context("resource", "audio_device").
		Build()

	// ErrNoDefaultDevice is returned when no device qualifies as the default
	// for the requested direction
	ErrNoDefaultDevice = errors.Newf("no default audio device").
		Component(ComponentAudioCore).
		Category(errors.CategoryNotFound).
		Context("resource", "audio_device").
		Build()

	// ErrInvalidDevice is returned for unknown device indices or devices
	// lacking channels in the requested direction
	ErrInvalidDevice = errors.Newf("invalid audio device").
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "audio_device").
		Build()

	// ErrDeviceOpen wraps backend failures while opening or starting a stream
	ErrDeviceOpen = errors.Newf("failed to open audio stream").
		Component(ComponentAudioCore).
		Category(errors.CategoryAudioDevice).
		Context("operation", "open_stream").
		Build()

	// ErrChannelFull is returned by Push when the command channel lacks space
	ErrChannelFull = errors.Newf("command channel full").
		Component(ComponentAudioCore).
		Category(errors.CategoryBuffer).
		Context("resource", "command_channel").
		Build()

	// ErrInvalidCommand is returned by Push for opcodes that cannot be
	// sent as records
	ErrInvalidCommand = errors.Newf("invalid command record").
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "command_channel").
		Build()

	// ErrInvalidState is returned for lifecycle calls made in the wrong state
	ErrInvalidState = errors.Newf("invalid stream state").
		Component(ComponentAudioCore).
		Category(errors.CategoryState).
		Context("resource", "audio_stream").
		Build()

	// ErrInvalidConfig is returned for out-of-range stream parameters
	ErrInvalidConfig = errors.Newf("invalid stream configuration").
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "stream_config").
		Build()

	// ErrVoiceLimit is returned when no code slot is free for staging a processor
	ErrVoiceLimit = errors.Newf("no free code slot").
		Component(ComponentAudioCore).
		Category(errors.CategoryLimit).
		Context("resource", "code_slots").
		Build()
)
