package audiocore

import "fmt"

// Device selectors accepted in StreamConfig
const (
	DefaultDevice = -1 // backend default for the direction
	NoDevice      = -2 // direction disabled, input only
)

// Stream defaults applied to zero-valued StreamConfig fields
const (
	DefaultSampleRate        = 44100.0
	DefaultBlockSize         = 256
	DefaultChannels          = 2
	DefaultCommandBufferSize = 1024 * 1024
	DefaultMaxVoices         = 64
	DefaultCodeSlots         = 64
)

// DeviceInfo describes one device as reported by a Backend
type DeviceInfo struct {
	Index             int    `json:"index"`
	Name              string `json:"name"`
	MaxInputChannels  int    `json:"maxInputChannels"`
	MaxOutputChannels int    `json:"maxOutputChannels"`
	MaxDuplexChannels int    `json:"maxDuplexChannels"`
	IsDefaultInput    bool   `json:"isDefaultInput"`
	IsDefaultOutput   bool   `json:"isDefaultOutput"`
}

// String returns a short human readable description
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%d: %s (%d in, %d out, %d duplex)",
		d.Index, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.MaxDuplexChannels)
}

// StreamConfig holds the requested stream parameters. Zero sample rate,
// block size and channel counts select defaults. Device fields are
// literal backend indices; use DefaultDevice or NoDevice to select.
type StreamConfig struct {
	SampleRate     float64 `json:"sampleRate"`
	BlockSize      int     `json:"blockSize"`
	InputDevice    int     `json:"inputDevice"`
	OutputDevice   int     `json:"outputDevice"`
	InputChannels  int     `json:"inputChannels"`
	OutputChannels int     `json:"outputChannels"`
}

// DefaultStreamConfig returns the configuration used when Open is called
// on an engine that was never configured.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		SampleRate:     DefaultSampleRate,
		BlockSize:      DefaultBlockSize,
		InputDevice:    DefaultDevice,
		OutputDevice:   DefaultDevice,
		InputChannels:  DefaultChannels,
		OutputChannels: DefaultChannels,
	}
}

// withDefaults fills zero fields. Device indices of 0 are real devices, so
// only sample rate, block size and channel counts are filled.
func (c StreamConfig) withDefaults() StreamConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.InputChannels == 0 {
		c.InputChannels = DefaultChannels
	}
	if c.OutputChannels == 0 {
		c.OutputChannels = DefaultChannels
	}
	return c
}

// State is the lifecycle state of an Engine
type State int32

const (
	StateClosed State = iota
	StateConfigured
	StateOpened
	StateRunning
)

// String returns the lowercase state name
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConfigured:
		return "configured"
	case StateOpened:
		return "opened"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}
