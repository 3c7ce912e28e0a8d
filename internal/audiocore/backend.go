package audiocore

// Callback is invoked by a Backend once per hardware period. output holds
// frames*outputChannels interleaved samples and must be fully written.
// input is nil for output-only streams.
type Callback func(output, input []float32, frames int)

// StreamParams is a fully resolved stream request handed to a Backend
type StreamParams struct {
	SampleRate     float64
	BlockSize      int
	Output         DeviceInfo
	OutputChannels int
	Input          *DeviceInfo // nil for output-only streams
	InputChannels  int
}

// Stream is an opened hardware stream
type Stream interface {
	// Start begins invoking the callback
	Start() error
	// Stop halts callbacks and returns only once no callback is in flight
	Stop() error
	// Close stops the stream if needed and releases backend resources
	Close() error
}

// Backend abstracts the audio host API
type Backend interface {
	// Name identifies the backend in logs and the API
	Name() string
	// Devices returns all devices ordered by index
	Devices() ([]DeviceInfo, error)
	// OpenStream opens but does not start a stream
	OpenStream(params StreamParams, cb Callback) (Stream, error)
}
