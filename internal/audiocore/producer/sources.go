package producer

import (
	"io"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/decode"
	"github.com/avhost/av/internal/audiocore/synth"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// NewSource builds the source selected in settings for a stream at
// sampleRate
func NewSource(settings conf.ProducerSettings, sampleRate float64) (Source, error) {
	switch settings.Source {
	case conf.SourceSilence:
		return Silence{}, nil
	case conf.SourceTone:
		return NewTone(sampleRate, settings.Frequency, settings.Gain)
	case conf.SourceFile:
		return NewFileSource(settings.File, sampleRate, settings.Gain, settings.Loop)
	default:
		return nil, errors.Newf("unknown producer source %q", settings.Source).
			Component("producer").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Silence produces zeros
type Silence struct{}

// Fill implements Source
func (Silence) Fill([]float32, int, int) {}

// Tone is a continuous sine
type Tone struct {
	osc audiocore.Processor
}

// NewTone creates a sine source
func NewTone(sampleRate, freq, gain float64) (*Tone, error) {
	osc, err := synth.New(synth.WaveSine, sampleRate, freq, gain)
	if err != nil {
		return nil, err
	}
	return &Tone{osc: osc}, nil
}

// Fill implements Source
func (t *Tone) Fill(buf []float32, channels, frames int) {
	t.osc.Process(buf, channels, frames)
}

// FileSource plays a decoded file, resampled to the stream rate with
// linear interpolation. After the last frame it plays silence, or starts
// over when looping.
type FileSource struct {
	path     string
	registry *decode.Registry
	src      decode.Source
	outRate  float64
	gain     float32
	loop     bool

	step  float64 // input frames per output frame
	frac  float64
	a, b  []float32 // frames interpolated between
	chunk []float32
	pos   int  // next unread sample in chunk
	n     int  // valid samples in chunk
	tail  bool // b is the silence after the last frame
	ended bool
}

// NewFileSource opens path with the default decoder registry
func NewFileSource(path string, sampleRate, gain float64, loop bool) (*FileSource, error) {
	fs := &FileSource{
		path:     path,
		registry: decode.DefaultRegistry(),
		outRate:  sampleRate,
		gain:     float32(gain),
		loop:     loop,
	}
	if err := fs.open(); err != nil {
		return nil, err
	}

	ch := fs.src.Channels()
	fs.a = make([]float32, ch)
	fs.b = make([]float32, ch)
	if fs.next(fs.a) {
		fs.fetch()
	} else {
		fs.ended = true
	}

	GetLogger().Info("playing audio file",
		logger.String("path", path),
		logger.Int("sample_rate", fs.src.SampleRate()),
		logger.Int("channels", ch),
		logger.Bool("loop", loop))
	return fs, nil
}

// open starts decoding from the beginning of the file
func (f *FileSource) open() error {
	src, err := f.registry.Open(f.path)
	if err != nil {
		return err
	}
	if f.src != nil && src.Channels() != f.src.Channels() {
		_ = src.Close()
		return errors.Newf("audio file changed channel count").
			Component("producer").
			Category(errors.CategoryFileParsing).
			Context("path", f.path).
			Build()
	}
	f.src = src
	f.step = float64(src.SampleRate()) / f.outRate
	if f.chunk == nil {
		f.chunk = make([]float32, 4096*src.Channels())
	}
	f.pos, f.n = 0, 0
	return nil
}

// rewind reopens the file for looping
func (f *FileSource) rewind() bool {
	_ = f.src.Close()
	if err := f.open(); err != nil {
		GetLogger().Warn("failed to restart audio file", logger.String("path", f.path), logger.Error(err))
		return false
	}
	return true
}

// Ended reports whether a non-looping file has finished
func (f *FileSource) Ended() bool { return f.ended }

// Close releases the decoder
func (f *FileSource) Close() error {
	if f.src == nil {
		return nil
	}
	return f.src.Close()
}

// next reads one input frame into dst
func (f *FileSource) next(dst []float32) bool {
	if f.pos >= f.n {
		n, err := f.src.ReadSamples(f.chunk)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				GetLogger().Warn("audio file decode error", logger.String("path", f.path), logger.Error(err))
			}
			return false
		}
		f.pos, f.n = 0, n
	}
	copy(dst, f.chunk[f.pos:f.pos+len(dst)])
	f.pos += len(dst)
	return true
}

// fetch reads the frame following a into b
func (f *FileSource) fetch() {
	if f.next(f.b) {
		return
	}
	if f.loop && f.rewind() && f.next(f.b) {
		return
	}
	clear(f.b)
	f.tail = true
}

// advance moves to the next input frame
func (f *FileSource) advance() {
	f.a, f.b = f.b, f.a
	if f.tail {
		f.ended = true
		return
	}
	f.fetch()
}

// Fill implements Source
func (f *FileSource) Fill(buf []float32, channels, frames int) {
	if f.ended {
		return
	}
	in := len(f.a)
	for i := range frames {
		out := buf[i*channels : (i+1)*channels]
		frac := float32(f.frac)
		if channels == 1 && in > 1 {
			var sum float32
			for c := range in {
				sum += f.a[c] + (f.b[c]-f.a[c])*frac
			}
			out[0] = sum / float32(in) * f.gain
		} else {
			for c := range channels {
				k := c % in
				out[c] = (f.a[k] + (f.b[k]-f.a[k])*frac) * f.gain
			}
		}

		f.frac += f.step
		for f.frac >= 1 && !f.ended {
			f.frac--
			f.advance()
		}
		if f.ended {
			return
		}
	}
}
