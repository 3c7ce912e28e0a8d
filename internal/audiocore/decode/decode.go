// Package decode turns audio files into streams of interleaved float32
// samples for the producer loop.
package decode

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/avhost/av/internal/errors"
)

// Source yields interleaved samples in [-1, 1]
type Source interface {
	// SampleRate of the decoded stream in Hz
	SampleRate() int
	// Channels in each frame
	Channels() int
	// ReadSamples fills dst and returns the number of samples written,
	// always a whole number of frames. The end of the stream is reported
	// as 0, io.EOF.
	ReadSamples(dst []float32) (int, error)
	// Close releases the underlying reader
	Close() error
}

// Decoder constructs a Source from an open file
type Decoder interface {
	Decode(r io.ReadSeeker) (Source, error)
}

// Registry maps file extensions to decoders
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// DefaultRegistry knows wav, mp3, ogg and flac
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", WAVDecoder{})
	r.Register("mp3", MP3Decoder{})
	r.Register("ogg", VorbisDecoder{})
	r.Register("flac", FLACDecoder{})
	return r
}

// Register associates ext, without dot, with d
func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[strings.ToLower(ext)] = d
}

// Get returns the decoder for ext
func (r *Registry) Get(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return d, ok
}

// Formats lists registered extensions in sorted order
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]string, 0, len(r.codecs))
	for ext := range r.codecs {
		formats = append(formats, ext)
	}
	slices.Sort(formats)
	return formats
}

// Open decodes the file at path, choosing the decoder by extension. The
// returned Source owns the file.
func (r *Registry) Open(path string) (Source, error) {
	ext := filepath.Ext(path)
	d, ok := r.Get(ext)
	if !ok {
		return nil, errors.Newf("unsupported audio format %q", ext).
			Component("decode").
			Category(errors.CategoryValidation).
			Context("path", path).
			Context("supported", strings.Join(r.Formats(), ",")).
			Build()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("decode").
			Category(errors.CategoryFileIO).
			Context("operation", "open_audio_file").
			Build()
	}

	src, err := d.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.New(err).
			Component("decode").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Context("format", ext).
			Build()
	}
	return &fileSource{Source: src, file: f}, nil
}

// Open decodes path with DefaultRegistry
func Open(path string) (Source, error) {
	return DefaultRegistry().Open(path)
}

// fileSource closes the file after the decoder
type fileSource struct {
	Source
	file *os.File
}

func (s *fileSource) Close() error {
	err := s.Source.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// intDivisor returns the full scale value for signed PCM of bitDepth
func intDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128, nil
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	default:
		return 0, errors.Newf("unsupported bit depth: %d", bitDepth).
			Component("decode").
			Category(errors.CategoryValidation).
			Build()
	}
}
