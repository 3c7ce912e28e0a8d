// Package export writes rendered or captured audio to WAV files.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/avhost/av/internal/errors"
)

// WAVWriter streams interleaved float32 blocks into a PCM WAV file.
// It is not safe for concurrent use.
type WAVWriter struct {
	path     string
	file     *os.File
	enc      *wav.Encoder
	buf      *audio.IntBuffer
	scale    float64
	channels int
	frames   int64
	closed   bool
}

// NewWAVWriter creates path, including parent directories
func NewWAVWriter(path string, sampleRate, channels, bitDepth int) (*WAVWriter, error) {
	if channels < 1 {
		return nil, errors.Newf("invalid channel count: %d", channels).
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, errors.Newf("unsupported bit depth: %d", bitDepth).
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.New(fmt.Errorf("failed to create directories: %w", err)).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create file: %w", err)).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	return &WAVWriter{
		path: path,
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, bitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
			SourceBitDepth: bitDepth,
		},
		scale:    math.Exp2(float64(bitDepth-1)) - 1,
		channels: channels,
	}, nil
}

// Path returns the output file path
func (w *WAVWriter) Path() string { return w.path }

// Frames returns the number of frames written
func (w *WAVWriter) Frames() int64 { return w.frames }

// Write appends interleaved samples, clipping to [-1, 1]
func (w *WAVWriter) Write(samples []float32) error {
	if w.closed {
		return errors.Newf("wav writer is closed").
			Component("export").
			Category(errors.CategoryState).
			Build()
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		v := min(max(float64(s), -1), 1)
		w.buf.Data[i] = int(math.Round(v * w.scale))
	}

	if err := w.enc.Write(w.buf); err != nil {
		return errors.New(fmt.Errorf("failed to write to WAV encoder: %w", err)).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", w.path).
			Build()
	}
	w.frames += int64(len(samples) / w.channels)
	return nil
}

// Close finalizes the header and closes the file
func (w *WAVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.enc.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", w.path).
			Build()
	}
	return nil
}
