package decode

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/avhost/av/internal/errors"
)

// WAVDecoder decodes PCM WAV files of 8 to 32 bits
type WAVDecoder struct{}

// Decode implements Decoder
func (WAVDecoder) Decode(r io.ReadSeeker) (Source, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("decode").
			Category(errors.CategoryFileParsing).
			Build()
	}

	divisor, err := intDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, err
	}

	channels := int(decoder.NumChans)
	return &wavSource{
		dec:        decoder,
		sampleRate: int(decoder.SampleRate),
		channels:   channels,
		divisor:    divisor,
		buf: &audio.IntBuffer{
			Format: &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: channels},
		},
	}, nil
}

type wavSource struct {
	dec        *wav.Decoder
	sampleRate int
	channels   int
	divisor    float32
	buf        *audio.IntBuffer
}

func (s *wavSource) SampleRate() int { return s.sampleRate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { return nil }

func (s *wavSource) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.channels
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, err
	}
	if errors.Is(err, io.EOF) {
		err = nil
	}
	n -= n % s.channels
	for i, v := range s.buf.Data[:n] {
		dst[i] = float32(v) / s.divisor
	}
	return n, err
}
