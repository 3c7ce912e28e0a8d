package decode

import (
	"encoding/binary"
	"io"

	"github.com/tphakala/flac"
)

// FLACDecoder decodes FLAC
type FLACDecoder struct{}

// Decode implements Decoder
func (FLACDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := flac.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	divisor, err := intDivisor(dec.BitsPerSample)
	if err != nil {
		return nil, err
	}
	return &flacSource{dec: dec, divisor: divisor}, nil
}

type flacSource struct {
	dec     *flac.Decoder
	divisor float32
	frame   []byte // undelivered bytes of the current FLAC frame
}

func (s *flacSource) SampleRate() int { return s.dec.SampleRate }
func (s *flacSource) Channels() int   { return s.dec.NChannels }
func (s *flacSource) Close() error    { return nil }

func (s *flacSource) ReadSamples(dst []float32) (int, error) {
	bytesPerSample := s.dec.BitsPerSample / 8
	frameBytes := bytesPerSample * s.dec.NChannels
	dst = dst[:len(dst)-len(dst)%s.dec.NChannels]

	n := 0
	for n < len(dst) {
		if len(s.frame) == 0 {
			frame, err := s.dec.Next()
			if err != nil {
				if n > 0 && err == io.EOF {
					return n, nil
				}
				return n, err
			}
			s.frame = frame
		}

		for len(s.frame) >= frameBytes && n < len(dst) {
			for range s.dec.NChannels {
				dst[n] = float32(s.sample(s.frame, bytesPerSample)) / s.divisor
				s.frame = s.frame[bytesPerSample:]
				n++
			}
		}
		if len(s.frame) < frameBytes {
			s.frame = nil
		}
	}
	return n, nil
}

func (s *flacSource) sample(b []byte, bytesPerSample int) int32 {
	switch bytesPerSample {
	case 1:
		return int32(int8(b[0]))
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		return v << 8 >> 8
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}
