package decode

import (
	"encoding/binary"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MPEG-1/2 layer III. go-mp3 always produces 16-bit
// stereo.
type MP3Decoder struct{}

// Decode implements Decoder
func (MP3Decoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &mp3Source{dec: dec, sampleRate: dec.SampleRate()}, nil
}

type mp3Source struct {
	dec        *gomp3.Decoder
	sampleRate int
	buf        []byte
	pending    []byte // partial frame carried to the next read
}

const mp3Channels = 2

func (s *mp3Source) SampleRate() int { return s.sampleRate }
func (s *mp3Source) Channels() int   { return mp3Channels }
func (s *mp3Source) Close() error    { return nil }

func (s *mp3Source) ReadSamples(dst []float32) (int, error) {
	want := (len(dst) - len(dst)%mp3Channels) * 2
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	s.buf = s.buf[:want]

	have := copy(s.buf, s.pending)
	s.pending = s.pending[:0]

	n, err := s.dec.Read(s.buf[have:])
	have += n
	if have == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}

	frameBytes := mp3Channels * 2
	whole := have - have%frameBytes
	s.pending = append(s.pending, s.buf[whole:have]...)

	samples := whole / 2
	for i := range samples {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(s.buf[2*i:]))) / 32768
	}
	if err == io.EOF && samples > 0 {
		err = nil
	}
	return samples, err
}
