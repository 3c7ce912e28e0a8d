package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVWriter(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		channels int
	}{
		{"16bit stereo", 16, 2},
		{"24bit mono", 24, 1},
		{"32bit stereo", 32, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "out.wav")
			w, err := NewWAVWriter(path, 48000, tt.channels, tt.bitDepth)
			require.NoError(t, err)

			block := make([]float32, 480*tt.channels)
			for i := range block {
				block[i] = 0.5
			}
			require.NoError(t, w.Write(block))
			require.NoError(t, w.Write(block))
			assert.Equal(t, int64(960), w.Frames())
			require.NoError(t, w.Close())
			require.NoError(t, w.Close())

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()

			dec := wav.NewDecoder(f)
			dec.ReadInfo()
			require.True(t, dec.IsValidFile())
			assert.Equal(t, uint32(48000), dec.SampleRate)
			assert.Equal(t, uint16(tt.bitDepth), dec.BitDepth)
			assert.Equal(t, uint16(tt.channels), dec.NumChans)

			buf, err := dec.FullPCMBuffer()
			require.NoError(t, err)
			assert.Len(t, buf.Data, 960*tt.channels)
		})
	}
}

func TestWAVWriterClipsSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	w, err := NewWAVWriter(path, 8000, 1, 16)
	require.NoError(t, err)
	require.NoError(t, w.Write([]float32{2, -2, 0}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{32767, -32767, 0}, buf.Data)
}

func TestWAVWriterRejectsInvalidFormat(t *testing.T) {
	dir := t.TempDir()

	_, err := NewWAVWriter(filepath.Join(dir, "a.wav"), 44100, 2, 12)
	require.Error(t, err)

	_, err = NewWAVWriter(filepath.Join(dir, "b.wav"), 44100, 0, 16)
	require.Error(t, err)
}

func TestWAVWriterWriteAfterClose(t *testing.T) {
	w, err := NewWAVWriter(filepath.Join(t.TempDir(), "c.wav"), 44100, 2, 16)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.Error(t, w.Write([]float32{0, 0}))
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))

	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	assert.Equal(t, filepath.Join("renders", "render_20260314_150926.wav"), cfg.GenerateFileName("render", ts))

	cfg.FileNameTemplate = "{date}/{prefix}-{time}"
	assert.Equal(t, filepath.Join("renders", "2026-03-14", "take-15-09-26.wav"), cfg.GenerateFileName("take", ts))

	require.Error(t, ValidateConfig(nil))
	require.Error(t, ValidateConfig(&Config{OutputPath: "x", FileNameTemplate: "y", BitDepth: 8}))
	require.Error(t, ValidateConfig(&Config{FileNameTemplate: "y", BitDepth: 16}))
}
