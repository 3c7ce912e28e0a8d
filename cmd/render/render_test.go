package render

import (
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhost/av/internal/audiocore/decode"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	audio := conf.DefaultAudioSettings()
	audio.Backend = conf.BackendVirtual
	return &conf.Settings{
		Audio: audio,
		Producer: conf.ProducerSettings{
			Source:    conf.SourceTone,
			Frequency: 440,
			Gain:      0.5,
		},
		Export: conf.ExportSettings{Path: t.TempDir(), BitDepth: 16},
	}
}

// readAll decodes path and returns its samples, rate and channel count
func readAll(t *testing.T, path string) (samples []float32, rate, channels int) {
	t.Helper()
	src, err := decode.Open(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	buf := make([]float32, 4096)
	for {
		n, err := src.ReadSamples(buf)
		samples = append(samples, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}
	return samples, src.SampleRate(), src.Channels()
}

func peak(samples []float32) float64 {
	p := 0.0
	for _, s := range samples {
		p = max(p, math.Abs(float64(s)))
	}
	return p
}

func TestRenderTone(t *testing.T) {
	settings := testSettings(t)
	path := filepath.Join(t.TempDir(), "tone.wav")

	res, err := Render(settings, Options{Duration: 100 * time.Millisecond, Output: path})
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, int64(4410), res.Frames, "last block is truncated")
	assert.Zero(t, res.Stats.Underruns, "producer fills before every block")

	samples, rate, channels := readAll(t, path)
	assert.Equal(t, 44100, rate)
	assert.Equal(t, 2, channels)
	assert.Len(t, samples, 4410*2)
	assert.InDelta(t, 0.5*math.Sqrt2/2, peak(samples), 0.01, "centre pan")
}

func TestRenderVoicesOverSilence(t *testing.T) {
	settings := testSettings(t)
	settings.Producer.Source = conf.SourceSilence
	settings.Audio.OutputChannels = 1
	path := filepath.Join(t.TempDir(), "voices.wav")

	res, err := Render(settings, Options{
		Duration: 50 * time.Millisecond,
		Output:   path,
		Voices:   []string{"sine:440:0.3", "saw:110:0.1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.VoicesActive)

	samples, _, channels := readAll(t, path)
	assert.Equal(t, 1, channels)
	assert.Greater(t, peak(samples), 0.2)
	assert.LessOrEqual(t, peak(samples), 0.41)
}

func TestRenderGeneratesFileName(t *testing.T) {
	settings := testSettings(t)

	res, err := Render(settings, Options{Duration: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, settings.Export.Path, filepath.Dir(res.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(res.Path), "render_"), res.Path)
	assert.Equal(t, ".wav", filepath.Ext(res.Path))
}

func TestRenderValidation(t *testing.T) {
	settings := testSettings(t)

	_, err := Render(settings, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = Render(settings, Options{Duration: time.Second, Voices: []string{"sine"}})
	require.Error(t, err)

	_, err = Render(settings, Options{Duration: time.Second, Voices: []string{"square:440"}})
	require.Error(t, err)

	settings.Export.BitDepth = 12
	_, err = Render(settings, Options{Duration: time.Second})
	require.Error(t, err)
}

func TestParseVoice(t *testing.T) {
	tests := []struct {
		in      string
		wave    string
		freq    float64
		amp     float64 // negative when unset
		wantErr bool
	}{
		{in: "sine:440", wave: "sine", freq: 440, amp: -1},
		{in: "saw:110.5:0.25", wave: "saw", freq: 110.5, amp: 0.25},
		{in: " noise :0", wave: "noise", freq: 0, amp: -1},
		{in: "sine", wantErr: true},
		{in: "sine:abc", wantErr: true},
		{in: "sine:440:loud", wantErr: true},
		{in: "sine:1:2:3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			req, err := ParseVoice(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wave, req.Waveform)
			assert.InDelta(t, tt.freq, req.Frequency, 0)
			if tt.amp < 0 {
				assert.Nil(t, req.Amplitude)
			} else {
				require.NotNil(t, req.Amplitude)
				assert.InDelta(t, tt.amp, *req.Amplitude, 0)
			}
		})
	}
}
