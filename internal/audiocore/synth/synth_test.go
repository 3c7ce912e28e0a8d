package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peak(buf []float32) float64 {
	p := 0.0
	for _, v := range buf {
		p = max(p, math.Abs(float64(v)))
	}
	return p
}

func TestNew(t *testing.T) {
	for _, w := range []string{WaveSine, WaveSaw, WaveNoise, "SINE"} {
		p, err := New(w, 48000, 440, 0.5)
		require.NoError(t, err, w)
		require.NotNil(t, p)
	}
	_, err := New("square", 48000, 440, 0.5)
	require.Error(t, err)
}

func TestSineMixesIntoOutput(t *testing.T) {
	p, err := New(WaveSine, 1000, 250, 1)
	require.NoError(t, err)
	p.SetParam(ParamPan, -1)

	out := make([]float32, 8)
	for i := range out {
		out[i] = 1
	}
	p.Process(out, 2, 4)

	// quarter-rate sine: 0, 1, 0, -1 on the left, right fully attenuated
	left := []float64{1, 2, 1, 0}
	for i := range 4 {
		assert.InDelta(t, left[i], out[2*i], 1e-6)
		assert.InDelta(t, 1.0, out[2*i+1], 1e-6)
	}
}

func TestCenterPanIsEqualPower(t *testing.T) {
	p, err := New(WaveSaw, 1000, 100, 1)
	require.NoError(t, err)

	out := make([]float32, 20)
	p.Process(out, 2, 10)
	for i := range 10 {
		assert.InDelta(t, out[2*i], out[2*i+1], 1e-6)
	}
	// the ramp starts at -1
	assert.InDelta(t, math.Sqrt2/2, peak(out), 1e-5)
}

func TestSetParam(t *testing.T) {
	p, err := New(WaveNoise, 48000, 0, 0.25)
	require.NoError(t, err)

	out := make([]float32, 512)
	p.Process(out, 1, 512)
	assert.LessOrEqual(t, peak(out), 0.25)
	assert.Positive(t, peak(out))

	p.SetParam(ParamAmp, 0)
	clear(out)
	p.Process(out, 1, 512)
	assert.Zero(t, peak(out))
}

func TestParamID(t *testing.T) {
	tests := map[string]int32{"freq": ParamFreq, "Frequency": ParamFreq, "amp": ParamAmp, "gain": ParamAmp, "pan": ParamPan}
	for name, want := range tests {
		got, ok := ParamID(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := ParamID("cutoff")
	assert.False(t, ok)
}
