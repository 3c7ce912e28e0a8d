package virtual

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/avhost/av/internal/audiocore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testParams(devices []audiocore.DeviceInfo, withInput bool) audiocore.StreamParams {
	p := audiocore.StreamParams{
		SampleRate:     8000,
		BlockSize:      80,
		Output:         devices[0],
		OutputChannels: 2,
	}
	if withInput {
		in := devices[0]
		p.Input = &in
		p.InputChannels = 1
	}
	return p
}

func TestManualStep(t *testing.T) {
	var inputs, frames atomic.Int64
	b := New(Config{
		Manual: true,
		Input: func(buf []float32, channels, n int) {
			assert.Equal(t, 1, channels)
			for i := range buf {
				buf[i] = 0.5
			}
		},
	})

	var sunk []float32
	b.cfg.Sink = func(buf []float32, channels, n int) {
		sunk = append(sunk[:0], buf...)
	}

	s, err := b.OpenStream(testParams(DefaultDevices(), true), func(out, in []float32, n int) {
		frames.Add(int64(n))
		if len(in) > 0 && in[0] == 0.5 {
			inputs.Add(1)
		}
		for i := range out {
			out[i] = 0.25
		}
	})
	require.NoError(t, err)
	vs := s.(*Stream)

	assert.Equal(t, 0, vs.Step(3), "not started")
	require.NoError(t, s.Start())
	assert.True(t, vs.Running())

	assert.Equal(t, 3, vs.Step(3))
	assert.Equal(t, uint64(3), vs.Callbacks())
	assert.Equal(t, int64(240), frames.Load())
	assert.Equal(t, int64(3), inputs.Load())
	assert.Len(t, sunk, 160)
	assert.InDelta(t, 0.25, sunk[0], 0)

	require.NoError(t, s.Stop())
	assert.Equal(t, 0, vs.Step(1))
	require.NoError(t, s.Close())
	require.Error(t, s.Start())
}

func TestFreeRunning(t *testing.T) {
	b := New(Config{})
	var calls atomic.Int64
	s, err := b.OpenStream(testParams(DefaultDevices(), false), func([]float32, []float32, int) {
		calls.Add(1)
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	after := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no callbacks after Stop returns")

	require.NoError(t, s.Close())
}

func TestLiveStreamAccounting(t *testing.T) {
	b := New(Config{Manual: true})
	cb := func([]float32, []float32, int) {}

	s1, err := b.OpenStream(testParams(DefaultDevices(), false), cb)
	require.NoError(t, err)
	s2, err := b.OpenStream(testParams(DefaultDevices(), false), cb)
	require.NoError(t, err)
	assert.Equal(t, 2, b.LiveStreams())
	assert.Same(t, s2, b.Last())

	require.NoError(t, s1.Close())
	require.NoError(t, s1.Close())
	assert.Equal(t, 1, b.LiveStreams())
	assert.Equal(t, 2, b.OpenedStreams())
	require.NoError(t, s2.Close())
}

func TestDevices(t *testing.T) {
	b := New(Config{Devices: []audiocore.DeviceInfo{}})
	devices, err := b.Devices()
	require.NoError(t, err)
	assert.Empty(t, devices)

	b.SetDevices(DefaultDevices())
	devices, err = b.Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.True(t, devices[0].IsDefaultOutput)

	// a device that disappears cannot be opened
	params := testParams(devices, false)
	params.Output.Index = 4
	_, err = b.OpenStream(params, func([]float32, []float32, int) {})
	require.Error(t, err)
}

func TestFailOpen(t *testing.T) {
	b := New(Config{Manual: true})
	b.FailOpen(assert.AnError)
	_, err := b.OpenStream(testParams(DefaultDevices(), false), func([]float32, []float32, int) {})
	require.ErrorIs(t, err, assert.AnError)

	b.FailOpen(nil)
	s, err := b.OpenStream(testParams(DefaultDevices(), false), func([]float32, []float32, int) {})
	require.NoError(t, err)
	require.NoError(t, s.Close())
}
