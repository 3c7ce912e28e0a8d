package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dcVoice adds a constant level to every sample
type dcVoice struct {
	level float32
}

func (v *dcVoice) Process(output []float32, channels, frames int) {
	for i := range output[:frames*channels] {
		output[i] += v.level
	}
}

func (v *dcVoice) SetParam(pid int32, value float64) {
	if pid == 0 {
		v.level = float32(value)
	}
}

func TestCodeSlots(t *testing.T) {
	s := NewCodeSlots(2)
	a, b := &dcVoice{level: 1}, &dcVoice{level: 2}

	require.True(t, s.Stage(0, a))
	assert.False(t, s.Stage(0, b), "occupied slot")
	assert.False(t, s.Stage(5, b), "out of range")

	slot, err := s.StageAny(0, b)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)

	_, err = s.StageAny(1, &dcVoice{})
	require.ErrorIs(t, err, ErrVoiceLimit)

	assert.Same(t, a, s.Take(0))
	assert.Nil(t, s.Take(0))
	assert.Nil(t, s.Take(-1))

	slot, err = s.StageAny(1, a)
	require.NoError(t, err)
	assert.Equal(t, 0, slot, "wraps to the free slot")
}

func TestVoiceTable(t *testing.T) {
	vt := NewVoiceTable(2)
	out := make([]float32, 4)

	vt.add(1, &dcVoice{level: 0.25})
	vt.add(2, &dcVoice{level: 0.5})
	vt.add(3, &dcVoice{level: 1})
	assert.Equal(t, 2, vt.Active())
	assert.Equal(t, uint64(1), vt.Dropped())

	vt.render(out, 2, 2)
	assert.Equal(t, []float32{0.75, 0.75, 0.75, 0.75}, out)

	// same id replaces the processor
	vt.add(1, &dcVoice{level: 0})
	vt.setParam(2, 0, 0.125)
	clear(out)
	vt.render(out, 2, 2)
	assert.Equal(t, []float32{0.125, 0.125, 0.125, 0.125}, out)
	assert.Equal(t, 2, vt.Active())

	vt.swap(9, &dcVoice{level: 1})
	vt.remove(2)
	assert.Equal(t, 1, vt.Active())

	vt.clear()
	assert.Equal(t, 0, vt.Active())
	clear(out)
	vt.render(out, 2, 2)
	assert.Equal(t, make([]float32, 4), out)
}
