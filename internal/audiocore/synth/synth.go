// Package synth provides simple voice processors for the engine's voice
// table. Parameters are addressed by id through SetParam.
package synth

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/errors"
)

// Parameter ids understood by every processor in this package
const (
	ParamFreq int32 = iota // Hz
	ParamAmp               // linear gain
	ParamPan               // -1 left .. +1 right
)

// Waveforms accepted by New
const (
	WaveSine  = "sine"
	WaveSaw   = "saw"
	WaveNoise = "noise"
)

// ParamID maps a parameter name to its id
func ParamID(name string) (int32, bool) {
	switch strings.ToLower(name) {
	case "freq", "frequency":
		return ParamFreq, true
	case "amp", "gain":
		return ParamAmp, true
	case "pan":
		return ParamPan, true
	default:
		return 0, false
	}
}

// New creates a processor for waveform at sampleRate
func New(waveform string, sampleRate, freq, amp float64) (audiocore.Processor, error) {
	base := voice{sampleRate: sampleRate, freq: freq, amp: amp}
	base.updatePan()
	switch strings.ToLower(waveform) {
	case WaveSine:
		return &Sine{voice: base}, nil
	case WaveSaw:
		return &Saw{voice: base}, nil
	case WaveNoise:
		return &Noise{voice: base, rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}, nil
	default:
		return nil, errors.Newf("unknown waveform %q", waveform).
			Component("synth").
			Category(errors.CategoryValidation).
			Build()
	}
}

// voice holds the parameters shared by all waveforms
type voice struct {
	sampleRate float64
	freq       float64
	amp        float64
	pan        float64
	gains      [2]float32 // equal power left/right gains
	phase      float64    // 0..1
}

func (v *voice) SetParam(pid int32, value float64) {
	switch pid {
	case ParamFreq:
		v.freq = max(value, 0)
	case ParamAmp:
		v.amp = value
	case ParamPan:
		v.pan = min(max(value, -1), 1)
		v.updatePan()
	}
}

func (v *voice) updatePan() {
	angle := (v.pan + 1) * math.Pi / 4
	v.gains = [2]float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
}

// mix adds s to every channel of frame i. Stereo and wider outputs get
// the pan law on the first two channels; mono is left unpanned.
func (v *voice) mix(output []float32, channels, i int, s float32) {
	base := i * channels
	if channels == 1 {
		output[base] += s
		return
	}
	output[base] += s * v.gains[0]
	output[base+1] += s * v.gains[1]
}

func (v *voice) advance() float64 {
	p := v.phase
	v.phase += v.freq / v.sampleRate
	v.phase -= math.Floor(v.phase)
	return p
}

// Sine is a sine oscillator
type Sine struct{ voice }

// Process implements audiocore.Processor
func (o *Sine) Process(output []float32, channels, frames int) {
	amp := float32(o.amp)
	for i := range frames {
		p := o.advance()
		o.mix(output, channels, i, amp*float32(math.Sin(2*math.Pi*p)))
	}
}

// Saw is a naive sawtooth oscillator
type Saw struct{ voice }

// Process implements audiocore.Processor
func (o *Saw) Process(output []float32, channels, frames int) {
	amp := float32(o.amp)
	for i := range frames {
		p := o.advance()
		o.mix(output, channels, i, amp*float32(2*p-1))
	}
}

// Noise is a uniform white noise source. freq is ignored.
type Noise struct {
	voice
	rng *rand.Rand
}

// Process implements audiocore.Processor
func (o *Noise) Process(output []float32, channels, frames int) {
	amp := float32(o.amp)
	for i := range frames {
		o.mix(output, channels, i, amp*(2*o.rng.Float32()-1))
	}
}
