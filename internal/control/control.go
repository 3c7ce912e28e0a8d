// Package control decodes remote control requests shared by the HTTP API
// and the MQTT bridge and applies them to an audio engine.
package control

import (
	"strings"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/synth"
	"github.com/avhost/av/internal/errors"
)

// Target is the part of audiocore.Engine that remote requests drive.
type Target interface {
	Push(cmd audiocore.Command) error
	AddVoice(id int32, p audiocore.Processor) error
	SwapVoice(id int32, p audiocore.Processor) error
	SetVoiceParam(id, pid int32, value float64) error
	Params() audiocore.StreamParams
}

// CommandRequest is a command record in JSON form. Op takes the opcode
// names from audiocore.Opcode.String. Param may name a synth parameter
// instead of giving its numeric PID.
type CommandRequest struct {
	Op    string  `json:"op"`
	ID    int32   `json:"id"`
	PID   int32   `json:"pid"`
	Param string  `json:"param,omitempty"`
	Value float64 `json:"value"`
}

// VoiceRequest creates a synth voice, or replaces the processor of a live
// one when Replace is set.
type VoiceRequest struct {
	ID        int32    `json:"id"`
	Waveform  string   `json:"waveform"`
	Frequency float64  `json:"frequency"`
	Amplitude *float64 `json:"amplitude,omitempty"`
	Pan       float64  `json:"pan"`
	Replace   bool     `json:"replace"`
}

// DefaultAmplitude is used when a VoiceRequest leaves the amplitude unset
const DefaultAmplitude = 0.2

// Result reports an accepted request
type Result struct {
	Op string `json:"op"`
	ID int32  `json:"id"`
}

func validationError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("control").
		Category(errors.CategoryValidation).
		Build()
}

// IsValidation reports whether err was caused by a malformed request
func IsValidation(err error) bool {
	return errors.IsCategory(err, errors.CategoryValidation)
}

// Decode converts req into an engine command. voice_add and voice_code need
// a processor and are rejected here; use ApplyVoice for those.
func (req CommandRequest) Decode() (audiocore.Command, error) {
	op, ok := audiocore.ParseOpcode(strings.ToLower(strings.TrimSpace(req.Op)))
	if !ok {
		return audiocore.Command{}, validationError("unknown opcode %q", req.Op)
	}
	if op == audiocore.OpVoiceAdd || op == audiocore.OpVoiceCode {
		return audiocore.Command{}, validationError("opcode %s needs a voice definition", op)
	}

	pid := req.PID
	if req.Param != "" {
		id, ok := synth.ParamID(req.Param)
		if !ok {
			return audiocore.Command{}, validationError("unknown parameter %q", req.Param)
		}
		pid = id
	}

	return audiocore.Command{Op: op, ID: req.ID, PID: pid, Value: req.Value}, nil
}

// Apply decodes req and pushes it to t
func Apply(t Target, req CommandRequest) (Result, error) {
	cmd, err := req.Decode()
	if err != nil {
		return Result{}, err
	}
	if err := t.Push(cmd); err != nil {
		return Result{}, err
	}
	return Result{Op: cmd.Op.String(), ID: cmd.ID}, nil
}

// ApplyVoice builds a synth processor at the stream's sample rate and
// installs it as voice req.ID.
func ApplyVoice(t Target, req VoiceRequest) (Result, error) {
	params := t.Params()
	if params.SampleRate <= 0 {
		return Result{}, validationError("no stream configured")
	}
	if req.Frequency < 0 || req.Frequency >= params.SampleRate/2 {
		return Result{}, validationError("frequency %.1f outside 0..%.1f Hz", req.Frequency, params.SampleRate/2)
	}
	if req.Pan < -1 || req.Pan > 1 {
		return Result{}, validationError("pan %.2f outside -1..1", req.Pan)
	}
	amp := DefaultAmplitude
	if req.Amplitude != nil {
		amp = *req.Amplitude
	}
	if amp < 0 {
		return Result{}, validationError("amplitude must not be negative")
	}

	p, err := synth.New(req.Waveform, params.SampleRate, req.Frequency, amp)
	if err != nil {
		return Result{}, err
	}
	if req.Pan != 0 {
		p.SetParam(synth.ParamPan, req.Pan)
	}

	op := audiocore.OpVoiceAdd
	if req.Replace {
		op = audiocore.OpVoiceCode
		err = t.SwapVoice(req.ID, p)
	} else {
		err = t.AddVoice(req.ID, p)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Op: op.String(), ID: req.ID}, nil
}
