// Package render implements offline rendering: the engine runs on the
// virtual backend in manual mode, as fast as the producer can keep up, and
// the output is written to a WAV file.
package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/backends"
	"github.com/avhost/av/internal/audiocore/backends/virtual"
	"github.com/avhost/av/internal/audiocore/export"
	"github.com/avhost/av/internal/audiocore/producer"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/control"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// Options describe one render
type Options struct {
	Duration time.Duration
	Output   string   // file path, generated under export.path when empty
	Voices   []string // waveform:frequency[:amplitude]
}

// Result summarizes a finished render
type Result struct {
	Path   string
	Frames int64
	Stats  audiocore.Stats
}

// GetLogger returns the render command logger
func GetLogger() logger.Logger {
	return logger.Global().Module("render")
}

// Command creates the render command
func Command(settings *conf.Settings) *cobra.Command {
	opts := Options{Duration: 5 * time.Second}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the configured source to a WAV file",
		Long: "Run the stream engine offline on the virtual backend and write its output, " +
			"including any synth voices given with --voice, to a WAV file.",
		Example: "  av render --duration 10s --voice sine:440 --voice saw:220:0.1 -o out.wav",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := Render(settings, opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d frames (%.2fs) to %s\n",
				res.Frames, float64(res.Frames)/settings.Audio.SampleRate, res.Path)
			return err
		},
	}

	if err := setupFlags(cmd, settings, &opts); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the render command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *Options) error {
	f := cmd.Flags()
	f.DurationVar(&opts.Duration, "duration", opts.Duration, "Length of the render")
	f.StringVarP(&opts.Output, "output", "o", "", "Output WAV file")
	f.StringArrayVar(&opts.Voices, "voice", nil, "Synth voice as waveform:frequency[:amplitude], repeatable")
	f.Float64Var(&settings.Audio.SampleRate, "samplerate", viper.GetFloat64("audio.samplerate"), "Sample rate in Hz")
	f.IntVar(&settings.Audio.BlockSize, "blocksize", viper.GetInt("audio.blocksize"), "Frames per block")
	f.IntVar(&settings.Audio.OutputChannels, "channels", viper.GetInt("audio.outputchannels"), "Output channels")
	f.StringVar(&settings.Producer.Source, "source", viper.GetString("producer.source"), "Producer source (tone, silence, file)")
	f.StringVar(&settings.Producer.File, "file", viper.GetString("producer.file"), "Audio file for the file source")
	f.Float64Var(&settings.Producer.Frequency, "frequency", viper.GetFloat64("producer.frequency"), "Tone frequency in Hz")
	f.Float64Var(&settings.Producer.Gain, "gain", viper.GetFloat64("producer.gain"), "Linear source gain")
	f.IntVar(&settings.Export.BitDepth, "bitdepth", viper.GetInt("export.bitdepth"), "PCM bit depth (16, 24, 32)")

	keys := map[string]string{
		"samplerate": "audio.samplerate",
		"blocksize":  "audio.blocksize",
		"channels":   "audio.outputchannels",
		"source":     "producer.source",
		"file":       "producer.file",
		"frequency":  "producer.frequency",
		"gain":       "producer.gain",
		"bitdepth":   "export.bitdepth",
	}
	for name, key := range keys {
		if err := viper.BindPFlag(key, f.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// ParseVoice parses waveform:frequency[:amplitude]
func ParseVoice(s string) (control.VoiceRequest, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return control.VoiceRequest{}, errors.ValidationError(
			fmt.Sprintf("voice %q: want waveform:frequency[:amplitude]", s))
	}
	req := control.VoiceRequest{Waveform: strings.TrimSpace(parts[0])}

	freq, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return control.VoiceRequest{}, errors.ValidationError(fmt.Sprintf("voice %q: bad frequency", s))
	}
	req.Frequency = freq

	if len(parts) == 3 {
		amp, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return control.VoiceRequest{}, errors.ValidationError(fmt.Sprintf("voice %q: bad amplitude", s))
		}
		req.Amplitude = &amp
	}
	return req, nil
}

// Render runs the engine for opts.Duration of stream time and writes the
// output. The device selection in settings is ignored; the render always
// uses the virtual output device and no input.
func Render(settings *conf.Settings, opts Options) (*Result, error) {
	log := GetLogger()

	if err := conf.ValidateSettings(settings); err != nil {
		return nil, err
	}
	if opts.Duration <= 0 {
		return nil, errors.ValidationError("render duration must be positive")
	}
	voices := make([]control.VoiceRequest, 0, len(opts.Voices))
	for i, s := range opts.Voices {
		req, err := ParseVoice(s)
		if err != nil {
			return nil, err
		}
		req.ID = int32(i + 1)
		voices = append(voices, req)
	}

	expCfg := export.DefaultConfig()
	expCfg.OutputPath = settings.Export.Path
	expCfg.BitDepth = settings.Export.BitDepth
	if err := export.ValidateConfig(expCfg); err != nil {
		return nil, err
	}
	path := opts.Output
	if path == "" {
		path = expCfg.GenerateFileName("render", time.Now())
	}

	var (
		writer    *export.WAVWriter
		remaining int
		sinkErr   error
	)
	sink := func(buf []float32, channels, frames int) {
		if sinkErr != nil || remaining <= 0 {
			return
		}
		n := min(frames, remaining)
		sinkErr = writer.Write(buf[:n*channels])
		remaining -= n
	}

	backend := virtual.New(virtual.Config{Manual: true, Sink: sink})
	engineOpts := backends.EngineOptions(&settings.Audio, nil)
	engineOpts.MonitorInterval = -1
	engine := audiocore.NewEngine(backend, engineOpts)
	defer func() { _ = engine.Close() }()

	streamCfg := backends.StreamConfig(&settings.Audio)
	streamCfg.OutputDevice = audiocore.DefaultDevice
	streamCfg.InputDevice = audiocore.NoDevice
	if err := engine.Configure(streamCfg); err != nil {
		return nil, err
	}
	if err := engine.Open(); err != nil {
		return nil, err
	}
	params := engine.Params()

	source, err := producer.NewSource(settings.Producer, params.SampleRate)
	if err != nil {
		return nil, err
	}
	if c, ok := source.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	prod := producer.New(producer.EngineRing(engine), source, settings.Audio.Lag)

	for _, req := range voices {
		if _, err := control.ApplyVoice(engine, req); err != nil {
			return nil, err
		}
	}

	writer, err = export.NewWAVWriter(path, int(params.SampleRate), params.OutputChannels, settings.Export.BitDepth)
	if err != nil {
		return nil, err
	}
	remaining = int(opts.Duration.Seconds() * params.SampleRate)

	if err := engine.Start(); err != nil {
		_ = writer.Close()
		return nil, err
	}

	stream := backend.Last()
	started := time.Now()
	for remaining > 0 && sinkErr == nil {
		prod.Fill(engine.Ring(), params.SampleRate)
		if stream.Step(1) == 0 {
			sinkErr = errors.Newf("render stream stopped early").
				Component("render").
				Category(errors.CategoryState).
				Context("remaining_frames", remaining).
				Build()
		}
	}
	stats := engine.Stats()

	if err := errors.Join(sinkErr, writer.Close()); err != nil {
		return nil, err
	}

	log.Info("render complete",
		logger.String("path", path),
		logger.Int64("frames", writer.Frames()),
		logger.Int("voices", len(voices)),
		logger.Uint64("underruns", stats.Underruns),
		logger.Duration("elapsed", time.Since(started)))

	return &Result{Path: path, Frames: writer.Frames(), Stats: stats}, nil
}
