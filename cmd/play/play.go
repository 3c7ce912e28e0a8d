// Package play implements the play command: open a stream, keep it fed
// from the configured source and serve the control surfaces until
// interrupted.
package play

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/avhost/av/internal/api"
	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/backends"
	"github.com/avhost/av/internal/audiocore/export"
	"github.com/avhost/av/internal/audiocore/producer"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/datastore"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
	"github.com/avhost/av/internal/mqtt"
	"github.com/avhost/av/internal/observability"
)

// recordInterval is how often the input tap is drained to disk
const recordInterval = 50 * time.Millisecond

// Options are per-invocation settings that are not part of the config file
type Options struct {
	Duration time.Duration // stop after this long, zero runs until interrupted
	Record   string        // write hardware input to this WAV file
}

// GetLogger returns the play command logger
func GetLogger() logger.Logger {
	return logger.Global().Module("play")
}

// Command creates the play command
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Open an audio stream and play the configured source",
		Long: "Open the configured output device, keep the stream fed from the producer source " +
			"and serve the HTTP API and MQTT bridge when enabled. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.Duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.Duration)
				defer cancel()
			}

			backend, err := backends.New(settings.Audio.Backend)
			if err != nil {
				return err
			}
			return Run(ctx, settings, backend, opts)
		},
	}

	if err := setupFlags(cmd, settings, &opts); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the play command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *Options) error {
	f := cmd.Flags()
	f.StringVar(&settings.Audio.Backend, "backend", viper.GetString("audio.backend"), "Audio backend (auto, malgo, virtual)")
	f.Float64Var(&settings.Audio.SampleRate, "samplerate", viper.GetFloat64("audio.samplerate"), "Stream sample rate in Hz")
	f.IntVar(&settings.Audio.BlockSize, "blocksize", viper.GetInt("audio.blocksize"), "Frames per callback")
	f.IntVar(&settings.Audio.OutputDevice, "output-device", viper.GetInt("audio.outputdevice"), "Output device index, -1 for default")
	f.IntVar(&settings.Audio.InputDevice, "input-device", viper.GetInt("audio.inputdevice"), "Input device index, -1 for default, -2 for none")
	f.StringVar(&settings.Producer.Source, "source", viper.GetString("producer.source"), "Producer source (tone, silence, file)")
	f.StringVar(&settings.Producer.File, "file", viper.GetString("producer.file"), "Audio file for the file source")
	f.Float64Var(&settings.Producer.Frequency, "frequency", viper.GetFloat64("producer.frequency"), "Tone frequency in Hz")
	f.Float64Var(&settings.Producer.Gain, "gain", viper.GetFloat64("producer.gain"), "Linear source gain")
	f.BoolVar(&settings.API.Enabled, "api", viper.GetBool("api.enabled"), "Serve the HTTP control API")
	f.BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Connect the MQTT bridge")
	f.BoolVar(&settings.Journal.Enabled, "journal", viper.GetBool("journal.enabled"), "Record sessions in the journal database")
	f.DurationVar(&opts.Duration, "duration", 0, "Stop after this duration")
	f.StringVar(&opts.Record, "record", "", "Record hardware input to a WAV file")

	keys := map[string]string{
		"backend":       "audio.backend",
		"samplerate":    "audio.samplerate",
		"blocksize":     "audio.blocksize",
		"output-device": "audio.outputdevice",
		"input-device":  "audio.inputdevice",
		"source":        "producer.source",
		"file":          "producer.file",
		"frequency":     "producer.frequency",
		"gain":          "producer.gain",
		"api":           "api.enabled",
		"mqtt":          "mqtt.enabled",
		"journal":       "journal.enabled",
	}
	for name, key := range keys {
		if err := viper.BindPFlag(key, f.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Run plays until ctx is done. The engine is closed before Run returns,
// after every service has stopped, so the journal sees the final stats.
func Run(ctx context.Context, settings *conf.Settings, backend audiocore.Backend, opts Options) (err error) {
	log := GetLogger()

	if opts.Record != "" {
		settings.Audio.InputTap.Enabled = true
	}
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	engine := audiocore.NewEngine(backend, backends.EngineOptions(&settings.Audio, nil))

	m, err := observability.NewMetrics(engine)
	if err != nil {
		return err
	}

	apiOpts := []api.Option{api.WithMetrics(m)}
	var journal *datastore.Journal
	if settings.Journal.Enabled {
		if journal, err = datastore.Open(settings.Journal, m.Journal); err != nil {
			return err
		}
		engine.SetObserver(journal)
		apiOpts = append(apiOpts, api.WithJournal(journal))
	}

	defer func() {
		if cerr := engine.Close(); cerr != nil {
			log.Warn("engine close failed", logger.Error(cerr))
		}
		if journal != nil {
			if cerr := journal.Close(); cerr != nil {
				log.Warn("journal close failed", logger.Error(cerr))
			}
		}
	}()

	if err := engine.Configure(backends.StreamConfig(&settings.Audio)); err != nil {
		return err
	}
	if err := engine.Open(); err != nil {
		return err
	}
	params := engine.Params()

	source, err := producer.NewSource(settings.Producer, params.SampleRate)
	if err != nil {
		return err
	}
	if c, ok := source.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	prod := producer.New(producer.EngineRing(engine), source, settings.Audio.Lag)
	// prime the ring so the first callbacks do not underrun
	prod.Fill(engine.Ring(), params.SampleRate)

	var bridge *mqtt.Bridge
	if settings.MQTT.Enabled {
		bridge, err = mqtt.NewBridge(mqtt.ConfigFromSettings(settings.MQTT), engine, m.MQTT)
		if err != nil {
			return err
		}
	}

	var recorder *export.WAVWriter
	if opts.Record != "" {
		if recorder, err = newRecorder(engine, opts.Record, settings.Export.BitDepth); err != nil {
			return err
		}
	}

	if err := engine.Start(); err != nil {
		if recorder != nil {
			_ = recorder.Close()
		}
		return err
	}

	info := engine.Info()
	log.Info("stream running",
		logger.String("session_id", info.SessionID),
		logger.String("backend", info.Backend),
		logger.Float64("sample_rate", info.SampleRate),
		logger.Int("block_size", info.BlockSize),
		logger.Int("output_channels", info.OutputChannels),
		logger.Int("input_channels", info.InputChannels))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return prod.Run(gctx, params.SampleRate, params.BlockSize)
	})
	if recorder != nil {
		g.Go(func() error {
			return recordInput(gctx, engine.Tap(), recorder, recordInterval)
		})
	}
	if settings.API.Enabled {
		srv := api.NewServer(settings, engine, apiOpts...)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx)
		})
	}

	err = g.Wait()

	stats := engine.Stats()
	log.Info("stream stopped",
		logger.Uint64("callbacks", stats.Callbacks),
		logger.Uint64("underruns", stats.Underruns),
		logger.Uint64("commands", stats.Commands),
		logger.Uint64("blocks_produced", prod.Written()))
	return err
}

// newRecorder creates a WAV file matching the engine's input tap
func newRecorder(engine *audiocore.Engine, path string, bitDepth int) (*export.WAVWriter, error) {
	tap := engine.Tap()
	if tap == nil {
		return nil, errors.Newf("input recording needs an input device").
			Component("play").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	return export.NewWAVWriter(path, int(tap.SampleRate()), tap.Channels(), bitDepth)
}

// recordInput drains tap into w every interval and closes w when ctx is
// done, after a final drain
func recordInput(ctx context.Context, tap *audiocore.InputTap, w *export.WAVWriter, interval time.Duration) error {
	buf := make([]float32, max(tap.Channels()*int(tap.SampleRate()/10), tap.Channels()))
	drain := func() error {
		for {
			n, err := tap.Read(buf)
			if err != nil {
				return err
			}
			if n == 0 {
				return nil
			}
			if err := w.Write(buf[:n]); err != nil {
				return err
			}
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			err := drain()
			GetLogger().Info("input recording saved",
				logger.String("path", w.Path()),
				logger.Int64("frames", w.Frames()),
				logger.Uint64("dropped_bytes", tap.Dropped()))
			return errors.Join(err, w.Close())
		case <-ticker.C:
			if err := drain(); err != nil {
				_ = w.Close()
				return err
			}
		}
	}
}
