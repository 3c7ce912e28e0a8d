package play

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/backends/virtual"
	"github.com/avhost/av/internal/audiocore/decode"
	"github.com/avhost/av/internal/audiocore/export"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/datastore"
	"github.com/avhost/av/internal/observability/metrics"
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
			Gain:      0.2,
		},
		Export: conf.ExportSettings{Path: t.TempDir(), BitDepth: 16},
		Journal: conf.JournalSettings{
			Enabled: true,
			Type:    conf.JournalSQLite,
			Path:    filepath.Join(t.TempDir(), "av.db"),
		},
	}
}

func constantInput(buf []float32, _, _ int) {
	for i := range buf {
		buf[i] = 0.5
	}
}

func TestRunRecordsSession(t *testing.T) {
	settings := testSettings(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, Run(ctx, settings, virtual.New(virtual.Config{}), Options{}))

	journal, err := datastore.Open(settings.Journal, metrics.NoOpRecorder{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	sessions, err := journal.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, virtual.Name, sessions[0].Backend)
	assert.NotNil(t, sessions[0].ClosedAt, "engine closed before the journal")
	assert.InDelta(t, 44100.0, sessions[0].SampleRate, 0)
}

func TestRunRejectsInvalidSettings(t *testing.T) {
	settings := testSettings(t)
	settings.Producer.Source = "radio"

	err := Run(context.Background(), settings, virtual.New(virtual.Config{}), Options{})
	require.Error(t, err)
	var ve conf.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRunWithoutDevices(t *testing.T) {
	settings := testSettings(t)
	settings.Journal.Enabled = false
	b := virtual.New(virtual.Config{Devices: []audiocore.DeviceInfo{}})

	err := Run(context.Background(), settings, b, Options{})
	require.ErrorIs(t, err, audiocore.ErrNoDevice)
	assert.Zero(t, b.LiveStreams())
}

func TestRunRecordsInput(t *testing.T) {
	settings := testSettings(t)
	settings.Journal.Enabled = false
	path := filepath.Join(t.TempDir(), "input.wav")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	b := virtual.New(virtual.Config{Input: constantInput})
	require.NoError(t, Run(ctx, settings, b, Options{Record: path}))

	src, err := decode.Open(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	assert.Equal(t, 44100, src.SampleRate())
	assert.Equal(t, 2, src.Channels())
}

func TestRecordNeedsInputDevice(t *testing.T) {
	settings := testSettings(t)
	settings.Journal.Enabled = false
	settings.Audio.InputDevice = conf.NoDevice

	err := Run(context.Background(), settings, virtual.New(virtual.Config{}), Options{
		Record: filepath.Join(t.TempDir(), "input.wav"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input device")
}

func TestRecordInputDrainsOnCancel(t *testing.T) {
	b := virtual.New(virtual.Config{Manual: true, Input: constantInput})
	engine := audiocore.NewEngine(b, audiocore.Options{InputTapSeconds: 1, MonitorInterval: -1})
	t.Cleanup(func() { _ = engine.Close() })
	require.NoError(t, engine.Open())
	require.NoError(t, engine.Start())
	b.Last().Step(4)

	w, err := export.NewWAVWriter(filepath.Join(t.TempDir(), "in.wav"), 44100, 2, 16)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, recordInput(ctx, engine.Tap(), w, time.Hour))
	assert.Equal(t, int64(4*audiocore.DefaultBlockSize), w.Frames())
}
