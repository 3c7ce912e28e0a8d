package datastore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/backends/virtual"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/observability/metrics"
)

// countingRecorder tallies operations by name and status
type countingRecorder struct {
	mu     sync.Mutex
	ops    map[string]int
	errors map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ops: map[string]int{}, errors: map[string]int{}}
}

func (r *countingRecorder) RecordOperation(operation, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[operation+"/"+status]++
}

func (r *countingRecorder) RecordDuration(string, float64) {}

func (r *countingRecorder) RecordError(operation, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[operation]++
}

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[key]
}

func openTestJournal(t *testing.T, rec metrics.Recorder) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "sessions.db")
	j, err := Open(conf.JournalSettings{Enabled: true, Type: conf.JournalSQLite, Path: path}, rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func testInfo(id string, opened time.Time) audiocore.StreamInfo {
	out := virtual.DefaultDevices()[0]
	return audiocore.StreamInfo{
		SessionID:      id,
		Backend:        "virtual",
		SampleRate:     48000,
		BlockSize:      128,
		Blocks:         64,
		Output:         &out,
		OutputChannels: 2,
		OpenedAt:       opened,
	}
}

func TestOpenValidatesSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings conf.JournalSettings
	}{
		{"unknown type", conf.JournalSettings{Type: "postgres", Path: "x.db"}},
		{"empty sqlite path", conf.JournalSettings{Type: conf.JournalSQLite}},
		{"empty mysql dsn", conf.JournalSettings{Type: conf.JournalMySQL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.settings, nil)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestJournalRecordsSessionLifecycle(t *testing.T) {
	rec := newCountingRecorder()
	j, _ := openTestJournal(t, rec)
	assert.Equal(t, 1, rec.count(metrics.OpMigrate+"/"+metrics.StatusSuccess))

	opened := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	info := testInfo("s-1", opened)
	j.StreamOpened(info)

	s, err := j.GetSession(t.Context(), "s-1")
	require.NoError(t, err)
	assert.True(t, s.Open())
	assert.Equal(t, "virtual", s.Backend)
	assert.Equal(t, info.Output.Name, s.OutputDevice)
	assert.InDelta(t, 48000.0, s.SampleRate, 0)
	assert.Equal(t, 128, s.BlockSize)
	assert.WithinDuration(t, opened, s.OpenedAt, time.Millisecond)

	info.StreamTime = 1.5
	j.StreamClosed(info, audiocore.Stats{Callbacks: 42, Underruns: 3, Commands: 7, Panics: 1, LastPanic: "boom"})

	s, err = j.GetSession(t.Context(), "s-1")
	require.NoError(t, err)
	assert.False(t, s.Open())
	assert.Equal(t, uint64(42), s.Callbacks)
	assert.Equal(t, uint64(3), s.Underruns)
	assert.Equal(t, uint64(7), s.Commands)
	assert.Equal(t, uint64(1), s.Panics)
	assert.Equal(t, "boom", s.LastPanic)
	assert.InDelta(t, 1.5, s.StreamTime, 1e-9)
	assert.GreaterOrEqual(t, s.Duration(time.Now()), time.Minute)

	assert.Equal(t, 1, rec.count(metrics.OpSessionOpen+"/"+metrics.StatusSuccess))
	assert.Equal(t, 1, rec.count(metrics.OpSessionClose+"/"+metrics.StatusSuccess))
}

func TestJournalCloseOfUnknownSession(t *testing.T) {
	rec := newCountingRecorder()
	j, _ := openTestJournal(t, rec)

	j.StreamClosed(testInfo("missing", time.Now()), audiocore.Stats{})
	assert.Equal(t, 1, rec.count(metrics.OpSessionClose+"/"+metrics.StatusError))
}

func TestJournalIgnoresEmptySessionID(t *testing.T) {
	rec := newCountingRecorder()
	j, _ := openTestJournal(t, rec)

	j.StreamOpened(testInfo("", time.Now()))
	sessions, err := j.ListSessions(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Zero(t, rec.count(metrics.OpSessionOpen+"/"+metrics.StatusSuccess))
}

func TestListSessionsNewestFirst(t *testing.T) {
	j, _ := openTestJournal(t, nil)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		j.StreamOpened(testInfo(id, base.Add(time.Duration(i)*time.Minute)))
	}

	sessions, err := j.ListSessions(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "c", sessions[0].ID)
	assert.Equal(t, "a", sessions[2].ID)

	sessions, err = j.ListSessions(t.Context(), 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[1].ID)
}

func TestGetSessionNotFound(t *testing.T) {
	j, _ := openTestJournal(t, nil)

	_, err := j.GetSession(t.Context(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestReopenClosesStaleSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	settings := conf.JournalSettings{Type: conf.JournalSQLite, Path: path}

	j, err := Open(settings, nil)
	require.NoError(t, err)
	j.StreamOpened(testInfo("left-open", time.Now()))
	require.NoError(t, j.Close())

	j, err = Open(settings, nil)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	s, err := j.GetSession(context.Background(), "left-open")
	require.NoError(t, err)
	assert.False(t, s.Open())
}

func TestJournalObservesEngine(t *testing.T) {
	j, _ := openTestJournal(t, nil)

	e := audiocore.NewEngine(virtual.New(virtual.Config{Manual: true}), audiocore.Options{
		MonitorInterval: -1,
		Observer:        j,
	})
	require.NoError(t, e.Open())
	require.NoError(t, e.Start())
	id := e.Info().SessionID
	require.NotEmpty(t, id)

	e.Backend().(*virtual.Backend).Last().Step(10)
	require.NoError(t, e.Close())

	s, err := j.GetSession(t.Context(), id)
	require.NoError(t, err)
	assert.False(t, s.Open())
	assert.Equal(t, uint64(10), s.Callbacks)
	assert.Equal(t, "virtual", s.Backend)
}
