package telemetry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
)

func TestPlatform(t *testing.T) {
	p := Platform()
	assert.Equal(t, runtime.GOOS, p.OS)
	assert.Equal(t, runtime.GOARCH, p.Architecture)
	assert.Equal(t, runtime.NumCPU(), p.NumCPU)
	assert.NotEmpty(t, p.GoVersion)
}

func TestSystemID(t *testing.T) {
	id, err := GenerateSystemID()
	require.NoError(t, err)
	assert.True(t, isValidSystemID(id), id)

	assert.False(t, isValidSystemID(""))
	assert.False(t, isValidSystemID("ABCD-EFGH-1234"))
	assert.False(t, isValidSystemID("ABCDE-F12-3456"))
}

func TestLoadOrCreateSystemIDPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")

	first, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	second, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, systemIDFile), []byte("garbage"), 0o644))
	third, err := LoadOrCreateSystemID(dir)
	require.NoError(t, err)
	assert.NotEqual(t, "garbage", third)
	assert.True(t, isValidSystemID(third))
}

func TestInitSentryDisabled(t *testing.T) {
	require.NoError(t, InitSentry(&conf.SentrySettings{}, "test", "0000-0000-0000"))
	assert.False(t, initialized.Load())
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestInitSentryRequiresDSN(t *testing.T) {
	err := InitSentry(&conf.SentrySettings{Enabled: true}, "test", "0000-0000-0000")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestBeforeSendStripsIdentity(t *testing.T) {
	event := &sentry.Event{
		ServerName: "myhost",
		User:       sentry.User{ID: "u1", IPAddress: "10.0.0.1"},
		Request:    &sentry.Request{Cookies: "a=b", QueryString: "token=x", Headers: map[string]string{"X": "y"}},
		Contexts:   map[string]sentry.Context{"device": {"name": "pc"}, "platform": {"os": "linux"}},
	}

	out := beforeSend(event, nil)
	assert.Empty(t, out.ServerName)
	assert.Equal(t, sentry.User{}, out.User)
	assert.Empty(t, out.Request.Cookies)
	assert.Empty(t, out.Request.QueryString)
	assert.Nil(t, out.Request.Headers)
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "platform")
}

func TestCaptureErrorWithoutInit(t *testing.T) {
	// must not panic or block when Sentry is off
	CaptureError(errors.NewStd("boom"), "test")
	Flush(0)
}
