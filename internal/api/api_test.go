package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/audiocore/backends/virtual"
	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/datastore"
	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/observability"
)

// fakeStore serves a fixed session list
type fakeStore struct {
	sessions  []datastore.Session
	lastLimit int
}

func (f *fakeStore) ListSessions(_ context.Context, limit int) ([]datastore.Session, error) {
	f.lastLimit = limit
	return f.sessions, nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*datastore.Session, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			return &f.sessions[i], nil
		}
	}
	return nil, errors.Newf("session %s not found", id).
		Category(errors.CategoryNotFound).
		Build()
}

type testEnv struct {
	echo    *echo.Echo
	engine  *audiocore.Engine
	backend *virtual.Backend
}

func setupTestEnvironment(t *testing.T, engineOpts audiocore.Options, opts ...Option) *testEnv {
	t.Helper()
	b := virtual.New(virtual.Config{Manual: true})
	engineOpts.MonitorInterval = -1
	engine := audiocore.NewEngine(b, engineOpts)
	t.Cleanup(func() { _ = engine.Close() })

	e := echo.New()
	settings := &conf.Settings{}
	New(e, engine, settings, opts...)
	return &testEnv{echo: e, engine: engine, backend: b}
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{})

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "closed", resp.Stream)
	assert.Equal(t, virtual.Name, resp.Backend)
}

func TestGetDevices(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{})

	rec := env.do(t, http.MethodGet, APIPrefix+"/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	devices := decode[[]audiocore.DeviceInfo](t, rec)
	assert.Equal(t, virtual.DefaultDevices(), devices)

	env.backend.SetDevices([]audiocore.DeviceInfo{})
	rec = env.do(t, http.MethodGet, APIPrefix+"/devices?refresh=true", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Len(t, resp.CorrelationID, 8)
}

func TestStreamLifecycle(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{})

	rec := env.do(t, http.MethodPost, APIPrefix+"/stream/start", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[StreamResponse](t, rec)
	assert.Equal(t, "running", resp.State)
	assert.NotEmpty(t, resp.SessionID)

	env.backend.Last().Step(5)

	rec = env.do(t, http.MethodGet, APIPrefix+"/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[StreamResponse](t, rec)
	assert.Equal(t, uint64(5), resp.Stats.Callbacks)

	rec = env.do(t, http.MethodPost, APIPrefix+"/stream/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audiocore.StateOpened, env.engine.State())

	rec = env.do(t, http.MethodPost, APIPrefix+"/stream/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audiocore.StateRunning, env.engine.State())
	assert.Equal(t, 1, env.backend.OpenedStreams())

	rec = env.do(t, http.MethodPost, APIPrefix+"/stream/close", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audiocore.StateClosed, env.engine.State())
	assert.Zero(t, env.backend.LiveStreams())
}

func TestConfigureStream(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{})

	rec := env.do(t, http.MethodPost, APIPrefix+"/stream/configure", `{"sampleRate":48000,"blockSize":128}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 48000.0, env.engine.Params().SampleRate, 0)
	assert.Equal(t, 128, env.engine.Params().BlockSize)

	rec = env.do(t, http.MethodPost, APIPrefix+"/stream/configure", `{"outputDevice":99}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, APIPrefix+"/stream/configure", `{"sampleRate":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, env.engine.Open())
	rec = env.do(t, http.MethodPost, APIPrefix+"/stream/configure", `{"blockSize":64}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPostCommand(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{})

	rec := env.do(t, http.MethodPost, APIPrefix+"/commands", `{"op":"clear"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "no stream yet")

	require.NoError(t, env.engine.Open())
	require.NoError(t, env.engine.Start())

	rec = env.do(t, http.MethodPost, APIPrefix+"/commands", `{"op":"generic","id":1,"pid":2,"value":0.5}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "generic", decode[map[string]any](t, rec)["op"])

	env.backend.Last().Step(1)
	assert.Equal(t, uint64(1), env.engine.Stats().Commands)

	rec = env.do(t, http.MethodPost, APIPrefix+"/commands", `{"op":"launch"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Error, "launch")
}

func TestPostCommandChannelFull(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{CommandBufferSize: audiocore.RecordSize + 1})
	require.NoError(t, env.engine.Open())

	rec := env.do(t, http.MethodPost, APIPrefix+"/commands", `{"op":"clear"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, APIPrefix+"/commands", `{"op":"clear"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVoices(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{})
	require.NoError(t, env.engine.Open())
	require.NoError(t, env.engine.Start())

	rec := env.do(t, http.MethodPost, APIPrefix+"/voices", `{"id":3,"waveform":"sine","frequency":440,"amplitude":0.1}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	env.backend.Last().Step(1)
	assert.Equal(t, 1, env.engine.Stats().VoicesActive)

	rec = env.do(t, http.MethodPost, APIPrefix+"/voices", `{"id":4,"waveform":"square","frequency":440}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, APIPrefix+"/voices/3", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	env.backend.Last().Step(1)
	assert.Zero(t, env.engine.Stats().VoicesActive)

	rec = env.do(t, http.MethodDelete, APIPrefix+"/voices/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessions(t *testing.T) {
	store := &fakeStore{sessions: []datastore.Session{
		{ID: "s2", Backend: "virtual", OpenedAt: time.Now()},
		{ID: "s1", Backend: "virtual", OpenedAt: time.Now().Add(-time.Hour)},
	}}
	env := setupTestEnvironment(t, audiocore.Options{}, WithJournal(store))

	rec := env.do(t, http.MethodGet, APIPrefix+"/sessions?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decode[[]datastore.Session](t, rec)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Equal(t, 5, store.lastLimit)

	rec = env.do(t, http.MethodGet, APIPrefix+"/sessions?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, APIPrefix+"/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", decode[datastore.Session](t, rec).ID)

	rec = env.do(t, http.MethodGet, APIPrefix+"/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsRouteNeedsJournal(t *testing.T) {
	env := setupTestEnvironment(t, audiocore.Options{})
	rec := env.do(t, http.MethodGet, APIPrefix+"/sessions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	b := virtual.New(virtual.Config{Manual: true})
	engine := audiocore.NewEngine(b, audiocore.Options{MonitorInterval: -1})
	t.Cleanup(func() { _ = engine.Close() })

	m, err := observability.NewMetrics(engine)
	require.NoError(t, err)

	e := echo.New()
	New(e, engine, &conf.Settings{}, WithMetrics(m))
	require.NoError(t, engine.Open())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "av_stream_info")
	assert.Contains(t, body, `http_requests_total{method="GET",path="/health",status_code="200"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{audiocore.ErrChannelFull, http.StatusServiceUnavailable},
		{audiocore.ErrVoiceLimit, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: no open stream", audiocore.ErrInvalidState), http.StatusConflict},
		{audiocore.ErrInvalidDevice, http.StatusBadRequest},
		{audiocore.ErrInvalidConfig, http.StatusBadRequest},
		{audiocore.ErrNoDevice, http.StatusServiceUnavailable},
		{audiocore.ErrNoDefaultDevice, http.StatusNotFound},
		{errors.ValidationError("bad"), http.StatusBadRequest},
		{errors.NewStd("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestServerServeAndShutdown(t *testing.T) {
	b := virtual.New(virtual.Config{Manual: true})
	engine := audiocore.NewEngine(b, audiocore.Options{MonitorInterval: -1})
	t.Cleanup(func() { _ = engine.Close() })

	srv := NewServer(&conf.Settings{API: conf.APISettings{Host: "127.0.0.1"}}, engine)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}
