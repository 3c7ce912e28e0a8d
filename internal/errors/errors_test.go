package errors

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReporter struct {
	reports atomic.Int32
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.reports.Add(1)
	ee.MarkReported()
}

func (r *countingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.GetTimestamp().IsZero())
}

func TestBuilderCarriesContext(t *testing.T) {
	sentinel := NewStd("device busy")
	ee := New(sentinel).
		Component("audiocore").
		Category(CategoryAudioDevice).
		Priority("bogus").
		Context("device", 3).
		Build()

	require.ErrorIs(t, ee, sentinel)
	assert.Equal(t, "audiocore", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.GetPriority())
	assert.Equal(t, 3, ee.GetContext()["device"])
	assert.True(t, IsCategory(ee, CategoryAudioDevice))
	assert.True(t, IsCategory(fmt.Errorf("wrapped: %w", ee), CategoryAudioDevice))
	assert.False(t, IsNotFound(ee))
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	inner := New(NewStd("no such device")).Category(CategoryNotFound).Build()
	outer := New(fmt.Errorf("open: %w", inner)).Build()

	assert.Equal(t, CategoryNotFound, outer.Category)
}

func TestContextIsCopied(t *testing.T) {
	ee := New(NewStd("x")).Context("k", "v").Build()
	ctx := ee.GetContext()
	ctx["k"] = "changed"
	assert.Equal(t, "v", ee.GetContext()["k"])
}

func TestTelemetryReporterToggle(t *testing.T) {
	r := &countingReporter{}
	SetTelemetryReporter(r)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("reported")).Build()
	assert.Equal(t, int32(1), r.reports.Load())
	assert.True(t, ee.IsReported())

	SetTelemetryReporter(nil)
	New(NewStd("silent")).Build()
	assert.Equal(t, int32(1), r.reports.Load())
}

func TestBasicURLScrub(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		absent string
	}{
		{"query string", "Error at https://api.example.com?api_key=secret123&token=abc", "Error at https://api.example.com?[REDACTED]", ""},
		{"api key", "Config error: api_key=secret123 is invalid", "", "secret123"},
		{"password", "mqtt auth failed password=hunter2", "", "hunter2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := basicURLScrub(tt.input)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			if tt.absent != "" {
				assert.NotContains(t, got, tt.absent)
			}
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("audiocore").
		Category(CategoryAudioDevice).
		Context("operation", "open_stream").
		Build()

	assert.Equal(t, "Audiocore Audio Device Error Open Stream", generateErrorTitle(ee))
}
