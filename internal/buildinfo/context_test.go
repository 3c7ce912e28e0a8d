package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetters(t *testing.T) {
	tests := []struct {
		name     string
		ctx      *Context
		version  string
		date     string
		systemID string
	}{
		{"nil context", nil, UnknownValue, UnknownValue, UnknownValue},
		{"empty context", &Context{}, UnknownValue, UnknownValue, UnknownValue},
		{
			name:     "populated",
			ctx:      &Context{Version: "v1.2.0", BuildDate: "2026-01-02", SystemID: "ABCD-1234-EF56"},
			version:  "v1.2.0",
			date:     "2026-01-02",
			systemID: "ABCD-1234-EF56",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.date, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.systemID, tt.ctx.GetSystemID())
		})
	}
}

func TestNewUsesLinkerValues(t *testing.T) {
	oldVersion, oldDate := Version, BuildDate
	t.Cleanup(func() { Version, BuildDate = oldVersion, oldDate })

	Version, BuildDate = "v0.9.0", "2026-03-04"
	ctx := New("id")
	assert.Equal(t, "v0.9.0", ctx.GetVersion())
	assert.Equal(t, "2026-03-04", ctx.GetBuildDate())
	assert.Equal(t, "id", ctx.GetSystemID())
}
