package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avhost/av/internal/conf"
)

func TestRootCommandTree(t *testing.T) {
	root := RootCommand(&conf.Settings{})

	for _, name := range []string{"devices", "play", "render", "config", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}

	show, _, err := root.Find([]string{"config", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", show.Name())
}

func TestVersionCommand(t *testing.T) {
	root := RootCommand(&conf.Settings{})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "av unknown")
}

func TestInitializeWithoutSentry(t *testing.T) {
	settings := &conf.Settings{Debug: true}
	require.NoError(t, initialize(settings))
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
}
