package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/avhost/av/internal/conf"
)

func TestShowMasksSecrets(t *testing.T) {
	settings := &conf.Settings{
		MQTT:    conf.MQTTSettings{Broker: "tcp://broker:1883", Password: "hunter2"},
		Journal: conf.JournalSettings{Type: conf.JournalMySQL, DSN: "user:pw@tcp(db)/av"},
	}

	var buf bytes.Buffer
	require.NoError(t, Show(&buf, settings, false))
	assert.NotContains(t, buf.String(), "hunter2")
	assert.NotContains(t, buf.String(), "user:pw")
	assert.Contains(t, buf.String(), redacted)
	assert.Contains(t, buf.String(), "tcp://broker:1883")
	assert.Equal(t, "hunter2", settings.MQTT.Password, "settings are not modified")

	buf.Reset()
	require.NoError(t, Show(&buf, settings, true))
	assert.Contains(t, buf.String(), "hunter2")
}

func TestInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", conf.ConfigFileName)

	require.NoError(t, Init(path, nil, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, conf.GetDefaultConfig(), string(data))

	err = Init(path, nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitEffectiveSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), conf.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	settings := &conf.Settings{Audio: conf.DefaultAudioSettings()}
	settings.Audio.BlockSize = 512
	require.NoError(t, Init(path, settings, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back conf.Settings
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, 512, back.Audio.BlockSize)
}

func TestCommandInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), conf.ConfigFileName)
	cmd := Command(&conf.Settings{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init", "--path", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)
	assert.FileExists(t, path)
}
