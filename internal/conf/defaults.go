// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/av.log")
	viper.SetDefault("logging.file_output.level", "debug")

	viper.SetDefault("audio.backend", BackendAuto)
	viper.SetDefault("audio.samplerate", 44100.0)
	viper.SetDefault("audio.blocksize", 256)
	viper.SetDefault("audio.inputdevice", DefaultDevice)
	viper.SetDefault("audio.outputdevice", DefaultDevice)
	viper.SetDefault("audio.inputchannels", 2)
	viper.SetDefault("audio.outputchannels", 2)
	viper.SetDefault("audio.lag", 0.04)
	viper.SetDefault("audio.commandbuffersize", 1024*1024)
	viper.SetDefault("audio.maxvoices", 64)
	viper.SetDefault("audio.inputtap.enabled", false)
	viper.SetDefault("audio.inputtap.seconds", 2.0)
	viper.SetDefault("audio.monitor.interval", 10*time.Second)

	viper.SetDefault("producer.source", SourceTone)
	viper.SetDefault("producer.file", "")
	viper.SetDefault("producer.frequency", 440.0)
	viper.SetDefault("producer.gain", 0.2)
	viper.SetDefault("producer.loop", true)

	viper.SetDefault("export.path", "renders/")
	viper.SetDefault("export.bitdepth", 16)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.host", "127.0.0.1")
	viper.SetDefault("api.port", 8420)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "av")
	viper.SetDefault("mqtt.clientid", "av")
	viper.SetDefault("mqtt.statusinterval", 5*time.Second)

	viper.SetDefault("journal.enabled", false)
	viper.SetDefault("journal.type", JournalSQLite)
	viper.SetDefault("journal.path", "av.db")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.environment", "production")
}

// DefaultAudioSettings returns the audio defaults without touching viper,
// for callers that build an engine programmatically.
func DefaultAudioSettings() AudioSettings {
	return AudioSettings{
		Backend:           BackendAuto,
		SampleRate:        44100,
		BlockSize:         256,
		InputDevice:       DefaultDevice,
		OutputDevice:      DefaultDevice,
		InputChannels:     2,
		OutputChannels:    2,
		Lag:               0.04,
		CommandBufferSize: 1024 * 1024,
		MaxVoices:         64,
		InputTap:          InputTapSettings{Seconds: 2},
		Monitor:           MonitorSettings{Interval: 10 * time.Second},
	}
}
