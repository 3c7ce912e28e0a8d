// conf/config.go
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
	"github.com/avhost/av/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// AudioSettings contains the stream parameters handed to the engine
type AudioSettings struct {
	Backend           string           `yaml:"backend"`           // auto, malgo or virtual
	SampleRate        float64          `yaml:"samplerate"`        // Hz
	BlockSize         int              `yaml:"blocksize"`         // frames per callback
	InputDevice       int              `yaml:"inputdevice"`       // device index, -1 default, -2 none
	OutputDevice      int              `yaml:"outputdevice"`      // device index, -1 default
	InputChannels     int              `yaml:"inputchannels"`     // requested, clamped to device capability
	OutputChannels    int              `yaml:"outputchannels"`    // requested, clamped to device capability
	Lag               float64          `yaml:"lag"`               // producer look-ahead in seconds
	CommandBufferSize int              `yaml:"commandbuffersize"` // command channel size in bytes
	MaxVoices         int              `yaml:"maxvoices"`         // voice table capacity
	InputTap          InputTapSettings `yaml:"inputtap"`
	Monitor           MonitorSettings  `yaml:"monitor"`
}

// InputTapSettings controls the copy of hardware input for non-real-time readers
type InputTapSettings struct {
	Enabled bool    `yaml:"enabled"`
	Seconds float64 `yaml:"seconds"` // tap capacity in seconds of input
}

// MonitorSettings controls callback statistics reporting
type MonitorSettings struct {
	Interval time.Duration `yaml:"interval"`
}

// ProducerSettings selects what the producer loop writes into the ring
type ProducerSettings struct {
	Source    string  `yaml:"source"`    // tone, silence or file
	File      string  `yaml:"file"`      // path for the file source
	Frequency float64 `yaml:"frequency"` // tone frequency in Hz
	Gain      float64 `yaml:"gain"`      // linear gain applied to the source
	Loop      bool    `yaml:"loop"`      // restart file at EOF
}

// ExportSettings controls offline render output
type ExportSettings struct {
	Path     string `yaml:"path"`
	BitDepth int    `yaml:"bitdepth"`
}

// APISettings controls the HTTP control API
type APISettings struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Address returns host:port for listening
func (a APISettings) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// MQTTSettings controls the remote control bridge
type MQTTSettings struct {
	Enabled        bool          `yaml:"enabled"`
	Broker         string        `yaml:"broker"`
	Topic          string        `yaml:"topic"`
	ClientID       string        `yaml:"clientid"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`     // may reference ${ENV}
	PasswordFile   string        `yaml:"passwordfile"` // overrides password
	StatusInterval time.Duration `yaml:"statusinterval"`
}

// JournalSettings controls the session journal database
type JournalSettings struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"`    // sqlite or mysql
	Path    string `yaml:"path"`    // sqlite file
	DSN     string `yaml:"dsn"`     // mysql data source name, may reference ${ENV}
	DSNFile string `yaml:"dsnfile"` // overrides dsn
}

// SentrySettings contains opt-in error telemetry settings
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`
}

// Settings is the root configuration
type Settings struct {
	Debug    bool                 `yaml:"debug"`
	Logging  logger.LoggingConfig `yaml:"logging"`
	Audio    AudioSettings        `yaml:"audio"`
	Producer ProducerSettings     `yaml:"producer"`
	Export   ExportSettings       `yaml:"export"`
	API      APISettings          `yaml:"api"`
	MQTT     MQTTSettings         `yaml:"mqtt"`
	Journal  JournalSettings      `yaml:"journal"`
	Sentry   SentrySettings       `yaml:"sentry"`
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// resolveSecrets replaces credential fields with their expanded or
// file-backed values
func resolveSecrets(settings *Settings) error {
	fields := []struct {
		name  string
		file  string
		value *string
	}{
		{"mqtt.password", settings.MQTT.PasswordFile, &settings.MQTT.Password},
		{"journal.dsn", settings.Journal.DSNFile, &settings.Journal.DSN},
		{"sentry.dsn", "", &settings.Sentry.DSN},
	}
	for _, f := range fields {
		v, err := secrets.Resolve(f.file, *f.value)
		if err != nil {
			return errors.New(fmt.Errorf("error resolving %s: %w", f.name, err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		*f.value = v
	}
	return nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("AV")
	viper.AutomaticEnv()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	GetLogger().Debug("configuration loaded", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, ConfigFileName)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.New(fmt.Errorf("error creating directories for config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_default_config").
			Build()
	}

	if err := os.WriteFile(configPath, []byte(GetDefaultConfig()), 0o600); err != nil {
		return errors.New(fmt.Errorf("error writing default config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_default_config").
			Build()
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return viper.ReadInConfig()
}

// GetDefaultConfig returns the embedded default config.yaml.
func GetDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, ConfigFileName)
	if err != nil {
		// embedded at build time
		panic(err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// MarshalYAMLString renders settings as YAML for display.
func (s *Settings) MarshalYAMLString() (string, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
