// Package mqtt bridges an audio engine to an MQTT broker: command records
// arrive on <topic>/commands and <topic>/voices, stream status is published
// to <topic>/status.
package mqtt

import (
	"strings"
	"time"

	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/logger"
)

// Topic suffixes below the configured prefix
const (
	TopicCommands = "commands"
	TopicVoices   = "voices"
	TopicStatus   = "status"
)

// Config holds the configuration for the MQTT bridge.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string // prefix for all topics
	StatusInterval time.Duration

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnect      time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Topic:             "av",
		ClientID:          "av",
		StatusInterval:    5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnect:      time.Minute,
	}
}

// ConfigFromSettings overlays the user settings on DefaultConfig
func ConfigFromSettings(s conf.MQTTSettings) Config {
	cfg := DefaultConfig()
	cfg.Broker = s.Broker
	cfg.Username = s.Username
	cfg.Password = s.Password
	if s.ClientID != "" {
		cfg.ClientID = s.ClientID
	}
	if t := strings.Trim(s.Topic, "/"); t != "" {
		cfg.Topic = t
	}
	if s.StatusInterval > 0 {
		cfg.StatusInterval = s.StatusInterval
	}
	return cfg
}

// topic joins the prefix and a suffix
func (c Config) topic(suffix string) string {
	return c.Topic + "/" + suffix
}

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
