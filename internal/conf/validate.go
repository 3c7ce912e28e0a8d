// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, err := range []error{
		ValidateAudioSettings(&settings.Audio),
		validateProducerSettings(&settings.Producer),
		validateAPISettings(&settings.API),
		validateMQTTSettings(&settings.MQTT),
		validateJournalSettings(&settings.Journal),
	} {
		if err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// ValidateAudioSettings checks stream parameters before they reach the engine
func ValidateAudioSettings(a *AudioSettings) error {
	var problems []string

	if !slices.Contains([]string{BackendAuto, BackendMalgo, BackendVirtual}, a.Backend) {
		problems = append(problems, fmt.Sprintf("unknown audio backend %q", a.Backend))
	}
	if a.SampleRate < 1000 || a.SampleRate > 384000 {
		problems = append(problems, fmt.Sprintf("samplerate %.0f out of range 1000-384000", a.SampleRate))
	}
	if a.BlockSize < 16 || a.BlockSize > 8192 {
		problems = append(problems, fmt.Sprintf("blocksize %d out of range 16-8192", a.BlockSize))
	} else if float64(a.BlockSize) > a.SampleRate {
		problems = append(problems, "blocksize must not exceed samplerate")
	}
	if a.OutputDevice < DefaultDevice {
		problems = append(problems, fmt.Sprintf("invalid output device %d", a.OutputDevice))
	}
	if a.InputDevice < NoDevice {
		problems = append(problems, fmt.Sprintf("invalid input device %d", a.InputDevice))
	}
	if a.InputChannels < 0 || a.OutputChannels < 1 {
		problems = append(problems, "channel counts must be positive")
	}
	if a.Lag < 0 {
		problems = append(problems, "lag must not be negative")
	}
	if a.CommandBufferSize < 64 {
		problems = append(problems, "commandbuffersize must be at least 64 bytes")
	}
	if a.MaxVoices < 0 {
		problems = append(problems, "maxvoices must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("audio: %s", strings.Join(problems, ", "))
	}
	return nil
}

func validateProducerSettings(p *ProducerSettings) error {
	switch p.Source {
	case SourceTone, SourceSilence:
	case SourceFile:
		if p.File == "" {
			return fmt.Errorf("producer: file source requires producer.file")
		}
	default:
		return fmt.Errorf("producer: unknown source %q", p.Source)
	}
	if p.Gain < 0 {
		return fmt.Errorf("producer: gain must not be negative")
	}
	return nil
}

func validateAPISettings(a *APISettings) error {
	if a.Enabled && (a.Port < 1 || a.Port > 65535) {
		return fmt.Errorf("api: port %d out of range", a.Port)
	}
	return nil
}

func validateMQTTSettings(m *MQTTSettings) error {
	if !m.Enabled {
		return nil
	}
	if m.Broker == "" {
		return fmt.Errorf("mqtt: broker is required when enabled")
	}
	if m.Topic == "" || strings.ContainsAny(m.Topic, "#+") {
		return fmt.Errorf("mqtt: topic must be a plain prefix")
	}
	return nil
}

func validateJournalSettings(j *JournalSettings) error {
	if !j.Enabled {
		return nil
	}
	switch j.Type {
	case JournalSQLite:
		if j.Path == "" {
			return fmt.Errorf("journal: sqlite requires journal.path")
		}
	case JournalMySQL:
		if j.DSN == "" {
			return fmt.Errorf("journal: mysql requires journal.dsn")
		}
	default:
		return fmt.Errorf("journal: unknown type %q", j.Type)
	}
	return nil
}
