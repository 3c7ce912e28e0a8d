// conf/consts.go hard coded constants
package conf

const (
	// DefaultDevice selects the backend's default device
	DefaultDevice = -1
	// NoDevice disables a direction, only meaningful for input
	NoDevice = -2

	ConfigFileName = "config.yaml"
	appDirName     = "av"
)

// Backend names accepted in audio.backend
const (
	BackendAuto    = "auto"
	BackendMalgo   = "malgo"
	BackendVirtual = "virtual"
)

// Producer source types accepted in producer.source
const (
	SourceTone    = "tone"
	SourceSilence = "silence"
	SourceFile    = "file"
)

// Journal database types
const (
	JournalSQLite = "sqlite"
	JournalMySQL  = "mysql"
)
