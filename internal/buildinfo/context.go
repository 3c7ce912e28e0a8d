// Package buildinfo holds build-time metadata kept apart from user
// configuration.
package buildinfo

// UnknownValue is reported for metadata that was not injected
const UnknownValue = "unknown"

// Set with -ldflags "-X github.com/avhost/av/internal/buildinfo.Version=..."
var (
	Version   = ""
	BuildDate = ""
)

// Context carries build metadata and the persistent system identifier
type Context struct {
	Version   string
	BuildDate string
	SystemID  string
}

// New returns a Context from the linker-injected values
func New(systemID string) *Context {
	return &Context{Version: Version, BuildDate: BuildDate, SystemID: systemID}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion returns the version tag or UnknownValue
func (c *Context) GetVersion() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.Version)
}

// GetBuildDate returns the build date or UnknownValue
func (c *Context) GetBuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.BuildDate)
}

// GetSystemID returns the system identifier or UnknownValue
func (c *Context) GetSystemID() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.SystemID)
}
