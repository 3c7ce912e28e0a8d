package audiocore

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// DefaultCatalogTTL is how long an enumeration result is reused
const DefaultCatalogTTL = 30 * time.Second

const devicesCacheKey = "devices"

// Catalog enumerates devices through a Backend. Results are cached for
// the configured TTL; Refresh forces the next call to query the backend.
type Catalog struct {
	backend Backend
	cache   *cache.Cache
	mu      sync.Mutex // serializes backend queries
}

// NewCatalog creates a catalog for backend. A ttl of zero uses
// DefaultCatalogTTL.
func NewCatalog(backend Backend, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{
		backend: backend,
		// no janitor goroutine, expired entries are skipped by Get
		cache: cache.New(ttl, 0),
	}
}

// Devices returns all devices ordered by index. ErrNoDevice is returned,
// and nothing is cached, when the backend reports none.
func (c *Catalog) Devices() ([]DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache.Get(devicesCacheKey); ok {
		return slices.Clone(cached.([]DeviceInfo)), nil
	}

	start := time.Now()
	devices, err := c.backend.Devices()
	if err != nil {
		return nil, errors.New(fmt.Errorf("device enumeration failed: %w", err)).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioDevice).
			Context("backend", c.backend.Name()).
			Timing("enumerate_devices", time.Since(start)).
			Build()
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	slices.SortFunc(devices, func(a, b DeviceInfo) int { return a.Index - b.Index })
	c.cache.Set(devicesCacheKey, devices, cache.DefaultExpiration)

	GetLogger().Debug("enumerated audio devices",
		logger.String("backend", c.backend.Name()),
		logger.Int("count", len(devices)),
		logger.Duration("elapsed", time.Since(start)))

	return slices.Clone(devices), nil
}

// Refresh drops the cached enumeration
func (c *Catalog) Refresh() {
	c.cache.Delete(devicesCacheKey)
}

// Device returns the device with the given backend index
func (c *Catalog) Device(index int) (DeviceInfo, error) {
	devices, err := c.Devices()
	if err != nil {
		return DeviceInfo{}, err
	}
	i := slices.IndexFunc(devices, func(d DeviceInfo) bool { return d.Index == index })
	if i < 0 {
		return DeviceInfo{}, fmt.Errorf("%w: no device with index %d", ErrInvalidDevice, index)
	}
	return devices[i], nil
}

// DefaultOutput returns the device flagged as default output, or the first
// device with output channels when none is flagged.
func (c *Catalog) DefaultOutput() (DeviceInfo, error) {
	return c.defaultFor(
		func(d DeviceInfo) bool { return d.IsDefaultOutput },
		func(d DeviceInfo) bool { return d.MaxOutputChannels > 0 },
	)
}

// DefaultInput returns the device flagged as default input, or the first
// device with input channels when none is flagged.
func (c *Catalog) DefaultInput() (DeviceInfo, error) {
	return c.defaultFor(
		func(d DeviceInfo) bool { return d.IsDefaultInput && d.MaxInputChannels > 0 },
		func(d DeviceInfo) bool { return d.MaxInputChannels > 0 },
	)
}

func (c *Catalog) defaultFor(flagged, capable func(DeviceInfo) bool) (DeviceInfo, error) {
	devices, err := c.Devices()
	if err != nil {
		return DeviceInfo{}, err
	}
	if i := slices.IndexFunc(devices, flagged); i >= 0 {
		return devices[i], nil
	}
	if i := slices.IndexFunc(devices, capable); i >= 0 {
		return devices[i], nil
	}
	return DeviceInfo{}, ErrNoDefaultDevice
}
