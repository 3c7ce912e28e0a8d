package malgo

import (
	"runtime"
	"slices"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/avhost/av/internal/audiocore"
	"github.com/avhost/av/internal/errors"
)

// fallbackChannels is assumed when a device reports no native formats.
// miniaudio converts channel counts, so the value only caps requests.
const fallbackChannels = 2

// deviceIDs holds the per-direction miniaudio IDs behind one merged index
type deviceIDs struct {
	playback *malgo.DeviceID
	capture  *malgo.DeviceID
}

// platformBackends returns the miniaudio backends to try on this OS
func platformBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendPulseaudio, malgo.BackendAlsa, malgo.BackendJack}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func initContext(backends []malgo.Backend) (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(backends, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Context("os", runtime.GOOS).
			Build()
	}
	return ctx, nil
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

// enumerate lists playback and capture devices and merges them into one
// index space. Devices appearing in both lists under the same name become
// one duplex entry. Playback devices come first, in miniaudio order.
func enumerate(ctx *malgo.AllocatedContext) ([]audiocore.DeviceInfo, map[int]deviceIDs, error) {
	playback, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, nil, enumerateError(err, "playback")
	}
	capture, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, nil, enumerateError(err, "capture")
	}

	var devices []audiocore.DeviceInfo
	ids := make(map[int]deviceIDs)

	for i := range playback {
		info := &playback[i]
		if skipDevice(info.Name()) {
			continue
		}
		idx := len(devices)
		devices = append(devices, audiocore.DeviceInfo{
			Index:             idx,
			Name:              info.Name(),
			MaxOutputChannels: maxChannels(ctx, malgo.Playback, info),
			IsDefaultOutput:   info.IsDefault == 1,
		})
		ids[idx] = deviceIDs{playback: &info.ID}
	}

	for i := range capture {
		info := &capture[i]
		if skipDevice(info.Name()) {
			continue
		}
		channels := maxChannels(ctx, malgo.Capture, info)

		if j := slices.IndexFunc(devices, func(d audiocore.DeviceInfo) bool {
			return d.Name == info.Name() && d.MaxInputChannels == 0
		}); j >= 0 {
			devices[j].MaxInputChannels = channels
			devices[j].MaxDuplexChannels = min(channels, devices[j].MaxOutputChannels)
			devices[j].IsDefaultInput = info.IsDefault == 1
			entry := ids[j]
			entry.capture = &info.ID
			ids[j] = entry
			continue
		}

		idx := len(devices)
		devices = append(devices, audiocore.DeviceInfo{
			Index:            idx,
			Name:             info.Name(),
			MaxInputChannels: channels,
			IsDefaultInput:   info.IsDefault == 1,
		})
		ids[idx] = deviceIDs{capture: &info.ID}
	}

	return devices, ids, nil
}

// maxChannels queries detailed device info for native formats
func maxChannels(ctx *malgo.AllocatedContext, kind malgo.DeviceType, info *malgo.DeviceInfo) int {
	detailed, err := ctx.DeviceInfo(kind, info.ID, malgo.Shared)
	if err != nil {
		return fallbackChannels
	}
	channels := 0
	for _, f := range detailed.Formats {
		channels = max(channels, int(f.Channels))
	}
	if channels == 0 {
		return fallbackChannels
	}
	return channels
}

// skipDevice filters the null sink miniaudio exposes on some hosts
func skipDevice(name string) bool {
	return strings.Contains(name, "Discard all samples")
}

func enumerateError(err error, direction string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryAudioDevice).
		Context("operation", "enumerate_devices").
		Context("direction", direction).
		Build()
}
