package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Built-in viewport presets used when no stored profile matches.
var builtinDevices = map[string]Device{
	"desktop": {Label: "desktop", Width: 1920, Height: 1080},
	"tablet":  {Label: "tablet", Width: 768, Height: 1024},
	"mobile":  {Label: "mobile", Width: 375, Height: 667},
}

// Fallback viewport for labels that match nothing.
const (
	FallbackWidth  = 1280
	FallbackHeight = 720
)

// BuiltinDevice returns the preset for label, matched case-insensitively,
// or the 1280x720 fallback. The returned Device keeps the caller's label.
func BuiltinDevice(label string) Device {
	if preset, ok := builtinDevices[strings.ToLower(label)]; ok {
		return Device{Label: label, Width: preset.Width, Height: preset.Height}
	}
	return Device{Label: label, Width: FallbackWidth, Height: FallbackHeight}
}

// ResolveDevices maps labels to viewports in input order. Stored profiles
// (exact name match) win over built-ins. Duplicates resolve independently.
func ResolveDevices(ctx context.Context, lookup DeviceProfileLookup, labels []string) ([]Device, error) {
	if len(labels) == 0 {
		return nil, ErrNoDevices
	}
	devices := make([]Device, 0, len(labels))
	for _, label := range labels {
		device, err := resolveDevice(ctx, lookup, label)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func resolveDevice(ctx context.Context, lookup DeviceProfileLookup, label string) (Device, error) {
	if lookup == nil {
		return BuiltinDevice(label), nil
	}
	profile, err := lookup.GetDeviceProfileByName(ctx, label)
	switch {
	case err == nil:
		return Device{Label: label, Width: profile.Width, Height: profile.Height}, nil
	case errors.Is(err, ErrNotFound):
		return BuiltinDevice(label), nil
	default:
		return Device{}, fmt.Errorf("lookup device profile %q: %w", label, err)
	}
}
