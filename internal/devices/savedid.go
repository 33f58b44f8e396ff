package devices

import "github.com/dkeye/Duplex/internal/domain"

// IsDefaultID reports whether a saved id means "follow the platform
// default" rather than a concrete device.
func IsDefaultID(id string) bool {
	return id == "" || id == domain.DefaultDeviceID
}

// DeviceIDOrDefault normalizes an empty saved id to the default sentinel.
func DeviceIDOrDefault(id string) string {
	if id != "" {
		return id
	}
	return domain.DefaultDeviceID
}

// DeviceIDWithFallback prefers id, then fallback, then the sentinel.
func DeviceIDWithFallback(id, fallback string) string {
	if id != "" {
		return id
	}
	if fallback != "" {
		return fallback
	}
	return domain.DefaultDeviceID
}
