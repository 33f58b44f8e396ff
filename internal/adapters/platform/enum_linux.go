//go:build linux

package platform

// Driver registration: EnumerateDevices only sees registered drivers.
import (
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
)
