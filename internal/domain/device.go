// Package domain contains entity without logic, just meta-data
package domain

import "fmt"

// DefaultDeviceID is the sentinel a saved preference uses to mean
// "follow whatever the platform designates as default".
const DefaultDeviceID = "default"

type DeviceType uint8

const (
	DeviceTypePlayback DeviceType = iota
	DeviceTypeCapture
	DeviceTypeCamera
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypePlayback:
		return "Playback"
	case DeviceTypeCapture:
		return "Capture"
	case DeviceTypeCamera:
		return "Camera"
	}
	panic(fmt.Sprintf("unexpected device type %d", uint8(t)))
}

type DeviceStateChange uint8

const (
	DeviceStateActive DeviceStateChange = iota
	DeviceStateInactive
	DeviceStateDisconnected
)

type DeviceChangeReason uint8

const (
	DeviceChangeReasonManual DeviceChangeReason = iota
	DeviceChangeReasonConnected
	DeviceChangeReasonDisconnected
)

func (r DeviceChangeReason) String() string {
	switch r {
	case DeviceChangeReasonManual:
		return "manual"
	case DeviceChangeReasonConnected:
		return "connected"
	case DeviceChangeReasonDisconnected:
		return "disconnected"
	}
	panic(fmt.Sprintf("unexpected device change reason %d", uint8(r)))
}

// DeviceInfo describes one device as reported by the platform layer.
// An empty ID means "no device".
type DeviceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     DeviceType
	Inactive bool `json:"inactive"`
}

func (d DeviceInfo) Valid() bool { return d.ID != "" }

// DeviceChange is a default-device transition. It is meaningful
// only when the id actually moved.
type DeviceChange struct {
	WasID  string
	NowID  string
	Reason DeviceChangeReason
}

func (c DeviceChange) Changed() bool { return c.WasID != c.NowID }

// DevicesChange is the atomic snapshot delivered on every catalog mutation.
type DevicesChange struct {
	DefaultChange DeviceChange
	NowList       []DeviceInfo
}

// DeviceResolvedID is the concrete device a consumer should open after
// applying preference + availability policy. Comparable, so it doubles
// as the dedup key for "did the resolution actually change".
type DeviceResolvedID struct {
	Value               string
	Type                DeviceType
	ComputedFromDefault bool
}

func (r DeviceResolvedID) IsDefault() bool {
	return r.ComputedFromDefault || r.Value == "" || r.Value == DefaultDeviceID
}
