package core

import (
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/pion/rtp"
)

// DeviceProvider is the platform device layer. Pull methods must answer
// from the platform's own state without calling back into the notifier;
// the Validate methods MAY synchronously push corrective notifications
// before returning (pull-before-read), so callers must not hold the
// catalog lock across them.
//
// Query failures degrade: DefaultID returns "", Devices returns an empty
// list, Device returns ok=false. Providers log their own diagnostics.
type DeviceProvider interface {
	DefaultID(t domain.DeviceType) string
	Devices(t domain.DeviceType) []domain.DeviceInfo
	Device(t domain.DeviceType, id string) (domain.DeviceInfo, bool)

	// RefreshFullListOnChange reports whether this platform cannot patch
	// the list incrementally and must always be fully re-enumerated.
	RefreshFullListOnChange(t domain.DeviceType) bool

	ValidateDefaultID(t domain.DeviceType)
	ValidateDevices(t domain.DeviceType)
}

// DeviceNotifier is what a provider pushes raw platform notifications
// into. The catalog implements it; a provider receives it at bind time.
type DeviceNotifier interface {
	DefaultChanged(t domain.DeviceType, reason domain.DeviceChangeReason, nowID string)
	DeviceStateChanged(t domain.DeviceType, id string, state domain.DeviceStateChange)
	ForceRefresh(t domain.DeviceType)
}

// FrameSink receives remote media for display/metering. Decoding is out
// of scope here; packets are handed over as depacketized RTP.
type FrameSink interface {
	VideoRTP(pkt *rtp.Packet)
	AudioRTP(pkt *rtp.Packet)
}
