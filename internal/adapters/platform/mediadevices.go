// Package platform supplies core.DeviceProvider implementations: a
// mediadevices-backed enumerator for real hardware and an in-memory
// provider that tests and demos script directly.
package platform

import (
	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/pion/mediadevices"
	"github.com/rs/zerolog/log"
)

// MediaDevices enumerates through pion/mediadevices driver registry.
// The registry has no change notifications and no default-device notion,
// so every category is marked full-refresh and the first enumerated
// device doubles as the default. Consumers call ForceRefresh (through
// the notifier) to re-pull.
type MediaDevices struct {
	notifier core.DeviceNotifier
}

func NewMediaDevices() *MediaDevices { return &MediaDevices{} }

// Bind is handed to devices.NewCatalog.
func (p *MediaDevices) Bind(n core.DeviceNotifier) core.DeviceProvider {
	p.notifier = n
	return p
}

// Refresh asks the catalog to re-pull a category; the UI calls this on
// its own cadence since the driver registry never pushes.
func (p *MediaDevices) Refresh(t domain.DeviceType) {
	if p.notifier != nil {
		p.notifier.ForceRefresh(t)
	}
}

func (p *MediaDevices) DefaultID(t domain.DeviceType) string {
	list := p.Devices(t)
	if len(list) == 0 {
		return ""
	}
	return list[0].ID
}

func (p *MediaDevices) Devices(t domain.DeviceType) []domain.DeviceInfo {
	var out []domain.DeviceInfo
	for _, info := range mediadevices.EnumerateDevices() {
		if kindToType(info.Kind) != t {
			continue
		}
		out = append(out, domain.DeviceInfo{
			ID:   info.DeviceID,
			Name: info.Label,
			Type: t,
		})
	}
	if out == nil {
		log.Debug().Str("module", "platform").Str("type", t.String()).Msg("no devices enumerated")
	}
	return out
}

func (p *MediaDevices) Device(t domain.DeviceType, id string) (domain.DeviceInfo, bool) {
	for _, info := range p.Devices(t) {
		if info.ID == id {
			return info, true
		}
	}
	return domain.DeviceInfo{}, false
}

func (p *MediaDevices) RefreshFullListOnChange(domain.DeviceType) bool { return true }

// The driver registry answers pulls directly; there is nothing to
// validate ahead of a read.
func (p *MediaDevices) ValidateDefaultID(domain.DeviceType) {}
func (p *MediaDevices) ValidateDevices(domain.DeviceType)   {}

func kindToType(kind mediadevices.MediaDeviceType) domain.DeviceType {
	switch kind {
	case mediadevices.VideoInput:
		return domain.DeviceTypeCamera
	case mediadevices.AudioInput:
		return domain.DeviceTypeCapture
	default:
		return domain.DeviceTypePlayback
	}
}
