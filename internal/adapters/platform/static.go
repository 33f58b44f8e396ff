package platform

import (
	"sync"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

type staticState struct {
	defaultID string
	list      []domain.DeviceInfo
	fullList  bool
}

// Static is an in-memory provider scripted by tests and demos. The Set*
// methods mutate silently, the way a backend that changed behind the
// catalog's back would; the Push* methods mutate and then notify like a
// live platform callback.
type Static struct {
	mu       sync.Mutex
	notifier core.DeviceNotifier
	state    [3]staticState
}

func NewStatic() *Static { return &Static{} }

func (p *Static) Bind(n core.DeviceNotifier) core.DeviceProvider {
	p.notifier = n
	return p
}

func (p *Static) SetDefaultID(t domain.DeviceType, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state[t].defaultID = id
}

func (p *Static) SetDevices(t domain.DeviceType, list []domain.DeviceInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state[t].list = append([]domain.DeviceInfo(nil), list...)
}

func (p *Static) SetFullListOnChange(t domain.DeviceType, full bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state[t].fullList = full
}

// PushDefaultChanged mutates the default and raises the platform
// notification for it.
func (p *Static) PushDefaultChanged(t domain.DeviceType, id string, reason domain.DeviceChangeReason) {
	p.mu.Lock()
	p.state[t].defaultID = id
	p.mu.Unlock()
	p.notifier.DefaultChanged(t, reason, id)
}

// PushStateChanged applies an incremental device event. The list is
// mutated first so that a full-refresh catalog re-pulling inside the
// notification sees the new state.
func (p *Static) PushStateChanged(t domain.DeviceType, info domain.DeviceInfo, change domain.DeviceStateChange) {
	p.mu.Lock()
	st := &p.state[t]
	switch change {
	case domain.DeviceStateDisconnected:
		st.list = removeDevice(st.list, info.ID)
	case domain.DeviceStateActive, domain.DeviceStateInactive:
		info.Inactive = change == domain.DeviceStateInactive
		st.list = upsertDevice(st.list, info)
	}
	p.mu.Unlock()
	p.notifier.DeviceStateChanged(t, info.ID, change)
}

func (p *Static) PushForceRefresh(t domain.DeviceType) {
	p.notifier.ForceRefresh(t)
}

func (p *Static) DefaultID(t domain.DeviceType) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state[t].defaultID
}

func (p *Static) Devices(t domain.DeviceType) []domain.DeviceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.DeviceInfo(nil), p.state[t].list...)
}

func (p *Static) Device(t domain.DeviceType, id string) (domain.DeviceInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, info := range p.state[t].list {
		if info.ID == id {
			return info, true
		}
	}
	return domain.DeviceInfo{}, false
}

func (p *Static) RefreshFullListOnChange(t domain.DeviceType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state[t].fullList
}

func (p *Static) ValidateDefaultID(domain.DeviceType) {}
func (p *Static) ValidateDevices(domain.DeviceType)   {}

func removeDevice(list []domain.DeviceInfo, id string) []domain.DeviceInfo {
	out := list[:0]
	for _, info := range list {
		if info.ID != id {
			out = append(out, info)
		}
	}
	return out
}

func upsertDevice(list []domain.DeviceInfo, info domain.DeviceInfo) []domain.DeviceInfo {
	for i := range list {
		if list[i].ID == info.ID {
			list[i] = info
			return list
		}
	}
	return append(list, info)
}
