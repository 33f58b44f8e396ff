// Package devices maintains the in-memory mirror of platform devices and
// resolves saved preferences against it.
package devices

import (
	"strings"
	"sync"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/rs/zerolog/log"
)

const typeCount = 3

func typeToIndex(t domain.DeviceType) int {
	i := int(t)
	if i < 0 || i >= typeCount {
		panic("devices: type out of range")
	}
	return i
}

var allTypes = [typeCount]domain.DeviceType{
	domain.DeviceTypePlayback,
	domain.DeviceTypeCapture,
	domain.DeviceTypeCamera,
}

// devicesChangeEvent is the single coalesced event fired per mutation.
type devicesChangeEvent struct {
	defaultChange domain.DeviceChange
	listChanged   bool
}

type deviceSet struct {
	defaultID string
	list      []domain.DeviceInfo

	changes        *core.Stream[domain.DevicesChange]
	defaultChanges *core.Stream[domain.DeviceChange]
	listValues     *core.Stream[[]domain.DeviceInfo]

	defaultChangeFrom       *string
	defaultChangeReason     domain.DeviceChangeReason
	refreshFullListOnChange bool
	listChanged             bool

	syncErrors int
}

// Catalog mirrors "what devices exist" and "which one is default" per
// category, fed by provider push notifications. Mutations run on the
// notifying goroutine; reads are value-copies under the lock and are
// safe from any goroutine.
type Catalog struct {
	provider core.DeviceProvider

	mu      sync.RWMutex
	devices [typeCount]deviceSet
}

// NewCatalog binds the provider through bind (which receives the catalog
// as notifier) and performs one initial full enumeration per category.
func NewCatalog(bind func(core.DeviceNotifier) core.DeviceProvider) *Catalog {
	c := &Catalog{}
	c.provider = bind(c)
	for i := range c.devices {
		t := allTypes[i]
		c.devices[i] = deviceSet{
			defaultID:               c.provider.DefaultID(t),
			list:                    c.provider.Devices(t),
			changes:                 core.NewStream[domain.DevicesChange](),
			defaultChanges:          core.NewStream[domain.DeviceChange](),
			listValues:              core.NewStream[[]domain.DeviceInfo](),
			refreshFullListOnChange: c.provider.RefreshFullListOnChange(t),
		}
		if c.syncedLocked(t) {
			c.logStateLocked(t)
		} else {
			c.logSyncErrorLocked(t)
		}
	}
	return c
}

// DefaultID returns the current default id for the category. The provider
// gets a chance to push corrective notifications before the read.
func (c *Catalog) DefaultID(t domain.DeviceType) string {
	c.provider.ValidateDefaultID(t)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices[typeToIndex(t)].defaultID
}

// Devices returns a copy of the current full list, validated lazily the
// same way as DefaultID.
func (c *Catalog) Devices(t domain.DeviceType) []domain.DeviceInfo {
	c.provider.ValidateDevices(t)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyList(c.devices[typeToIndex(t)].list)
}

// ValidateDefaultID asks the platform to verify its default id now; any
// correction arrives synchronously through the notifier methods.
func (c *Catalog) ValidateDefaultID(t domain.DeviceType) { c.provider.ValidateDefaultID(t) }

func (c *Catalog) ValidateDevices(t domain.DeviceType) { c.provider.ValidateDevices(t) }

// Changes fires on every catalog mutation with an observable difference.
func (c *Catalog) Changes(t domain.DeviceType) (<-chan domain.DevicesChange, func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices[typeToIndex(t)].changes.Subscribe()
}

// DefaultChanges is the filtered subset of Changes where the default id
// actually moved.
func (c *Catalog) DefaultChanges(t domain.DeviceType) (<-chan domain.DeviceChange, func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices[typeToIndex(t)].defaultChanges.Subscribe()
}

// DevicesValue starts with the current snapshot, then fires on every list
// mutation (including attribute-only changes like active/inactive).
func (c *Catalog) DevicesValue(t domain.DeviceType) (<-chan []domain.DeviceInfo, func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds := &c.devices[typeToIndex(t)]
	return ds.listValues.Subscribe(copyList(ds.list))
}

// SyncErrors reports how many reconciliation attempts failed to restore
// the default-in-list invariant for the category. Diagnostic only.
func (c *Catalog) SyncErrors(t domain.DeviceType) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devices[typeToIndex(t)].syncErrors
}

// ThreadSafeResolveID resolves a saved id against the current snapshot
// with nothing but one uncontended lock acquisition. Safe from arbitrary
// threads, including realtime audio callbacks.
func (c *Catalog) ThreadSafeResolveID(last domain.DeviceResolvedID, savedID string) domain.DeviceResolvedID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ds := &c.devices[typeToIndex(last.Type)]
	if !IsDefaultID(savedID) {
		for i := range ds.list {
			if ds.list[i].ID == savedID && !ds.list[i].Inactive {
				return domain.DeviceResolvedID{Value: savedID, Type: last.Type}
			}
		}
	}
	return domain.DeviceResolvedID{
		Value:               ds.defaultID,
		Type:                last.Type,
		ComputedFromDefault: true,
	}
}

// DefaultChanged records the platform's default-device move, reconciles
// and notifies. Part of core.DeviceNotifier.
func (c *Catalog) DefaultChanged(t domain.DeviceType, reason domain.DeviceChangeReason, nowID string) {
	_ = reason
	c.mu.Lock()
	defer c.mu.Unlock()
	ds := &c.devices[typeToIndex(t)]
	was := ds.defaultID
	ds.defaultChangeFrom = &was
	ds.defaultID = nowID
	ds.defaultChangeReason = domain.DeviceChangeReasonManual
	c.validateAfterDefaultChangeLocked(t)
	c.maybeNotifyLocked(t)
}

// DeviceStateChanged applies one device's state transition, reconciles
// and notifies. Part of core.DeviceNotifier.
func (c *Catalog) DeviceStateChanged(t domain.DeviceType, id string, state domain.DeviceStateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds := &c.devices[typeToIndex(t)]
	if ds.refreshFullListOnChange {
		c.refreshDevicesLocked(t)
	}
	i := indexOf(ds.list, id)
	if i < 0 {
		if state == domain.DeviceStateDisconnected {
			return
		}
		if info, ok := c.provider.Device(t, id); ok {
			ds.list = append(ds.list, info)
			ds.listChanged = true
		}
	} else if state == domain.DeviceStateDisconnected {
		ds.list = append(ds.list[:i], ds.list[i+1:]...)
		ds.listChanged = true
	} else {
		inactive := state != domain.DeviceStateActive
		if ds.list[i].Inactive != inactive {
			ds.list[i].Inactive = inactive
			ds.listChanged = true
		}
	}
	c.validateAfterListChangeLocked(t)
	c.maybeNotifyLocked(t)
}

// ForceRefresh re-pulls both the default id and the full list, derives
// the change reason from the default's disappearance or reappearance,
// and fires one coalesced event. Part of core.DeviceNotifier.
func (c *Catalog) ForceRefresh(t domain.DeviceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds := &c.devices[typeToIndex(t)]
	oldDefault := ds.defaultID
	oldList := ds.list
	c.refreshDevicesLocked(t)
	nowDefault := c.provider.DefaultID(t)
	if nowDefault != ds.defaultID {
		was := ds.defaultID
		ds.defaultChangeFrom = &was
		ds.defaultID = nowDefault
		switch {
		case oldDefault != "" && indexOf(ds.list, oldDefault) < 0:
			ds.defaultChangeReason = domain.DeviceChangeReasonDisconnected
		case nowDefault != "" && indexOf(oldList, nowDefault) < 0:
			ds.defaultChangeReason = domain.DeviceChangeReasonConnected
		default:
			ds.defaultChangeReason = domain.DeviceChangeReasonManual
		}
	}
	c.maybeNotifyLocked(t)
}

// synced: the default id, if any, is present in the list.
func (c *Catalog) syncedLocked(t domain.DeviceType) bool {
	ds := &c.devices[typeToIndex(t)]
	return indexOf(ds.list, ds.defaultID) >= 0
}

func (c *Catalog) validateAfterListChangeLocked(t domain.DeviceType) {
	ds := &c.devices[typeToIndex(t)]
	if !ds.listChanged || c.syncedLocked(t) {
		return
	}
	was := ds.defaultID
	ds.defaultChangeFrom = &was
	ds.defaultID = c.provider.DefaultID(t)
	ds.defaultChangeReason = domain.DeviceChangeReasonDisconnected
	if *ds.defaultChangeFrom != ds.defaultID && c.syncedLocked(t) {
		return
	}
	c.refreshDevicesLocked(t)
	if !ds.listChanged || !c.syncedLocked(t) {
		c.logSyncErrorLocked(t)
	}
}

func (c *Catalog) validateAfterDefaultChangeLocked(t domain.DeviceType) {
	ds := &c.devices[typeToIndex(t)]
	if ds.defaultChangeFrom == nil ||
		*ds.defaultChangeFrom == ds.defaultID ||
		c.syncedLocked(t) {
		return
	}
	c.refreshDevicesLocked(t)
	if ds.listChanged && c.syncedLocked(t) {
		return
	}
	changedOneMoreFrom := ds.defaultID
	ds.defaultID = c.provider.DefaultID(t)
	ds.defaultChangeReason = domain.DeviceChangeReasonDisconnected
	if ds.defaultID == changedOneMoreFrom || !c.syncedLocked(t) {
		c.logSyncErrorLocked(t)
	}
}

// maybeNotify collapses a self-canceling default change and elides the
// event entirely when nothing observable happened. Edge-triggered: the
// pending flags are consumed here.
func (c *Catalog) maybeNotifyLocked(t domain.DeviceType) {
	ds := &c.devices[typeToIndex(t)]
	if ds.defaultChangeFrom != nil && *ds.defaultChangeFrom == ds.defaultID {
		ds.defaultChangeFrom = nil
	}
	if !ds.listChanged && ds.defaultChangeFrom == nil {
		return
	}
	listChanged := ds.listChanged
	ds.listChanged = false
	from := ds.defaultChangeFrom
	ds.defaultChangeFrom = nil
	reason := ds.defaultChangeReason
	ds.defaultChangeReason = domain.DeviceChangeReasonManual

	var change domain.DeviceChange
	if from != nil {
		change = domain.DeviceChange{WasID: *from, NowID: ds.defaultID, Reason: reason}
	}
	list := copyList(ds.list)
	ds.changes.Emit(domain.DevicesChange{DefaultChange: change, NowList: list})
	if change.Changed() {
		ds.defaultChanges.Emit(change)
	}
	if listChanged {
		ds.listValues.Emit(list)
	}
}

func (c *Catalog) refreshDevicesLocked(t domain.DeviceType) {
	ds := &c.devices[typeToIndex(t)]
	list := c.provider.Devices(t)
	if !equalLists(ds.list, list) {
		ds.list = list
		ds.listChanged = true
	}
}

func (c *Catalog) logSyncErrorLocked(t domain.DeviceType) {
	ds := &c.devices[typeToIndex(t)]
	ds.syncErrors++
	log.Error().
		Str("module", "devices").
		Str("type", t.String()).
		Str("default", ds.defaultID).
		Str("list", serializeList(ds.list)).
		Msg("can't sync default device")
}

func (c *Catalog) logStateLocked(t domain.DeviceType) {
	ds := &c.devices[typeToIndex(t)]
	log.Info().
		Str("module", "devices").
		Str("type", t.String()).
		Str("default", ds.defaultID).
		Str("list", serializeList(ds.list)).
		Bool("full_list_refresh", ds.refreshFullListOnChange).
		Msg("device state")
}

func indexOf(list []domain.DeviceInfo, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func copyList(list []domain.DeviceInfo) []domain.DeviceInfo {
	out := make([]domain.DeviceInfo, len(list))
	copy(out, list)
	return out
}

func equalLists(a, b []domain.DeviceInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func serializeList(list []domain.DeviceInfo) string {
	parts := make([]string, 0, len(list))
	for _, d := range list {
		parts = append(parts, `"`+d.Name+`" <`+d.ID+`>`)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}
