package devices

import (
	"sync"

	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/domain"
)

// Resolver translates a saved preference (empty, "default", or a concrete
// id that may not currently exist) into the device id to actually open.
// One run goroutine consumes the saved-id stream and the catalog's change
// stream; the last resolution is mirrored under a mutex so arbitrary
// threads can poll it without touching the reactive pipeline.
type Resolver struct {
	catalog *Catalog
	typ     domain.DeviceType

	mu               sync.Mutex
	savedID          string
	current          domain.DeviceResolvedID
	lastChangeReason domain.DeviceChangeReason

	data *core.Variable[domain.DeviceResolvedID]

	quit chan struct{}
	done chan struct{}
}

// NewResolver starts tracking savedID immediately. Close must be called
// when the owner goes away.
func NewResolver(catalog *Catalog, typ domain.DeviceType, savedID *core.Variable[string]) *Resolver {
	r := &Resolver{
		catalog: catalog,
		typ:     typ,
		current: domain.DeviceResolvedID{Type: typ},
		data:    core.NewVariable(domain.DeviceResolvedID{Type: typ}),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.run(savedID)
	return r
}

func (r *Resolver) Close() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
	<-r.done
}

// Current pulls a platform validation first (pull-before-read), then
// returns the latest resolution.
func (r *Resolver) Current() domain.DeviceResolvedID {
	r.mu.Lock()
	saved := r.savedID
	r.mu.Unlock()
	if IsDefaultID(saved) {
		r.catalog.ValidateDefaultID(r.typ)
	} else {
		r.catalog.ValidateDevices(r.typ)
	}
	return r.data.Get()
}

// Value is current-value-first; Changes is edge-only.
func (r *Resolver) Value() (<-chan domain.DeviceResolvedID, func())   { return r.data.Value() }
func (r *Resolver) Changes() (<-chan domain.DeviceResolvedID, func()) { return r.data.Changes() }

// ThreadSafeCurrent re-resolves the last-known snapshot against the
// catalog without blocking on the owner goroutine. Safe from any thread.
func (r *Resolver) ThreadSafeCurrent() domain.DeviceResolvedID {
	r.mu.Lock()
	saved := r.savedID
	current := r.current
	r.mu.Unlock()
	return r.catalog.ThreadSafeResolveID(current, saved)
}

func (r *Resolver) LastChangeReason() domain.DeviceChangeReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastChangeReason
}

func (r *Resolver) run(savedID *core.Variable[string]) {
	defer close(r.done)

	savedCh, cancelSaved := savedID.Value()
	defer cancelSaved()
	changesCh, cancelChanges := r.catalog.Changes(r.typ)
	defer cancelChanges()

	for {
		select {
		case <-r.quit:
			return
		case id, ok := <-savedCh:
			if !ok {
				return
			}
			r.mu.Lock()
			r.savedID = id
			r.mu.Unlock()
			r.trackSavedID()
		case change, ok := <-changesCh:
			if !ok {
				return
			}
			r.mu.Lock()
			saved := r.savedID
			r.mu.Unlock()
			if IsDefaultID(saved) {
				if change.DefaultChange.Changed() {
					r.applyDefaultChange(change.DefaultChange)
				}
			} else {
				r.applyDevicesChange(change)
			}
		}
	}
}

// trackSavedID re-derives the resolution for a freshly arrived saved id,
// as if (re)subscribing: the catalog's present default and list form the
// initial event.
func (r *Resolver) trackSavedID() {
	now := r.catalog.DefaultID(r.typ)
	r.mu.Lock()
	saved := r.savedID
	r.mu.Unlock()
	initial := domain.DeviceChange{WasID: now, NowID: now}
	if IsDefaultID(saved) {
		r.applyDefaultChange(initial)
		return
	}
	r.applyDevicesChange(domain.DevicesChange{
		DefaultChange: initial,
		NowList:       r.catalog.Devices(r.typ),
	})
}

func (r *Resolver) applyDefaultChange(change domain.DeviceChange) {
	r.setCurrent(
		domain.DeviceResolvedID{
			Value:               change.NowID,
			Type:                r.typ,
			ComputedFromDefault: true,
		},
		change.Reason,
	)
}

func (r *Resolver) applyDevicesChange(change domain.DevicesChange) {
	r.mu.Lock()
	saved := r.savedID
	r.mu.Unlock()
	now := r.data.Get()

	if i := indexOf(change.NowList, saved); i >= 0 && !change.NowList[i].Inactive {
		result := domain.DeviceResolvedID{Value: saved, Type: r.typ}
		reason := r.LastChangeReason()
		if now != result {
			// The first resolution to a found device is tagged Connected
			// even when no prior disconnect was observed.
			reason = domain.DeviceChangeReasonConnected
		}
		r.setCurrent(result, reason)
		return
	}
	reason := change.DefaultChange.Reason
	if now.Value == saved && !now.ComputedFromDefault {
		reason = domain.DeviceChangeReasonDisconnected
	}
	r.setCurrent(
		domain.DeviceResolvedID{
			Value:               change.DefaultChange.NowID,
			Type:                r.typ,
			ComputedFromDefault: true,
		},
		reason,
	)
}

func (r *Resolver) setCurrent(id domain.DeviceResolvedID, reason domain.DeviceChangeReason) {
	r.mu.Lock()
	r.current = id
	r.lastChangeReason = reason
	r.mu.Unlock()
	r.data.Set(id)
}
