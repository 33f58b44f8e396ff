package devices_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Duplex/internal/adapters/platform"
	"github.com/dkeye/Duplex/internal/core"
	"github.com/dkeye/Duplex/internal/devices"
	"github.com/dkeye/Duplex/internal/domain"
)

// The resolver applies changes on its own goroutine; poll until the
// resolution settles.
func waitCurrent(t *testing.T, r *devices.Resolver, want domain.DeviceResolvedID) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Current() == want
	}, 2*time.Second, 5*time.Millisecond, "want %+v, last %+v", want, r.Current())
}

func recvResolved(t *testing.T, ch <-chan domain.DeviceResolvedID) domain.DeviceResolvedID {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resolution")
		return domain.DeviceResolvedID{}
	}
}

func TestResolverTracksDefault(t *testing.T) {
	p, c := newTestCatalog(t)
	r := devices.NewResolver(c, playback, core.NewVariable(domain.DefaultDeviceID))
	defer r.Close()

	waitCurrent(t, r, domain.DeviceResolvedID{
		Value:               "spk1",
		Type:                playback,
		ComputedFromDefault: true,
	})

	p.PushDefaultChanged(playback, "spk2", domain.DeviceChangeReasonManual)
	waitCurrent(t, r, domain.DeviceResolvedID{
		Value:               "spk2",
		Type:                playback,
		ComputedFromDefault: true,
	})
	require.Equal(t, domain.DeviceChangeReasonManual, r.LastChangeReason())
}

func TestResolverFirstConcreteResolutionIsConnected(t *testing.T) {
	_, c := newTestCatalog(t)
	r := devices.NewResolver(c, playback, core.NewVariable("spk2"))
	defer r.Close()

	waitCurrent(t, r, domain.DeviceResolvedID{Value: "spk2", Type: playback})
	require.Equal(t, domain.DeviceChangeReasonConnected, r.LastChangeReason())
}

func TestResolverFallsBackWhenSavedDisconnects(t *testing.T) {
	p, c := newTestCatalog(t)
	r := devices.NewResolver(c, playback, core.NewVariable("spk1"))
	defer r.Close()

	waitCurrent(t, r, domain.DeviceResolvedID{Value: "spk1", Type: playback})

	// spk1 vanishes and the platform promotes spk2 to default.
	p.SetDefaultID(playback, "spk2")
	p.PushStateChanged(playback, speakers(), domain.DeviceStateDisconnected)

	waitCurrent(t, r, domain.DeviceResolvedID{
		Value:               "spk2",
		Type:                playback,
		ComputedFromDefault: true,
	})
	require.Equal(t, domain.DeviceChangeReasonDisconnected, r.LastChangeReason())

	// The saved device comes back and wins again.
	p.PushStateChanged(playback, speakers(), domain.DeviceStateActive)
	waitCurrent(t, r, domain.DeviceResolvedID{Value: "spk1", Type: playback})
	require.Equal(t, domain.DeviceChangeReasonConnected, r.LastChangeReason())
}

func TestResolverIgnoresInactiveSavedDevice(t *testing.T) {
	p, c := newTestCatalog(t)
	r := devices.NewResolver(c, playback, core.NewVariable("spk2"))
	defer r.Close()

	waitCurrent(t, r, domain.DeviceResolvedID{Value: "spk2", Type: playback})

	p.PushStateChanged(playback, headphones(), domain.DeviceStateInactive)
	waitCurrent(t, r, domain.DeviceResolvedID{
		Type:                playback,
		ComputedFromDefault: true,
	})
}

func TestResolverFollowsSavedIDUpdates(t *testing.T) {
	_, c := newTestCatalog(t)
	saved := core.NewVariable(domain.DefaultDeviceID)
	r := devices.NewResolver(c, playback, saved)
	defer r.Close()

	waitCurrent(t, r, domain.DeviceResolvedID{
		Value:               "spk1",
		Type:                playback,
		ComputedFromDefault: true,
	})

	saved.Set("spk2")
	waitCurrent(t, r, domain.DeviceResolvedID{Value: "spk2", Type: playback})

	saved.Set("ghost")
	waitCurrent(t, r, domain.DeviceResolvedID{
		Value:               "spk1",
		Type:                playback,
		ComputedFromDefault: true,
	})
}

func TestResolverChangesStream(t *testing.T) {
	p, c := newTestCatalog(t)
	r := devices.NewResolver(c, playback, core.NewVariable(domain.DefaultDeviceID))
	defer r.Close()

	waitCurrent(t, r, domain.DeviceResolvedID{
		Value:               "spk1",
		Type:                playback,
		ComputedFromDefault: true,
	})

	ch, cancel := r.Changes()
	defer cancel()
	p.PushDefaultChanged(playback, "spk2", domain.DeviceChangeReasonManual)

	require.Equal(t, domain.DeviceResolvedID{
		Value:               "spk2",
		Type:                playback,
		ComputedFromDefault: true,
	}, recvResolved(t, ch))
}

func TestResolverThreadSafeCurrent(t *testing.T) {
	_, c := newTestCatalog(t)
	r := devices.NewResolver(c, playback, core.NewVariable("spk2"))
	defer r.Close()

	waitCurrent(t, r, domain.DeviceResolvedID{Value: "spk2", Type: playback})
	require.Equal(t, domain.DeviceResolvedID{Value: "spk2", Type: playback}, r.ThreadSafeCurrent())
}

func TestResolverCloseIsIdempotent(t *testing.T) {
	_, c := newTestCatalog(t)
	r := devices.NewResolver(c, playback, core.NewVariable(domain.DefaultDeviceID))
	r.Close()
	r.Close()
}
