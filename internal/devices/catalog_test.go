package devices_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Duplex/internal/adapters/platform"
	"github.com/dkeye/Duplex/internal/devices"
	"github.com/dkeye/Duplex/internal/domain"
)

const playback = domain.DeviceTypePlayback

func speakers() domain.DeviceInfo {
	return domain.DeviceInfo{ID: "spk1", Name: "Speakers", Type: playback}
}

func headphones() domain.DeviceInfo {
	return domain.DeviceInfo{ID: "spk2", Name: "Headphones", Type: playback}
}

func newTestCatalog(t *testing.T) (*platform.Static, *devices.Catalog) {
	t.Helper()
	p := platform.NewStatic()
	p.SetDefaultID(playback, "spk1")
	p.SetDevices(playback, []domain.DeviceInfo{speakers(), headphones()})
	return p, devices.NewCatalog(p.Bind)
}

// Catalog notifications are delivered synchronously from the push, so a
// buffered subscription can be read immediately after the mutation.
func recvChange(t *testing.T, ch <-chan domain.DevicesChange) domain.DevicesChange {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	default:
		t.Fatal("expected a devices change event")
		return domain.DevicesChange{}
	}
}

func requireNoChange(t *testing.T, ch <-chan domain.DevicesChange) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestCatalogInitialSnapshot(t *testing.T) {
	_, c := newTestCatalog(t)

	require.Equal(t, "spk1", c.DefaultID(playback))
	require.Equal(t, []domain.DeviceInfo{speakers(), headphones()}, c.Devices(playback))
	require.Zero(t, c.SyncErrors(playback))
}

func TestCatalogInitialSyncError(t *testing.T) {
	p := platform.NewStatic()
	p.SetDefaultID(playback, "ghost")
	p.SetDevices(playback, []domain.DeviceInfo{speakers()})
	c := devices.NewCatalog(p.Bind)

	require.Equal(t, 1, c.SyncErrors(playback))
}

func TestCatalogConnectNewDevice(t *testing.T) {
	p, c := newTestCatalog(t)
	ch, cancel := c.Changes(playback)
	defer cancel()

	extra := domain.DeviceInfo{ID: "spk3", Name: "Monitor", Type: playback}
	p.PushStateChanged(playback, extra, domain.DeviceStateActive)

	ev := recvChange(t, ch)
	require.False(t, ev.DefaultChange.Changed())
	require.Len(t, ev.NowList, 3)
	require.Equal(t, extra, ev.NowList[2])
}

func TestCatalogDisconnectUnknownDeviceIsSilent(t *testing.T) {
	p, c := newTestCatalog(t)
	ch, cancel := c.Changes(playback)
	defer cancel()

	p.PushStateChanged(playback, domain.DeviceInfo{ID: "ghost", Type: playback}, domain.DeviceStateDisconnected)

	requireNoChange(t, ch)
	require.Len(t, c.Devices(playback), 2)
}

func TestCatalogInactiveFlipFiresOnce(t *testing.T) {
	p, c := newTestCatalog(t)
	ch, cancel := c.Changes(playback)
	defer cancel()

	p.PushStateChanged(playback, headphones(), domain.DeviceStateInactive)
	ev := recvChange(t, ch)
	require.True(t, ev.NowList[1].Inactive)

	// Same transition again changes nothing observable.
	p.PushStateChanged(playback, headphones(), domain.DeviceStateInactive)
	requireNoChange(t, ch)
}

func TestCatalogDefaultDisconnectRepaired(t *testing.T) {
	p, c := newTestCatalog(t)
	ch, cancel := c.Changes(playback)
	defer cancel()
	defCh, cancelDef := c.DefaultChanges(playback)
	defer cancelDef()

	// The platform already moved its default before announcing the
	// disconnect; reconciliation picks the replacement up.
	p.SetDefaultID(playback, "spk2")
	p.PushStateChanged(playback, speakers(), domain.DeviceStateDisconnected)

	ev := recvChange(t, ch)
	require.Equal(t, domain.DeviceChange{
		WasID:  "spk1",
		NowID:  "spk2",
		Reason: domain.DeviceChangeReasonDisconnected,
	}, ev.DefaultChange)
	require.Equal(t, []domain.DeviceInfo{headphones()}, ev.NowList)
	require.Equal(t, ev.DefaultChange, <-defCh)
	require.Zero(t, c.SyncErrors(playback))
}

func TestCatalogDefaultDisconnectStaleProvider(t *testing.T) {
	p, c := newTestCatalog(t)
	ch, cancel := c.Changes(playback)
	defer cancel()

	// The provider keeps answering the vanished id as default; the
	// catalog records a sync error and still reports the list change.
	p.PushStateChanged(playback, speakers(), domain.DeviceStateDisconnected)

	ev := recvChange(t, ch)
	require.False(t, ev.DefaultChange.Changed())
	require.Equal(t, []domain.DeviceInfo{headphones()}, ev.NowList)
	require.Equal(t, 1, c.SyncErrors(playback))
}

func TestCatalogDefaultChangedReasonIsAlwaysManual(t *testing.T) {
	p, c := newTestCatalog(t)
	defCh, cancel := c.DefaultChanges(playback)
	defer cancel()

	p.PushDefaultChanged(playback, "spk2", domain.DeviceChangeReasonDisconnected)

	require.Equal(t, domain.DeviceChange{
		WasID:  "spk1",
		NowID:  "spk2",
		Reason: domain.DeviceChangeReasonManual,
	}, <-defCh)
}

func TestCatalogSelfCancelingDefaultChange(t *testing.T) {
	p, c := newTestCatalog(t)
	ch, cancel := c.Changes(playback)
	defer cancel()

	p.PushDefaultChanged(playback, "spk1", domain.DeviceChangeReasonManual)

	requireNoChange(t, ch)
}

func TestCatalogForceRefreshReasons(t *testing.T) {
	t.Run("disconnected", func(t *testing.T) {
		p, c := newTestCatalog(t)
		ch, cancel := c.Changes(playback)
		defer cancel()

		p.SetDevices(playback, []domain.DeviceInfo{headphones()})
		p.SetDefaultID(playback, "spk2")
		p.PushForceRefresh(playback)

		ev := recvChange(t, ch)
		require.Equal(t, domain.DeviceChangeReasonDisconnected, ev.DefaultChange.Reason)
	})
	t.Run("connected", func(t *testing.T) {
		p, c := newTestCatalog(t)
		ch, cancel := c.Changes(playback)
		defer cancel()

		extra := domain.DeviceInfo{ID: "spk3", Name: "Monitor", Type: playback}
		p.SetDevices(playback, []domain.DeviceInfo{speakers(), headphones(), extra})
		p.SetDefaultID(playback, "spk3")
		p.PushForceRefresh(playback)

		ev := recvChange(t, ch)
		require.Equal(t, domain.DeviceChange{
			WasID:  "spk1",
			NowID:  "spk3",
			Reason: domain.DeviceChangeReasonConnected,
		}, ev.DefaultChange)
	})
	t.Run("manual", func(t *testing.T) {
		p, c := newTestCatalog(t)
		ch, cancel := c.Changes(playback)
		defer cancel()

		p.SetDefaultID(playback, "spk2")
		p.PushForceRefresh(playback)

		ev := recvChange(t, ch)
		require.Equal(t, domain.DeviceChangeReasonManual, ev.DefaultChange.Reason)
	})
}

func TestCatalogFullListRefreshMode(t *testing.T) {
	p := platform.NewStatic()
	p.SetDefaultID(playback, "spk1")
	p.SetDevices(playback, []domain.DeviceInfo{speakers()})
	p.SetFullListOnChange(playback, true)
	c := devices.NewCatalog(p.Bind)

	ch, cancel := c.Changes(playback)
	defer cancel()

	// The whole list is re-pulled on any state change, so a device that
	// appeared quietly shows up alongside the announced one.
	p.SetDevices(playback, []domain.DeviceInfo{speakers(), headphones()})
	p.PushStateChanged(playback, headphones(), domain.DeviceStateActive)

	ev := recvChange(t, ch)
	require.Equal(t, []domain.DeviceInfo{speakers(), headphones()}, ev.NowList)
}

func TestCatalogDevicesValueIsCurrentFirst(t *testing.T) {
	p, c := newTestCatalog(t)
	ch, cancel := c.DevicesValue(playback)
	defer cancel()

	require.Equal(t, []domain.DeviceInfo{speakers(), headphones()}, <-ch)

	p.PushStateChanged(playback, headphones(), domain.DeviceStateDisconnected)
	require.Equal(t, []domain.DeviceInfo{speakers()}, <-ch)
}

func TestCatalogThreadSafeResolveID(t *testing.T) {
	p, c := newTestCatalog(t)
	last := domain.DeviceResolvedID{Type: playback}

	require.Equal(t, domain.DeviceResolvedID{Value: "spk2", Type: playback},
		c.ThreadSafeResolveID(last, "spk2"))

	require.Equal(t, domain.DeviceResolvedID{Value: "spk1", Type: playback, ComputedFromDefault: true},
		c.ThreadSafeResolveID(last, "default"))

	require.Equal(t, domain.DeviceResolvedID{Value: "spk1", Type: playback, ComputedFromDefault: true},
		c.ThreadSafeResolveID(last, "ghost"))

	p.PushStateChanged(playback, headphones(), domain.DeviceStateInactive)
	require.Equal(t, domain.DeviceResolvedID{Value: "spk1", Type: playback, ComputedFromDefault: true},
		c.ThreadSafeResolveID(last, "spk2"))
}
