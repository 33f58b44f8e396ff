package devices

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Duplex/internal/domain"
)

func TestIsDefaultID(t *testing.T) {
	require.True(t, IsDefaultID(""))
	require.True(t, IsDefaultID(domain.DefaultDeviceID))
	require.False(t, IsDefaultID("hw:0,0"))
}

func TestDeviceIDOrDefault(t *testing.T) {
	require.Equal(t, domain.DefaultDeviceID, DeviceIDOrDefault(""))
	require.Equal(t, domain.DefaultDeviceID, DeviceIDOrDefault(domain.DefaultDeviceID))
	require.Equal(t, "hw:0,0", DeviceIDOrDefault("hw:0,0"))
}

func TestDeviceIDWithFallback(t *testing.T) {
	require.Equal(t, "mic-1", DeviceIDWithFallback("mic-1", "fallback"))
	require.Equal(t, "fallback", DeviceIDWithFallback("", "fallback"))
	// The sentinel is a real preference (system default), not an absence.
	require.Equal(t, domain.DefaultDeviceID, DeviceIDWithFallback(domain.DefaultDeviceID, "fallback"))
	require.Equal(t, domain.DefaultDeviceID, DeviceIDWithFallback("", ""))
}
