package platform_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/materna-health/wearlink/internal/platform"
)

func TestHostGateGranted(t *testing.T) {
	gate := platform.NewHostGate(func() bool { return true })

	require.NoError(t, gate.EnsureRadioPermissions())
	require.NoError(t, gate.EnsureRadioPermissions())
}

func TestHostGateDenied(t *testing.T) {
	gate := platform.NewHostGate(func() bool { return false })

	err := gate.EnsureRadioPermissions()
	assert.ErrorIs(t, err, platform.ErrPermissionDenied)
}

func TestHostGateCachesUntilInvalidated(t *testing.T) {
	granted := false
	probes := 0
	gate := platform.NewHostGate(func() bool {
		probes++
		return granted
	})

	// Denied result is cached; the probe runs once.
	assert.Error(t, gate.EnsureRadioPermissions())
	assert.Error(t, gate.EnsureRadioPermissions())
	assert.Equal(t, 1, probes)

	// After the user changes settings, callers invalidate and re-probe.
	granted = true
	gate.Invalidate()
	assert.NoError(t, gate.EnsureRadioPermissions())
	assert.Equal(t, 2, probes)
}

func TestNormalizeUUID(t *testing.T) {
	assert.Equal(t, "180d", platform.NormalizeUUID("180D"))
	assert.Equal(t,
		"4fafc2011fb5459e8fccc5c9c331914b",
		platform.NormalizeUUID("4FAFC201-1FB5-459E-8FCC-C5C9C331914B"))
}
