package accel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceEnumeration(t *testing.T) {
	count, err := DeviceCount()
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, 1)

	dev, err := NthDevice(0)
	require.NoError(t, err)
	require.Equal(t, "Device[#0]", dev.String())

	name, err := dev.Name()
	require.NoError(t, err)
	require.NotEmpty(t, name)

	total, err := dev.TotalMemory()
	require.NoError(t, err)
	require.Greater(t, total, uint64(0))
}

func TestNthDeviceOutOfRange(t *testing.T) {
	count, err := DeviceCount()
	require.NoError(t, err)

	_, err = NthDevice(count)
	var notFound *DeviceNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, count, notFound.ID)
	require.Equal(t, count, notFound.Count)

	_, err = NthDevice(-1)
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, -1, notFound.ID)
}
