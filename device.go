package accel

import (
	"fmt"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
)

// Device identifies one physical accelerator. It is an index-derived
// handle, immutable after creation and not an owned resource: there is
// nothing to destroy.
type Device struct {
	handle  cudriver.Device
	ordinal int
}

// DeviceCount returns the number of available devices, initializing the
// driver on first use.
func DeviceCount() (int, error) {
	d, err := activeDriver()
	if err != nil {
		return 0, err
	}
	count, res := d.DeviceGetCount()
	if err := status("cuDeviceGetCount", res); err != nil {
		return 0, err
	}
	return count, nil
}

// NthDevice returns the id-th device. Out-of-range ordinals fail with a
// *DeviceNotFoundError carrying the requested id and the actual count.
func NthDevice(id int) (Device, error) {
	count, err := DeviceCount()
	if err != nil {
		return Device{}, err
	}
	if id < 0 || id >= count {
		return Device{}, &DeviceNotFoundError{ID: id, Count: count}
	}
	d, _ := activeDriver()
	handle, res := d.DeviceGet(id)
	if err := status("cuDeviceGet", res); err != nil {
		return Device{}, err
	}
	return Device{handle: handle, ordinal: id}, nil
}

// Name returns the device's display name.
func (dev Device) Name() (string, error) {
	d, err := activeDriver()
	if err != nil {
		return "", err
	}
	name, res := d.DeviceGetName(dev.handle)
	if err := status("cuDeviceGetName", res); err != nil {
		return "", err
	}
	return name, nil
}

// TotalMemory returns the device's total memory in bytes.
func (dev Device) TotalMemory() (uint64, error) {
	d, err := activeDriver()
	if err != nil {
		return 0, err
	}
	bytes, res := d.DeviceTotalMem(dev.handle)
	if err := status("cuDeviceTotalMem", res); err != nil {
		return 0, err
	}
	return bytes, nil
}

// CreateContext creates a new context on this device. The context is
// created on top of the calling thread's context stack and immediately
// popped off, so creation leaves no context current.
func (dev Device) CreateContext() (*Context, error) {
	return newContext(dev)
}

// String implements fmt.Stringer.
func (dev Device) String() string {
	return fmt.Sprintf("Device[#%d]", dev.ordinal)
}
