package accel

import "fmt"

// Error taxonomy: recoverable failures (native-call errors wrapped via
// status(), the typed errors below) are returned; programmer errors
// (zero-size allocations, size/aliasing/context mismatches in copies,
// guard stack violations) panic at the call site, since continuing
// after one risks silent corruption of device state.

// DeviceNotFoundError is returned when a device ordinal is out of
// range. It carries the requested ordinal and the actual device count.
type DeviceNotFoundError struct {
	ID    int
	Count int
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device %d not found: %d device(s) available", e.ID, e.Count)
}

// NotSupportedError is returned for operations on memory kinds that do
// not implement them, e.g. any transfer involving Array memory. It is
// distinct from a native driver failure.
type NotSupportedError struct {
	Op   string
	Kind MemoryType
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported for %s memory", e.Op, e.Kind)
}
