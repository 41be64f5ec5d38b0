package accel

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cudriver"
	"github.com/chiyanglin-AStar/rust-gpu-accel-framework/internal/cusim"
)

// The active driver is selected once for the whole process: libcuda if
// it can be loaded, the CPU simulator otherwise. Driver init (cuInit)
// is one-time and process-wide; a failure there is unrecoverable, so it
// is surfaced from every subsequent call rather than retried.
var (
	driverOnce sync.Once
	driverErr  error
	drv        cudriver.Driver
	simulated  bool
)

// activeDriver initializes and returns the process-wide driver.
func activeDriver() (cudriver.Driver, error) {
	driverOnce.Do(func() {
		d, err := cudriver.Load()
		if err != nil {
			klog.V(1).Infof("libcuda unavailable, using simulated driver: %v", err)
			d = cusim.New()
			simulated = true
		}
		if res := d.Init(0); res != cudriver.Success {
			driverErr = errors.Wrapf(res, "driver %q initialization failed", d.Name())
			return
		}
		drv = d
	})
	if driverErr != nil {
		return nil, driverErr
	}
	return drv, nil
}

// UsingSimulator reports whether the CPU-backed simulated driver is
// active instead of libcuda. It triggers driver selection if that has
// not happened yet.
func UsingSimulator() bool {
	_, _ = activeDriver()
	return simulated
}

// status converts a driver Result into a wrapped error, nil on Success.
// The Result is the cause, so errors.Is against cudriver codes works.
func status(op string, res cudriver.Result) error {
	if res == cudriver.Success {
		return nil
	}
	return errors.Wrapf(res, "%s failed", op)
}
