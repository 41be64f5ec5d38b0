//go:build !(linux || darwin)

package cudriver

import "github.com/pkg/errors"

// Load is not supported on platforms without dlopen; callers fall back
// to the simulated driver.
func Load() (Driver, error) {
	return nil, errors.New("libcuda binding is only supported on linux and darwin")
}
