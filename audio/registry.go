package audio

import (
	"fmt"
	"io"
	"log/slog"
)

// Registry 只读地枚举驱动和设备，不影响已激活的设备
type Registry struct {
	factories []BackendFactory
	logger    *slog.Logger
}

func NewRegistry(logger *slog.Logger, factories ...BackendFactory) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{factories: factories, logger: logger}
}

// with builds a short-lived device manager for one query.
func (r *Registry) with(fn func(dm *deviceManager) error) error {
	dm, err := newDeviceManager(r.factories, r.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManagerConstruction, err)
	}
	defer func() {
		if err := dm.close(); err != nil {
			r.logger.Warn("Failed to release enumeration backends", "error", err)
		}
	}()
	return fn(dm)
}

// Drivers 返回所有驱动名
func (r *Registry) Drivers() ([]string, error) {
	var names []string
	err := r.with(func(dm *deviceManager) error {
		for _, d := range dm.drivers {
			names = append(names, d.Name())
		}
		return nil
	})
	return names, err
}

// Devices 重新扫描驱动后返回其设备名，顺序与驱动上报一致
func (r *Registry) Devices(driver string) ([]string, error) {
	var names []string
	err := r.with(func(dm *deviceManager) error {
		d := dm.driver(driver)
		if d == nil {
			return fmt.Errorf("%w: %q", ErrDriverNotFound, driver)
		}
		if err := d.Scan(); err != nil {
			r.logger.Warn("Driver rescan failed", "driver", driver, "error", err)
		}
		names = d.DeviceNames()
		return nil
	})
	return names, err
}

// Dump writes one line per driver and one per device, and returns the
// total device count.
func (r *Registry) Dump(w io.Writer) (int, error) {
	total := 0
	err := r.with(func(dm *deviceManager) error {
		for _, d := range dm.drivers {
			if err := d.Scan(); err != nil {
				r.logger.Warn("Driver rescan failed", "driver", d.Name(), "error", err)
			}
			if _, err := fmt.Fprintln(w, d.Name()); err != nil {
				return err
			}
			for _, dev := range d.DeviceNames() {
				if _, err := fmt.Fprintf(w, "%s: %s\n", d.Name(), dev); err != nil {
					return err
				}
				total++
			}
		}
		return nil
	})
	return total, err
}
