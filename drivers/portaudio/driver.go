package portaudio

import (
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/audiodev/audio"
)

var _ audio.Driver = (*driver)(nil)

type driver struct {
	mu      sync.Mutex
	name    string
	apiType pa.HostApiType
	logger  *slog.Logger
	api     *pa.HostApiInfo
}

func (d *driver) Name() string { return d.name }

// Scan re-reads the host API's device list. PortAudio only enumerates
// hardware during Initialize, so devices plugged in later show up after
// the device manager has been rebuilt.
func (d *driver) Scan() error {
	apis, err := pa.HostApis()
	if err != nil {
		return fmt.Errorf("failed to list host APIs: %w", err)
	}
	for _, api := range apis {
		if api.Type == d.apiType {
			d.mu.Lock()
			d.api = api
			d.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("host API %s disappeared", d.name)
}

func (d *driver) DeviceNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api == nil {
		return nil
	}
	names := make([]string, 0, len(d.api.Devices))
	for _, dev := range d.api.Devices {
		names = append(names, dev.Name)
	}
	return names
}

func (d *driver) lookup(name string, input bool) *pa.DeviceInfo {
	if name == "" {
		if input {
			return d.api.DefaultInputDevice
		}
		return d.api.DefaultOutputDevice
	}
	for _, dev := range d.api.Devices {
		if dev.Name != name {
			continue
		}
		if input && dev.MaxInputChannels > 0 || !input && dev.MaxOutputChannels > 0 {
			return dev
		}
	}
	return nil
}

func (d *driver) CreateDevice(outputName, inputName string) (audio.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.api == nil {
		return nil, fmt.Errorf("%w: %s not scanned", audio.ErrDeviceNotFound, d.name)
	}

	out := d.lookup(outputName, false)
	if out == nil && outputName != "" {
		return nil, fmt.Errorf("%w: output %q", audio.ErrDeviceNotFound, outputName)
	}
	in := d.lookup(inputName, true)
	if in == nil && inputName != "" {
		return nil, fmt.Errorf("%w: input %q", audio.ErrDeviceNotFound, inputName)
	}
	if out == nil && in == nil {
		return nil, fmt.Errorf("%w: %s has no default devices", audio.ErrDeviceNotFound, d.name)
	}
	return &device{drv: d, output: out, input: in, preprocessing: true}, nil
}
