// Package loopback provides virtual audio drivers that need no hardware.
// Each device runs a clock goroutine at the requested rate and feeds the
// previous output buffer back as input.
package loopback

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/lisuiheng/audiodev/audio"
)

var (
	ErrDeviceBusy        = errors.New("device already in use")
	ErrUnsupportedFormat = errors.New("unsupported stream format")
)

const (
	DefaultMaxChannels = 32
	MinBufferSize      = 16
	MaxBufferSize      = 16384
	MaxSampleRate      = 768000
)

// Config 定义虚拟驱动及其设备
type Config struct {
	Drivers     []DriverConfig `mapstructure:"drivers"`
	MaxChannels int            `mapstructure:"max_channels"`
}

type DriverConfig struct {
	Name    string   `mapstructure:"name"`
	Devices []string `mapstructure:"devices"`
}

// DefaultConfig 返回一个带单个设备的 "Loopback" 驱动
func DefaultConfig() Config {
	return Config{
		Drivers:     []DriverConfig{{Name: "Loopback", Devices: []string{"Loopback"}}},
		MaxChannels: DefaultMaxChannels,
	}
}

var _ audio.Backend = (*Backend)(nil)

// Backend 持有虚拟驱动。同一实例可被多次 Open，设备占用状态在各次之间共享。
type Backend struct {
	drivers []*Driver
	logger  *slog.Logger
}

func New(cfg Config) *Backend {
	maxCh := cfg.MaxChannels
	if maxCh <= 0 {
		maxCh = DefaultMaxChannels
	}
	b := &Backend{logger: slog.Default()}
	for _, dc := range cfg.Drivers {
		b.drivers = append(b.drivers, &Driver{
			name:        dc.Name,
			attached:    slices.Clone(dc.Devices),
			maxChannels: maxCh,
			busy:        make(map[string]bool),
			backend:     b,
		})
	}
	return b
}

// Open 满足 audio.BackendFactory
func (b *Backend) Open(logger *slog.Logger) (audio.Backend, error) {
	if logger != nil {
		b.logger = logger
	}
	if len(b.drivers) == 0 {
		return nil, errors.New("loopback: no drivers configured")
	}
	return b, nil
}

func (b *Backend) Drivers() []audio.Driver {
	out := make([]audio.Driver, len(b.drivers))
	for i, d := range b.drivers {
		out[i] = d
	}
	return out
}

// Driver 按名查找虚拟驱动，用于模拟热插拔
func (b *Backend) Driver(name string) *Driver {
	for _, d := range b.drivers {
		if d.name == name {
			return d
		}
	}
	return nil
}

func (b *Backend) Close() error { return nil }

var _ audio.Driver = (*Driver)(nil)

type Driver struct {
	mu          sync.Mutex
	name        string
	attached    []string
	scanned     []string
	maxChannels int
	busy        map[string]bool
	backend     *Backend
}

func (d *Driver) Name() string { return d.name }

// Attach plugs in a device; it becomes visible after the next Scan.
func (d *Driver) Attach(device string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.attached, device) {
		d.attached = append(d.attached, device)
	}
}

// Detach unplugs a device; it disappears after the next Scan.
func (d *Driver) Detach(device string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = slices.DeleteFunc(d.attached, func(s string) bool { return s == device })
}

func (d *Driver) Scan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanned = slices.Clone(d.attached)
	return nil
}

func (d *Driver) DeviceNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.scanned)
}

func (d *Driver) resolve(name string) (string, bool) {
	if name == "" {
		if len(d.scanned) == 0 {
			return "", false
		}
		return d.scanned[0], true
	}
	return name, slices.Contains(d.scanned, name)
}

func (d *Driver) CreateDevice(outputName, inputName string) (audio.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out, ok := d.resolve(outputName)
	if !ok {
		return nil, fmt.Errorf("%w: output %q", audio.ErrDeviceNotFound, outputName)
	}
	in, ok := d.resolve(inputName)
	if !ok {
		return nil, fmt.Errorf("%w: input %q", audio.ErrDeviceNotFound, inputName)
	}
	return newDevice(d, out, in), nil
}

// claim marks both endpoints busy, or none of them.
func (d *Driver) claim(names ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range names {
		if d.busy[n] {
			return fmt.Errorf("%w: %s/%s", ErrDeviceBusy, d.name, n)
		}
	}
	for _, n := range names {
		d.busy[n] = true
	}
	return nil
}

func (d *Driver) release(names ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range names {
		delete(d.busy, n)
	}
}
