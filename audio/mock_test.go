package audio

import (
	"errors"
	"log/slog"
	"sync"
)

// stubBackend is an in-memory Backend whose devices are fired by hand.
type stubBackend struct {
	drivers []*stubDriver
	closed  int
}

func (b *stubBackend) Drivers() []Driver {
	out := make([]Driver, len(b.drivers))
	for i, d := range b.drivers {
		out[i] = d
	}
	return out
}

func (b *stubBackend) Close() error {
	b.closed++
	return nil
}

func (b *stubBackend) factory() BackendFactory {
	return func(*slog.Logger) (Backend, error) { return b, nil }
}

func failingFactory(err error) BackendFactory {
	return func(*slog.Logger) (Backend, error) { return nil, err }
}

type stubDriver struct {
	mu       sync.Mutex
	name     string
	attached []string
	names    []string
	scans    int
	openErr  error
	startErr error
	devices  []*stubDevice
}

func newStubDriver(name string, devices ...string) *stubDriver {
	return &stubDriver{name: name, attached: devices}
}

func (d *stubDriver) Name() string { return d.name }

func (d *stubDriver) Scan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scans++
	d.names = append([]string(nil), d.attached...)
	return nil
}

func (d *stubDriver) DeviceNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.names...)
}

func (d *stubDriver) has(name string) bool {
	for _, n := range d.names {
		if n == name {
			return true
		}
	}
	return false
}

func (d *stubDriver) CreateDevice(outputName, inputName string) (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.has(outputName) || !d.has(inputName) {
		return nil, ErrDeviceNotFound
	}
	dev := &stubDevice{name: outputName, openErr: d.openErr, startErr: d.startErr, preprocessing: true}
	d.devices = append(d.devices, dev)
	return dev, nil
}

func (d *stubDriver) last() *stubDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.devices) == 0 {
		return nil
	}
	return d.devices[len(d.devices)-1]
}

type stubDevice struct {
	name          string
	preprocessing bool
	inputs        ChannelMask
	outputs       ChannelMask
	sampleRate    float64
	bufferSize    int
	openErr       error
	startErr      error
	sink          Sink
	in, out       *Buffers
	opened        bool
	started       bool
	stopped       bool
	closed        bool
}

func (d *stubDevice) Name() string { return d.name }

func (d *stubDevice) SetPreprocessing(enabled bool) { d.preprocessing = enabled }

func (d *stubDevice) Open(inputs, outputs ChannelMask, sampleRate float64, bufferSize int) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.inputs, d.outputs = inputs, outputs
	d.sampleRate, d.bufferSize = sampleRate, bufferSize
	d.in = NewBuffers(inputs, bufferSize)
	d.out = NewBuffers(outputs, bufferSize)
	d.opened = true
	return nil
}

func (d *stubDevice) Start(sink Sink) error {
	if !d.opened {
		return errors.New("not open")
	}
	if d.startErr != nil {
		return d.startErr
	}
	sink.AboutToStart(d)
	d.sink = sink
	d.started = true
	return nil
}

// fire delivers one buffer to the sink, as a driver thread would.
func (d *stubDevice) fire() {
	d.sink.Process(d.in.Active(d.bufferSize), d.out.Active(d.bufferSize), d.bufferSize)
}

func (d *stubDevice) Stop() error {
	if d.started && !d.stopped {
		d.sink.Stopped()
	}
	d.stopped = true
	return nil
}

func (d *stubDevice) Close() error {
	d.closed = true
	return nil
}
