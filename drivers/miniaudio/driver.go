package miniaudio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/audiodev/audio"
)

var _ audio.Driver = (*driver)(nil)

type driver struct {
	mu       sync.Mutex
	name     string
	ctx      *malgo.AllocatedContext
	logger   *slog.Logger
	playback []malgo.DeviceInfo
	capture  []malgo.DeviceInfo
}

func (d *driver) Name() string { return d.name }

// Scan 重新枚举播放和采集设备
func (d *driver) Scan() error {
	playback, err := d.ctx.Devices(malgo.Playback)
	if err != nil {
		return fmt.Errorf("failed to enumerate playback devices: %w", err)
	}
	capture, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.playback = playback
	d.capture = capture
	return nil
}

// DeviceNames lists playback devices first, then capture-only devices.
func (d *driver) DeviceNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]bool)
	var names []string
	for _, list := range [][]malgo.DeviceInfo{d.playback, d.capture} {
		for i := range list {
			name := list[i].Name()
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func find(list []malgo.DeviceInfo, name string) (malgo.DeviceInfo, bool) {
	for i := range list {
		if list[i].Name() == name {
			return list[i], true
		}
	}
	return malgo.DeviceInfo{}, false
}

func (d *driver) CreateDevice(outputName, inputName string) (audio.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev := &device{drv: d, name: outputName, clip: true}
	if outputName != "" {
		info, ok := find(d.playback, outputName)
		if !ok {
			return nil, fmt.Errorf("%w: playback %q", audio.ErrDeviceNotFound, outputName)
		}
		dev.outID, dev.hasOut = info.ID, true
	}
	if inputName != "" {
		info, ok := find(d.capture, inputName)
		if !ok {
			return nil, fmt.Errorf("%w: capture %q", audio.ErrDeviceNotFound, inputName)
		}
		dev.inID, dev.hasIn = info.ID, true
	}
	if dev.name == "" {
		dev.name = inputName
	}
	return dev, nil
}
