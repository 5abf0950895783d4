package miniaudio

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/audiodev/audio"
)

var _ audio.Device = (*device)(nil)

type device struct {
	drv    *driver
	name   string
	outID  malgo.DeviceID
	inID   malgo.DeviceID
	hasOut bool
	hasIn  bool
	clip   bool

	dev    *malgo.Device
	in     *audio.Buffers
	out    *audio.Buffers
	inCh   int
	outCh  int
	frames int
	sink   audio.Sink

	stopping atomic.Bool
}

func (d *device) Name() string { return d.name }

// SetPreprocessing 控制 miniaudio 对输出的限幅
func (d *device) SetPreprocessing(enabled bool) { d.clip = enabled }

func (d *device) Open(inputs, outputs audio.ChannelMask, sampleRate float64, bufferSize int) error {
	if d.dev != nil {
		return errors.New("device already open")
	}
	if sampleRate != math.Trunc(sampleRate) || sampleRate <= 0 {
		return fmt.Errorf("unsupported sample rate %g", sampleRate)
	}

	var kind malgo.DeviceType
	switch {
	case !inputs.IsEmpty() && !outputs.IsEmpty():
		kind = malgo.Duplex
	case !outputs.IsEmpty():
		kind = malgo.Playback
	case !inputs.IsEmpty():
		kind = malgo.Capture
	default:
		return errors.New("no channels requested")
	}

	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInFrames = uint32(bufferSize)
	cfg.Alsa.NoMMap = 1
	if !d.clip {
		cfg.NoClip = 1
	}

	d.inCh = inputs.Len()
	d.outCh = outputs.Len()
	if d.outCh > 0 {
		cfg.Playback.Format = malgo.FormatF32
		cfg.Playback.Channels = uint32(d.outCh)
		if d.hasOut {
			cfg.Playback.DeviceID = d.outID.Pointer()
		}
	}
	if d.inCh > 0 {
		cfg.Capture.Format = malgo.FormatF32
		cfg.Capture.Channels = uint32(d.inCh)
		if d.hasIn {
			cfg.Capture.DeviceID = d.inID.Pointer()
		}
	}

	d.frames = bufferSize
	d.in = audio.NewBuffers(inputs, bufferSize)
	d.out = audio.NewBuffers(outputs, bufferSize)

	dev, err := malgo.InitDevice(d.drv.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: d.onData,
		Stop: d.onStop,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	d.dev = dev
	return nil
}

func (d *device) Start(sink audio.Sink) error {
	if d.dev == nil {
		return errors.New("device not open")
	}
	d.sink = sink
	d.stopping.Store(false)
	sink.AboutToStart(d)

	if err := d.dev.Start(); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}
	d.drv.logger.Debug("miniaudio device started",
		"driver", d.drv.name, "device", d.name,
		"input_channels", d.inCh, "output_channels", d.outCh, "buffer_size", d.frames)
	return nil
}

// onData runs on the miniaudio thread. Callbacks larger than the
// configured buffer size are delivered in chunks.
func (d *device) onData(pOutput, pInput []byte, frameCount uint32) {
	total := int(frameCount)
	for done := 0; done < total; {
		n := min(total-done, d.frames)
		if d.inCh > 0 {
			deinterleave(d.in.Physical(), pInput[min(done*d.inCh*4, len(pInput)):], n)
		}
		d.out.Clear(n)
		d.sink.Process(d.in.Active(n), d.out.Active(n), n)
		if d.outCh > 0 {
			interleave(pOutput[min(done*d.outCh*4, len(pOutput)):], d.out.Physical(), n)
		}
		done += n
	}
}

func (d *device) onStop() {
	if d.stopping.Load() {
		return
	}
	// stopped by the driver: hardware gone or a fatal stream error
	sink := d.sink
	go func() {
		sink.Error("device stopped by driver")
		sink.Stopped()
	}()
}

// Stop 阻塞直到 miniaudio 停止回调
func (d *device) Stop() error {
	if d.dev == nil || d.stopping.Swap(true) {
		return nil
	}
	if err := d.dev.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio device: %w", err)
	}
	if d.sink != nil {
		d.sink.Stopped()
	}
	return nil
}

func (d *device) Close() error {
	if d.dev == nil {
		return nil
	}
	d.stopping.Store(true)
	d.dev.Uninit()
	d.dev = nil
	return nil
}
