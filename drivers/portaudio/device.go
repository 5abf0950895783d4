package portaudio

import (
	"errors"
	"fmt"

	pa "github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/audiodev/audio"
)

var _ audio.Device = (*device)(nil)

type device struct {
	drv           *driver
	output        *pa.DeviceInfo
	input         *pa.DeviceInfo
	preprocessing bool

	stream  *pa.Stream
	in      *audio.Buffers
	out     *audio.Buffers
	sink    audio.Sink
	running bool
}

func (d *device) Name() string {
	if d.output != nil {
		return d.output.Name
	}
	return d.input.Name
}

// SetPreprocessing 关闭时禁用 PortAudio 的限幅和抖动
func (d *device) SetPreprocessing(enabled bool) { d.preprocessing = enabled }

func (d *device) Open(inputs, outputs audio.ChannelMask, sampleRate float64, bufferSize int) error {
	if d.stream != nil {
		return errors.New("device already open")
	}

	params := pa.StreamParameters{
		SampleRate:      sampleRate,
		FramesPerBuffer: bufferSize,
	}
	if !d.preprocessing {
		params.Flags = pa.ClipOff | pa.DitherOff
	}
	if n := outputs.Len(); n > 0 {
		if d.output == nil {
			return errors.New("no output device")
		}
		params.Output = pa.StreamDeviceParameters{
			Device:   d.output,
			Channels: n,
			Latency:  d.output.DefaultLowOutputLatency,
		}
	}
	if n := inputs.Len(); n > 0 {
		if d.input == nil {
			return errors.New("no input device")
		}
		params.Input = pa.StreamDeviceParameters{
			Device:   d.input,
			Channels: n,
			Latency:  d.input.DefaultLowInputLatency,
		}
	}

	d.in = audio.NewBuffers(inputs, bufferSize)
	d.out = audio.NewBuffers(outputs, bufferSize)

	stream, err := pa.OpenStream(params, d.process)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	d.stream = stream
	return nil
}

// process receives non-interleaved buffers owned by PortAudio.
func (d *device) process(in, out [][]float32) {
	frames := 0
	if len(out) > 0 {
		frames = len(out[0])
	} else if len(in) > 0 {
		frames = len(in[0])
	}
	for _, ch := range out {
		clear(ch)
	}
	d.sink.Process(d.in.Map(in), d.out.Map(out), frames)
}

func (d *device) Start(sink audio.Sink) error {
	if d.stream == nil {
		return errors.New("device not open")
	}
	d.sink = sink
	sink.AboutToStart(d)
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	d.running = true
	return nil
}

// Stop 阻塞直到 PortAudio 不再调用回调
func (d *device) Stop() error {
	if !d.running {
		return nil
	}
	d.running = false
	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	d.sink.Stopped()
	return nil
}

func (d *device) Close() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	if err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	return nil
}
