package loopback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lisuiheng/audiodev/audio"
)

var _ audio.Device = (*device)(nil)

type device struct {
	mu            sync.Mutex
	drv           *Driver
	output        string
	input         string
	preprocessing bool

	claimed []string
	rate    float64
	frames  int
	period  time.Duration
	in      *audio.Buffers
	out     *audio.Buffers
	sink    audio.Sink

	stop chan struct{}
	errs chan string
	wg   sync.WaitGroup

	opened  bool
	running bool
	closed  bool
}

func newDevice(drv *Driver, output, input string) *device {
	return &device{drv: drv, output: output, input: input, preprocessing: true}
}

func (d *device) Name() string { return d.output }

// SetPreprocessing toggles the input limiter, the only effect this driver applies.
func (d *device) SetPreprocessing(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.preprocessing = enabled
}

func (d *device) Open(inputs, outputs audio.ChannelMask, sampleRate float64, bufferSize int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("device closed")
	}
	if d.opened {
		return errors.New("device already open")
	}
	if inputs.IsEmpty() && outputs.IsEmpty() {
		return fmt.Errorf("%w: no channels", ErrUnsupportedFormat)
	}
	if inputs.Len() > d.drv.maxChannels || outputs.Len() > d.drv.maxChannels {
		return fmt.Errorf("%w: at most %d channels", ErrUnsupportedFormat, d.drv.maxChannels)
	}
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %g", ErrUnsupportedFormat, sampleRate)
	}
	if bufferSize < MinBufferSize || bufferSize > MaxBufferSize {
		return fmt.Errorf("%w: buffer size %d", ErrUnsupportedFormat, bufferSize)
	}

	var endpoints []string
	if !outputs.IsEmpty() {
		endpoints = append(endpoints, d.output)
	}
	if !inputs.IsEmpty() && (outputs.IsEmpty() || d.input != d.output) {
		endpoints = append(endpoints, d.input)
	}
	if err := d.drv.claim(endpoints...); err != nil {
		return err
	}

	d.claimed = endpoints
	d.rate = sampleRate
	d.frames = bufferSize
	d.period = time.Duration(float64(bufferSize) / sampleRate * float64(time.Second))
	d.in = audio.NewBuffers(inputs, bufferSize)
	d.out = audio.NewBuffers(outputs, bufferSize)
	d.opened = true
	return nil
}

func (d *device) Start(sink audio.Sink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.opened || d.closed {
		return errors.New("device not open")
	}
	if d.running {
		return errors.New("device already running")
	}

	d.sink = sink
	d.stop = make(chan struct{})
	d.errs = make(chan string, 8)
	sink.AboutToStart(d)

	d.wg.Add(2)
	go d.clock(d.stop)
	go d.notify(d.stop)
	d.running = true

	d.drv.backend.logger.Debug("Loopback device started",
		"driver", d.drv.name, "output", d.output, "input", d.input,
		"sample_rate", d.rate, "buffer_size", d.frames)
	return nil
}

// clock is the real-time thread of the device.
func (d *device) clock(stop <-chan struct{}) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			begin := time.Now()
			d.cycle()
			if time.Since(begin) > d.period {
				select {
				case d.errs <- "buffer overrun: callback exceeded buffer period":
				default:
				}
			}
		}
	}
}

func (d *device) cycle() {
	in := d.in.Physical()
	out := d.out.Physical()
	for i, ch := range in {
		if len(out) == 0 {
			clear(ch)
			continue
		}
		copy(ch, out[i%len(out)])
		if d.preprocessing {
			limit(ch)
		}
	}
	d.out.Clear(d.frames)
	d.sink.Process(d.in.Active(d.frames), d.out.Active(d.frames), d.frames)
}

func limit(samples []float32) {
	for i, s := range samples {
		if s > 1 {
			samples[i] = 1
		} else if s < -1 {
			samples[i] = -1
		}
	}
}

// notify delivers driver errors off the real-time thread.
func (d *device) notify(stop <-chan struct{}) {
	defer d.wg.Done()
	for {
		select {
		case <-stop:
			return
		case msg := <-d.errs:
			d.sink.Error(msg)
		}
	}
}

// Stop 阻塞直到时钟协程退出
func (d *device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	close(d.stop)
	d.wg.Wait()
	d.running = false
	d.sink.Stopped()
	return nil
}

func (d *device) Close() error {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if running {
		if err := d.Stop(); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.opened {
		d.drv.release(d.claimed...)
		d.opened = false
	}
	return nil
}
