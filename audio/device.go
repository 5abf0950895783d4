package audio

import (
	"errors"
	"fmt"
	"log/slog"
)

// MaxChannels 是单个方向可请求的通道数上限
const MaxChannels = 1024

// Request 描述一次设备激活
type Request struct {
	Driver         string
	OutputDevice   string
	InputDevice    string
	InputChannels  int
	OutputChannels int
	SampleRate     float64
	BufferSize     int
	Context        int
}

func (r Request) validate() error {
	if r.InputChannels < 0 || r.OutputChannels < 0 {
		return fmt.Errorf("negative channel count (in=%d, out=%d)", r.InputChannels, r.OutputChannels)
	}
	if r.InputChannels > MaxChannels || r.OutputChannels > MaxChannels {
		return fmt.Errorf("too many channels (in=%d, out=%d, max %d)", r.InputChannels, r.OutputChannels, MaxChannels)
	}
	if r.InputChannels == 0 && r.OutputChannels == 0 {
		return errors.New("no channels requested")
	}
	if r.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %g", r.SampleRate)
	}
	if r.BufferSize <= 0 {
		return fmt.Errorf("invalid buffer size %d", r.BufferSize)
	}
	return nil
}

type handleState int

const (
	handleRunning handleState = iota
	handleReleased
)

// Handle 持有一个已打开并正在运行的设备
type Handle struct {
	req    Request
	device Device
	bridge *bridge
	state  handleState
}

// openHandle 打开并启动设备；失败时释放设备，不返回半初始化的 Handle
func openHandle(dev Device, req Request, cb Callback, logger *slog.Logger) (*Handle, error) {
	if err := req.validate(); err != nil {
		_ = dev.Close()
		return nil, err
	}

	dev.SetPreprocessing(false)
	inputs := NewChannelMask(req.InputChannels)
	outputs := NewChannelMask(req.OutputChannels)

	if err := dev.Open(inputs, outputs, req.SampleRate, req.BufferSize); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("failed to open device: %w", err)
	}

	b := newBridge(req.Context, cb, logger)
	if err := dev.Start(b); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("failed to start device: %w", err)
	}

	return &Handle{req: req, device: dev, bridge: b}, nil
}

func (h *Handle) Request() Request { return h.req }

// Stop 停止并释放设备，可重复调用
func (h *Handle) Stop() error {
	if h.state == handleReleased {
		return nil
	}
	h.state = handleReleased

	stopErr := h.device.Stop()
	closeErr := h.device.Close()
	return errors.Join(stopErr, closeErr)
}
