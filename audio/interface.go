// audio/interface.go
package audio

import "log/slog"

// Callback 是调用方提供的实时回调。
// inputs/outputs 为非交错的单声道缓冲区，仅在本次调用期间有效。
type Callback func(ctx int, inputs [][]float32, numInputs int, outputs [][]float32, numOutputs int, numFrames int)

// Driver 定义驱动能力接口：扫描、列出设备名、构造设备
type Driver interface {
	Name() string
	// Scan refreshes the cached device list.
	Scan() error
	DeviceNames() []string
	// CreateDevice returns ErrDeviceNotFound when either name is unknown
	// or the pairing is refused. An empty name selects the default device.
	CreateDevice(outputName, inputName string) (Device, error)
}

// Device 是驱动层的硬件设备句柄
type Device interface {
	Name() string
	SetPreprocessing(enabled bool)
	Open(inputs, outputs ChannelMask, sampleRate float64, bufferSize int) error
	Start(sink Sink) error
	// Stop blocks until the driver guarantees no further Process calls.
	Stop() error
	Close() error
}

// Sink 接收驱动的缓冲区回调
type Sink interface {
	// Process runs on the driver's real-time thread.
	Process(inputs, outputs [][]float32, numFrames int)
	AboutToStart(dev Device)
	Stopped()
	// Error is never called from the real-time thread.
	Error(msg string)
}

// Backend 是一个音频子系统，提供一组驱动
type Backend interface {
	Drivers() []Driver
	Close() error
}

// BackendFactory 构造 Backend，失败时不得留下已分配的资源
type BackendFactory func(logger *slog.Logger) (Backend, error)
