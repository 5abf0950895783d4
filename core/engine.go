package core

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/lisuiheng/audiodev/audio"
)

// Engine 是对外的整数接口：ListDevices、Activate、StopAll。
// 错误以负数返回码表示，详细信息写入日志。
type Engine struct {
	registry *audio.Registry
	manager  *audio.Manager
	out      io.Writer
	logger   *slog.Logger
}

// NewEngine 使用给定的后端工厂创建引擎。out 为设备列表的诊断输出，nil 时为 stdout。
func NewEngine(factories []audio.BackendFactory, out io.Writer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Engine{
		registry: audio.NewRegistry(logger, factories...),
		manager:  audio.NewManager(logger, factories...),
		out:      out,
		logger:   logger,
	}
}

// NewEngineFromConfig 按 cfg.Backends 创建引擎
func NewEngineFromConfig(cfg Config, out io.Writer, logger *slog.Logger) (*Engine, error) {
	factories, err := cfg.Factories()
	if err != nil {
		return nil, err
	}
	return NewEngine(factories, out, logger), nil
}

// ListDevices 把驱动和设备写到诊断输出，返回设备总数
func (e *Engine) ListDevices() int {
	n, err := e.registry.Dump(e.out)
	if err != nil {
		e.logger.Error("Failed to list devices", "error", err)
	}
	return n
}

// Drivers 返回可用的驱动名
func (e *Engine) Drivers() ([]string, error) {
	return e.registry.Drivers()
}

// Devices 返回驱动下的设备名
func (e *Engine) Devices(driver string) ([]string, error) {
	return e.registry.Devices(driver)
}

// Activate 成功时返回 ctx，失败时返回 audio 包中的负数错误码
func (e *Engine) Activate(driver, output, input string, inCh, outCh int, rate float64, bufSize, ctx int, cb audio.Callback) int {
	return e.ActivateRequest(audio.Request{
		Driver:         driver,
		OutputDevice:   output,
		InputDevice:    input,
		InputChannels:  inCh,
		OutputChannels: outCh,
		SampleRate:     rate,
		BufferSize:     bufSize,
		Context:        ctx,
	}, cb)
}

func (e *Engine) ActivateRequest(req audio.Request, cb audio.Callback) int {
	ctx, err := e.manager.Activate(req, cb)
	if err != nil {
		code := audio.Code(err)
		e.logger.Error("Failed to activate audio device",
			"driver", req.Driver, "output", req.OutputDevice, "input", req.InputDevice,
			"context", req.Context, "code", code, "error", err)
		return code
	}
	return ctx
}

// Deactivate 停止单个设备，返回 0 或负数错误码
func (e *Engine) Deactivate(ctx int) int {
	if err := e.manager.Deactivate(ctx); err != nil {
		if !errors.Is(err, audio.ErrInvalidContext) {
			e.logger.Warn("Failed to deactivate audio device", "context", ctx, "error", err)
		}
		return audio.Code(err)
	}
	return 0
}

// Active 返回正在运行的上下文
func (e *Engine) Active() []int { return e.manager.Active() }

// StopAll 释放所有设备和设备管理器，总是成功
func (e *Engine) StopAll() {
	e.manager.StopAll()
}
