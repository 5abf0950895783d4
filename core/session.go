package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lisuiheng/audiodev/audio"
	"github.com/lisuiheng/audiodev/monitor"
)

// Session 激活配置中的设备，并在需要时挂接监听
type Session struct {
	engine  *Engine
	request audio.Request
	tap     *monitor.Tap
	logger  *slog.Logger
}

// StartSession 按 cfg.Device、cfg.Callback 和 cfg.Monitor 激活设备
func StartSession(e *Engine, cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	req := cfg.Device.Request()
	if req.Driver == "" {
		drivers, err := e.Drivers()
		if err != nil {
			return nil, err
		}
		if len(drivers) == 0 {
			return nil, ErrNoDriver
		}
		req.Driver = drivers[0]
		logger.Info("Using first available driver", "driver", req.Driver)
	}

	cb, err := NewCallback(cfg.Callback, req.SampleRate)
	if err != nil {
		return nil, err
	}

	s := &Session{engine: e, request: req, logger: logger}
	if cfg.Monitor.Enabled() {
		tap, err := monitor.New(cfg.Monitor, int(req.SampleRate), req.InputChannels, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create monitor: %w", err)
		}
		tap.Start()
		s.tap = tap
		cb = tap.Wrap(cb)
	}

	if code := e.ActivateRequest(req, cb); code < 0 {
		if s.tap != nil {
			_ = s.tap.Close()
		}
		return nil, fmt.Errorf("%w: code %d", ErrActivateFailed, code)
	}
	return s, nil
}

func (s *Session) Request() audio.Request { return s.request }

// Monitor 未启用监听时为 nil
func (s *Session) Monitor() *monitor.Tap { return s.tap }

// Close 停止设备后关闭监听
func (s *Session) Close() error {
	var errs []error
	if code := s.engine.Deactivate(s.request.Context); code < 0 && code != audio.CodeInvalidContext {
		errs = append(errs, fmt.Errorf("deactivate context %d: code %d", s.request.Context, code))
	}
	if s.tap != nil {
		if err := s.tap.Close(); err != nil {
			errs = append(errs, err)
		}
		s.logger.Info("Monitor closed", "frames", s.tap.Frames(), "dropped", s.tap.Dropped())
	}
	return errors.Join(errs...)
}
