package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// deviceManager 持有所有后端及其驱动
type deviceManager struct {
	backends []Backend
	drivers  []Driver
}

// newDeviceManager builds every backend. Backends that fail are logged and
// skipped; it fails only when none could be built.
func newDeviceManager(factories []BackendFactory, logger *slog.Logger) (*deviceManager, error) {
	dm := &deviceManager{}
	var errs []error
	for _, factory := range factories {
		backend, err := factory(logger)
		if err != nil {
			logger.Warn("Audio backend unavailable", "error", err)
			errs = append(errs, err)
			continue
		}
		dm.backends = append(dm.backends, backend)
		dm.drivers = append(dm.drivers, backend.Drivers()...)
	}

	if len(dm.backends) == 0 {
		return nil, errors.Join(append([]error{ErrNoBackends}, errs...)...)
	}
	return dm, nil
}

func (dm *deviceManager) driver(name string) Driver {
	for _, d := range dm.drivers {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

func (dm *deviceManager) close() error {
	var errs []error
	for _, b := range dm.backends {
		errs = append(errs, b.Close())
	}
	dm.backends = nil
	dm.drivers = nil
	return errors.Join(errs...)
}

// Manager 负责设备激活与关闭，拥有设备管理器单例和活动设备表
type Manager struct {
	mu        sync.Mutex
	factories []BackendFactory
	logger    *slog.Logger
	dm        *deviceManager
	active    map[int]*Handle
}

// NewManager 创建 Manager；设备管理器在首次激活时才构造
func NewManager(logger *slog.Logger, factories ...BackendFactory) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		factories: factories,
		logger:    logger,
		active:    make(map[int]*Handle),
	}
}

// Activate 激活设备并返回 req.Context
func (m *Manager) Activate(req Request, cb Callback) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dm == nil {
		dm, err := newDeviceManager(m.factories, m.logger)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrManagerConstruction, err)
		}
		m.dm = dm
	}

	drv := m.dm.driver(req.Driver)
	if drv == nil {
		return 0, fmt.Errorf("%w: %q", ErrDriverNotFound, req.Driver)
	}

	if err := drv.Scan(); err != nil {
		m.logger.Warn("Driver rescan failed, using cached device list", "driver", req.Driver, "error", err)
	}

	dev, err := drv.CreateDevice(req.OutputDevice, req.InputDevice)
	if err != nil || dev == nil {
		return 0, fmt.Errorf("%w: output %q, input %q on %q: %v",
			ErrDeviceNotFound, req.OutputDevice, req.InputDevice, req.Driver, err)
	}

	if err := m.checkContext(req.Context, cb); err != nil {
		_ = dev.Close()
		return 0, err
	}

	h, err := openHandle(dev, req, cb, m.logger)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeviceConstruction, err)
	}

	m.active[req.Context] = h
	m.logger.Info("Audio device activated",
		"driver", req.Driver,
		"output", req.OutputDevice,
		"input", req.InputDevice,
		"input_channels", req.InputChannels,
		"output_channels", req.OutputChannels,
		"sample_rate", req.SampleRate,
		"buffer_size", req.BufferSize,
		"context", req.Context)
	return req.Context, nil
}

// checkContext 在打开设备前检查上下文和回调，设备只被创建而未打开
func (m *Manager) checkContext(ctx int, cb Callback) error {
	if ctx < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidContext, ctx)
	}
	if _, ok := m.active[ctx]; ok {
		return fmt.Errorf("%w: %d", ErrContextInUse, ctx)
	}
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrDeviceConstruction)
	}
	return nil
}

// Deactivate 停止单个设备
func (m *Manager) Deactivate(ctx int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.active[ctx]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidContext, ctx)
	}
	delete(m.active, ctx)
	if err := h.Stop(); err != nil {
		return fmt.Errorf("failed to stop device %d: %w", ctx, err)
	}
	req := h.Request()
	m.logger.Info("Audio device deactivated",
		"driver", req.Driver, "output", req.OutputDevice, "input", req.InputDevice, "context", ctx)
	return nil
}

// StopAll 停止所有设备并释放设备管理器，可重复调用
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ctx, h := range m.active {
		if err := h.Stop(); err != nil {
			m.logger.Error("Failed to stop audio device", "context", ctx, "error", err)
		}
	}
	clear(m.active)

	if m.dm != nil {
		if err := m.dm.close(); err != nil {
			m.logger.Error("Failed to release device manager", "error", err)
		}
		m.dm = nil
		m.logger.Info("Audio devices stopped")
	}
}

// Active returns the registered context ids in ascending order.
func (m *Manager) Active() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
